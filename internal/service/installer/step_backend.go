package installer

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/rpgai/internal/config"
)

var backendTitles = map[string]string{
	config.BackendOllama:     "Ollama (local)",
	config.BackendOpenRouter: "OpenRouter",
	config.BackendOpenAI:     "OpenAI",
	config.BackendAnthropic:  "Anthropic",
}

// BackendStep picks the default generation backend
type BackendStep struct {
	cursor int
}

func NewBackendStep() Step {
	return &BackendStep{}
}

func (s *BackendStep) Init() tea.Cmd {
	return nil
}

func (s *BackendStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(config.BackendOrder)-1 {
				s.cursor++
			}
		case "enter":
			state.Backends.Default = config.BackendOrder[s.cursor]
			return nil, nil
		}
	}
	return s, nil
}

func (s *BackendStep) View(state *InstallState) string {
	titles := make([]string, len(config.BackendOrder))
	for i, name := range config.BackendOrder {
		titles[i] = backendTitles[name]
	}
	return renderChoices("Select the default language model backend:", titles, s.cursor)
}
