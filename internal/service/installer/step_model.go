package installer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/llm"
)

// modelSource builds a lister for the chosen backend; tests swap it.
var modelSource = func(cfg *config.BackendsConfig) core.ModelLister {
	switch cfg.Default {
	case config.BackendOllama:
		return llm.NewOllama(cfg.Ollama)
	case config.BackendOpenRouter:
		return llm.NewOpenRouter(cfg.OpenRouter)
	case config.BackendOpenAI:
		return llm.NewOpenAI(cfg.OpenAI)
	default:
		return llm.NewAnthropic(cfg.Anthropic)
	}
}

// ModelStep lists the backend's models; "s" keeps the configured default
type ModelStep struct {
	list     list.Model
	loading  bool
	fetching bool // Ensures we only trigger the API call once
	err      error
}

func NewModelStep() Step {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a model"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return &ModelStep{
		list:    l,
		loading: true,
	}
}

func (s *ModelStep) Init() tea.Cmd {
	return nil
}

func fetchModels(cfg config.BackendsConfig) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		models, err := modelSource(&cfg).ListModels(ctx)
		if err != nil {
			return errMsg(err)
		}
		sort.Strings(models)

		items := make([]list.Item, 0, len(models))
		for _, id := range models {
			items = append(items, item{id: id, title: id, desc: cfg.Default})
		}
		return modelsMsg(items)
	}
}

func (s *ModelStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.loading && !s.fetching {
		s.fetching = true
		return s, fetchModels(state.Backends)
	}

	s.list.SetSize(width, height-4)

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case modelsMsg:
		s.list.SetItems(msg)
		s.loading = false
		s.fetching = false
		return s, nil

	case errMsg:
		s.loading = false
		s.fetching = false
		s.err = msg
		return s, nil

	case tea.KeyMsg:
		if s.err != nil {
			switch msg.String() {
			case "enter":
				s.err = nil
				s.loading = true
				s.fetching = false
			case "s":
				return nil, nil
			}
			return s, nil
		}

		if msg.String() == "enter" {
			wasFiltering := s.list.FilterState() == list.Filtering
			s.list, cmd = s.list.Update(msg)

			if wasFiltering || s.list.FilterState() == list.Filtering {
				return s, cmd
			}

			if i, ok := s.list.SelectedItem().(item); ok {
				state.SetModel(i.id)
				return nil, nil
			}
			return s, cmd
		}
	}

	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *ModelStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error fetching models: %v", s.err)) +
			"\n\nCheck the backend address or API key.\n\n(press enter to retry, s to keep the default model)\n"
	}
	if s.loading {
		return fmt.Sprintf("Fetching models from %s...\n", backendTitles[state.Backends.Default])
	}
	return s.list.View()
}
