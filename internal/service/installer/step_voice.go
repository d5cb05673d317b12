package installer

import (
	tea "github.com/charmbracelet/bubbletea"
)

var voiceChoices = []string{
	"Text only",
	"Spoken replies and voice notes (Piper + faster-whisper)",
}

// VoiceStep toggles the audio pipeline
type VoiceStep struct {
	cursor int
}

func NewVoiceStep() Step {
	return &VoiceStep{}
}

func (s *VoiceStep) Init() tea.Cmd {
	return nil
}

func (s *VoiceStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			s.cursor = 0
		case "down", "j":
			s.cursor = 1
		case "enter":
			state.Voice.Enabled = s.cursor == 1
			return nil, nil
		}
	}
	return s, nil
}

func (s *VoiceStep) View(state *InstallState) string {
	return renderChoices("Enable the audio pipeline?", voiceChoices, s.cursor)
}
