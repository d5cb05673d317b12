package core

import "time"

const (
	AppName      = "rpgai"
	AppUserAgent = "rpgai/0.1"
	AppURL       = "https://github.com/sandevgo/rpgai"
	AppVersion   = "0.1.0"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the unit exchanged with backends. Treat it as immutable.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult is produced once per generation call.
type GenerationResult struct {
	Content  string            `json:"content"`
	Backend  string            `json:"backend"`
	Model    string            `json:"model"`
	Usage    Usage             `json:"usage"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	// Model overrides the backend's configured model when set.
	Model string
}

type Persona struct {
	ID             string    `json:"id" yaml:"id"`
	OwnerID        string    `json:"owner_id" yaml:"owner_id"`
	Name           string    `json:"name" yaml:"name"`
	CreationPrompt string    `json:"creation_prompt,omitempty" yaml:"creation_prompt,omitempty"`
	Summary        string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	SystemPrompt   string    `json:"system_prompt" yaml:"system_prompt"`
	Voice          string    `json:"voice,omitempty" yaml:"voice,omitempty"`
	Backend        string    `json:"backend,omitempty" yaml:"backend,omitempty"`
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature    float64   `json:"temperature" yaml:"temperature"`
	Active         bool      `json:"active" yaml:"-"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

type Document struct {
	ID          string    `json:"id"`
	PersonaID   string    `json:"persona_id"`
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type Conversation struct {
	ID            string    `json:"id"`
	PersonaID     string    `json:"persona_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SituationalState is the caller supplied snapshot of the world around the
// persona. Every field is optional.
type SituationalState struct {
	Location         string         `json:"location,omitempty"`
	Weather          string         `json:"weather,omitempty"`
	TimeOfDay        string         `json:"time_of_day,omitempty"`
	PersonaHealth    *int           `json:"npc_health,omitempty"`
	PlayerHealth     *int           `json:"player_health,omitempty"`
	PlayerReputation *int           `json:"player_reputation,omitempty"`
	PersonaMood      string         `json:"npc_mood,omitempty"`
	RecentEvent      string         `json:"recent_event,omitempty"`
	NearbyEntities   []string       `json:"nearby_npcs,omitempty"`
	Custom           map[string]any `json:"custom_data,omitempty"`
}

type AudioArtifact struct {
	CacheKey    string `json:"cache_key"`
	Path        string `json:"path"`
	SampleRate  int    `json:"sample_rate"`
	SampleWidth int    `json:"sample_width"`
	Channels    int    `json:"channels"`
}

type TurnRequest struct {
	PersonaID       string
	UserID          string
	Text            string
	Situation       *SituationalState
	SenderPersonaID string
	// Voice asks for a synthesized reply when the audio pipeline is enabled.
	Voice bool
}

type TurnResult struct {
	ConversationID string
	Reply          string
	AudioPath      string
	// AudioPending means AudioPath is where synthesis will land once the
	// background job completes.
	AudioPending bool
	Backend      string
	Model        string
	Usage        Usage
}
