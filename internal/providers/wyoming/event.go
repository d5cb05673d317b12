// Package wyoming implements the event stream spoken by Piper and
// faster-whisper servers: a JSON header line, optional JSON data, then an
// optional binary payload.
package wyoming

const (
	TypeDescribe   = "describe"
	TypeInfo       = "info"
	TypeSynthesize = "synthesize"
	TypeTranscribe = "transcribe"
	TypeAudioStart = "audio-start"
	TypeAudioChunk = "audio-chunk"
	TypeAudioStop  = "audio-stop"
	TypeTranscript = "transcript"
	TypeError      = "error"
)

// Default audio parameters when the peer leaves them out.
const (
	DefaultRate     = 16000
	DefaultWidth    = 2
	DefaultChannels = 1
)

// Event is one decoded protocol message. The concrete type tells what it is.
type Event interface {
	Type() string
}

type AudioFormat struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// WithDefaults fills unset fields with 16 kHz, 16 bit, mono.
func (f AudioFormat) WithDefaults() AudioFormat {
	if f.Rate <= 0 {
		f.Rate = DefaultRate
	}
	if f.Width <= 0 {
		f.Width = DefaultWidth
	}
	if f.Channels <= 0 {
		f.Channels = DefaultChannels
	}
	return f
}

type Describe struct{}

type Info struct {
	Raw map[string]any
}

type SynthesizeVoice struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

type Synthesize struct {
	Text  string           `json:"text"`
	Voice *SynthesizeVoice `json:"voice,omitempty"`
}

type Transcribe struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

type AudioStart struct {
	AudioFormat
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type AudioChunk struct {
	AudioFormat
	Timestamp *int64 `json:"timestamp,omitempty"`
	Audio     []byte `json:"-"`
}

type AudioStop struct {
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type Transcript struct {
	Text string `json:"text"`
}

type Error struct {
	Text string `json:"text"`
	Code string `json:"code,omitempty"`
}

// Unknown preserves events this client does not model.
type Unknown struct {
	Name    string
	Data    map[string]any
	Payload []byte
}

func (Describe) Type() string   { return TypeDescribe }
func (Info) Type() string       { return TypeInfo }
func (Synthesize) Type() string { return TypeSynthesize }
func (Transcribe) Type() string { return TypeTranscribe }
func (AudioStart) Type() string { return TypeAudioStart }
func (AudioChunk) Type() string { return TypeAudioChunk }
func (AudioStop) Type() string  { return TypeAudioStop }
func (Transcript) Type() string { return TypeTranscript }
func (Error) Type() string      { return TypeError }
func (u Unknown) Type() string  { return u.Name }

func (e Error) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Text
	}
	return e.Text
}
