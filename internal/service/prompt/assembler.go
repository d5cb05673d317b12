package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sandevgo/rpgai/internal/core"
)

const (
	DefaultDocumentCharLimit = 2000
	DefaultHistoryLimit      = 5
)

// Input is everything one turn's prompt is built from.
type Input struct {
	SystemPrompt      string
	Documents         []core.Document
	CharacterMemories []core.MemoryRecord
	GlobalMemories    []core.MemoryRecord
	Situation         *core.SituationalState
	History           []core.Message
	// SenderName is set when another persona, not a human, wrote UserText.
	SenderName string
	UserText   string
}

// Assembler builds the message sequence for a turn. Build is a pure
// function of its input.
type Assembler struct {
	docCharLimit int
	historyLimit int
}

func NewAssembler(docCharLimit, historyLimit int) *Assembler {
	if docCharLimit <= 0 {
		docCharLimit = DefaultDocumentCharLimit
	}
	if historyLimit < 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Assembler{
		docCharLimit: docCharLimit,
		historyLimit: historyLimit,
	}
}

func (a *Assembler) Build(in Input) []core.Message {
	blocks := []string{strings.TrimSpace(in.SystemPrompt)}
	blocks = append(blocks,
		a.documentsBlock(in.Documents),
		memoryBlock("**What you remember about this user:**", in.CharacterMemories),
		memoryBlock("**General facts about this user:**", in.GlobalMemories),
		situationBlock(in.Situation),
	)
	if in.SenderName != "" {
		blocks = append(blocks, fmt.Sprintf(
			"**Note:** This message is from %s, another character in the world. Respond as if speaking to them directly.",
			in.SenderName,
		))
	}

	var parts []string
	for _, b := range blocks {
		if b != "" {
			parts = append(parts, b)
		}
	}

	history := in.History
	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}

	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, core.SystemMessage(strings.Join(parts, "\n\n")))
	messages = append(messages, history...)
	messages = append(messages, core.UserMessage(in.UserText))
	return messages
}

func (a *Assembler) documentsBlock(docs []core.Document) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Reference Documents:**")
	for _, d := range docs {
		b.WriteString("\n\n### ")
		b.WriteString(d.Filename)
		b.WriteByte('\n')
		b.WriteString(Truncate(d.Content, a.docCharLimit))
	}
	return b.String()
}

// Truncate caps s to limit characters, counted as code points.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func memoryBlock(header string, recs []core.MemoryRecord) string {
	var lines []string
	for _, r := range recs {
		if t := strings.TrimSpace(r.Text); t != "" {
			lines = append(lines, "- "+t)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(lines, "\n")
}

func situationBlock(s *core.SituationalState) string {
	if s == nil {
		return ""
	}

	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	addInt := func(label string, v *int, suffix string) {
		if v != nil {
			lines = append(lines, label+": "+strconv.Itoa(*v)+suffix)
		}
	}

	add("Location", s.Location)
	add("Weather", s.Weather)
	add("Time", s.TimeOfDay)
	addInt("Your health", s.PersonaHealth, "%")
	addInt("Player health", s.PlayerHealth, "%")
	addInt("Player reputation", s.PlayerReputation, "")
	add("Your mood", s.PersonaMood)
	add("Recent event", s.RecentEvent)
	if len(s.NearbyEntities) > 0 {
		add("Nearby NPCs", strings.Join(s.NearbyEntities, ", "))
	}

	keys := make([]string, 0, len(s.Custom))
	for k := range s.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, s.Custom[k]))
	}

	if len(lines) == 0 {
		return ""
	}
	return "**Current Game State:**\n" + strings.Join(lines, "\n")
}
