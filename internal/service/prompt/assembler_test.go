package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/core"
)

func intPtr(v int) *int { return &v }

func fullInput() Input {
	return Input{
		SystemPrompt: "You are Brom, a gruff dwarven smith.",
		Documents: []core.Document{
			{Filename: "lore.md", Content: "The forge never cools."},
		},
		CharacterMemories: []core.MemoryRecord{{Text: "User bought a sword"}},
		GlobalMemories:    []core.MemoryRecord{{Text: "User is named Ada"}},
		Situation: &core.SituationalState{
			Location:       "Ironhold",
			PersonaHealth:  intPtr(80),
			NearbyEntities: []string{"Guard", "Merchant"},
			Custom:         map[string]any{"zeta": 1, "alpha": "x", "mid": true},
		},
		History: []core.Message{
			core.UserMessage("Hello"),
			core.AssistantMessage("What do you want?"),
		},
		UserText: "A new axe, please.",
	}
}

func TestBuild_Layout(t *testing.T) {
	a := NewAssembler(2000, 5)
	msgs := a.Build(fullInput())

	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, core.UserMessage("Hello"), msgs[1])
	assert.Equal(t, core.AssistantMessage("What do you want?"), msgs[2])
	assert.Equal(t, core.UserMessage("A new axe, please."), msgs[3])

	want := strings.Join([]string{
		"You are Brom, a gruff dwarven smith.",
		"**Reference Documents:**\n\n### lore.md\nThe forge never cools.",
		"**What you remember about this user:**\n- User bought a sword",
		"**General facts about this user:**\n- User is named Ada",
		"**Current Game State:**\nLocation: Ironhold\nYour health: 80%\nNearby NPCs: Guard, Merchant\nalpha: x\nmid: true\nzeta: 1",
	}, "\n\n")
	assert.Equal(t, want, msgs[0].Content)
}

func TestBuild_Deterministic(t *testing.T) {
	a := NewAssembler(2000, 5)
	first := a.Build(fullInput())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, a.Build(fullInput()))
	}
}

func TestBuild_OmitsAbsentBlocks(t *testing.T) {
	a := NewAssembler(2000, 5)
	msgs := a.Build(Input{
		SystemPrompt: "persona",
		Situation:    &core.SituationalState{},
		UserText:     "hi",
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.NotContains(t, msgs[0].Content, "What you remember")
	assert.NotContains(t, msgs[0].Content, "Current Game State")
}

func TestBuild_ZeroValuesStillRendered(t *testing.T) {
	a := NewAssembler(2000, 5)
	msgs := a.Build(Input{
		SystemPrompt: "p",
		Situation:    &core.SituationalState{PlayerHealth: intPtr(0), PlayerReputation: intPtr(-5)},
		UserText:     "hi",
	})
	assert.Contains(t, msgs[0].Content, "Player health: 0%\nPlayer reputation: -5")
}

func TestBuild_TruncatesDocuments(t *testing.T) {
	a := NewAssembler(2000, 5)
	body := strings.Repeat("é", 5000)
	msgs := a.Build(Input{
		SystemPrompt: "p",
		Documents:    []core.Document{{Filename: "big.txt", Content: body}},
		UserText:     "hi",
	})

	_, inserted, found := strings.Cut(msgs[0].Content, "### big.txt\n")
	require.True(t, found)
	assert.Equal(t, 2000, utf8.RuneCountInString(inserted))
}

func TestBuild_HistoryCappedToLastK(t *testing.T) {
	a := NewAssembler(2000, 3)
	var history []core.Message
	for _, s := range []string{"1", "2", "3", "4", "5"} {
		history = append(history, core.UserMessage(s))
	}

	msgs := a.Build(Input{SystemPrompt: "p", History: history, UserText: "now"})
	require.Len(t, msgs, 5)
	assert.Equal(t, "3", msgs[1].Content)
	assert.Equal(t, "5", msgs[3].Content)
	assert.Equal(t, "now", msgs[4].Content)
}

func TestBuild_CrossPersonaNote(t *testing.T) {
	a := NewAssembler(2000, 5)
	msgs := a.Build(Input{SystemPrompt: "p", SenderName: "Elara", UserText: "hail"})
	assert.True(t, strings.HasSuffix(msgs[0].Content,
		"**Note:** This message is from Elara, another character in the world. Respond as if speaking to them directly."))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 3, "hel"},
		{"hello", 5, "hello"},
		{"hello", 10, "hello"},
		{"日本語テキスト", 3, "日本語"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.limit))
	}
}
