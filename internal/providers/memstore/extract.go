package memstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/rpgai/internal/core"
)

const extractionSystemPrompt = "You are a memory extraction system for a role-playing game. Output only valid JSON."

type extractedFact struct {
	Fact     string `json:"fact"`
	Category string `json:"category"`
}

func buildExtractionPrompt(conversation string) string {
	return fmt.Sprintf(
		`Extract distinct, lasting facts about the user from the conversation. Output format: JSON list of objects {fact, category}. Categories: [preference, personal_fact, relationship, event]. Rules: 1. Ignore greetings, small talk and anything only the character said. 2. Facts must be self-contained (replace "he" or "I" with "User"). 3. Output [] when nothing is worth remembering. Conversation: %s`,
		conversation,
	)
}

func formatConversation(msgs []core.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == core.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		b.WriteString(strings.ToUpper(string(m.Role)))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func parseExtractionResponse(content string) ([]extractedFact, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var facts []extractedFact
	if err := json.Unmarshal([]byte(jsonStr), &facts); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}

	out := facts[:0]
	for _, f := range facts {
		f.Fact = strings.TrimSpace(f.Fact)
		if f.Fact == "" {
			continue
		}
		if f.Category == "" {
			f.Category = "personal_fact"
		}
		out = append(out, f)
	}
	return out, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}

// factID identifies a fact within its scope, so re-extracting the same
// fact is idempotent.
func factID(scope core.Scope, fact string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(fact), " "))
	sum := sha256.Sum256([]byte(scope.UserID + "\x00" + scope.AgentID() + "\x00" + norm))
	return hex.EncodeToString(sum[:16])
}
