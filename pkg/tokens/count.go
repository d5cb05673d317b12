package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

// perMessageOverhead approximates role and separator tokens of chat formats.
const perMessageOverhead = 4

func getTokenizer() (*tiktoken.Tiktoken, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding("cl100k_base")
	})
	return tk, tkErr
}

// Count returns the cl100k token count of text, or a rune based estimate
// when the encoding cannot be loaded.
func Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getTokenizer()
	if err != nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate is the fallback heuristic: about four characters per token.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// CountChat sums Count over message contents plus per-message overhead.
func CountChat(contents ...string) int {
	total := 0
	for _, c := range contents {
		total += Count(c) + perMessageOverhead
	}
	return total
}
