package conv

import (
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions   = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags    = mdhtml.CommonFlags | mdhtml.HrefTargetBlank
	tgPolicy     = bluemonday.NewPolicy()
	speechPolicy = bluemonday.StrictPolicy()
)

func init() {
	// Allowed tags https://core.telegram.org/bots/api#html-style
	tgPolicy.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	tgPolicy.AllowAttrs("href").OnElements("a")
	tgPolicy.AllowAttrs("class").OnElements("code")

	// *stage directions* and code are not spoken
	speechPolicy.SkipElementsContent("em", "i", "code", "pre")
}

func render(md string) []byte {
	p := parser.NewWithExtensions(extensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: htmlFlags})
	return markdown.Render(p.Parse([]byte(md)), renderer)
}

func MarkdownToTelegramHTML(md string) string {
	return string(tgPolicy.SanitizeBytes(render(md)))
}

// MarkdownToSpeech flattens a persona reply into the text a voice should read.
func MarkdownToSpeech(md string) string {
	plain := html.UnescapeString(string(speechPolicy.SanitizeBytes(render(md))))
	return strings.Join(strings.Fields(plain), " ")
}
