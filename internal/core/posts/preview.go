package posts

import (
	"strings"

	"github.com/rivo/uniseg"
)

// DefaultPreviewLength is the number of characters shown of a post's content in the list
const DefaultPreviewLength = 120

const ellipsis = "…"

// Preview shortens content to at most max user-perceived characters, cutting on
// grapheme boundaries so emoji and combined Hangul never split. Truncated output ends
// with an ellipsis, which counts toward max.
func Preview(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 || uniseg.GraphemeClusterCount(content) <= max {
		return content
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(content)
	for n := 0; n < max-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return strings.TrimRightFunc(b.String(), isSpace) + ellipsis
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
