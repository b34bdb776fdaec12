package engine

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/anatolykoptev/go-kit/strutil"
)

var (
	wsRe   = regexp.MustCompile(`[ \t]+`)
	nlRe   = regexp.MustCompile(`\n{3,}`)
	tagRe  = regexp.MustCompile(`(?s)<[^>]*>`)
	entRep = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
)

// Truncate cuts s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return strutil.TruncateWith(s, max-3, "") + "..."
}

// TruncateRunes caps s at limit runes with an arbitrary suffix, "" for
// hard field limits where nothing extra may be appended.
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// CollapseSpace normalizes runs of spaces/tabs and excessive blank lines.
func CollapseSpace(s string) string {
	s = wsRe.ReplaceAllString(s, " ")
	s = nlRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// StripTags removes HTML tags and decodes the common entities. Good enough
// for turning a job description fragment into prompt text.
func StripTags(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = entRep.Replace(s)
	return CollapseSpace(s)
}

// MarkdownFromHTML converts an HTML fragment to markdown, which keeps list
// and heading structure visible in prompts. Falls back to StripTags when the
// converter chokes on the fragment.
func MarkdownFromHTML(fragment string) string {
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil || strings.TrimSpace(md) == "" {
		return StripTags(fragment)
	}
	return CollapseSpace(md)
}
