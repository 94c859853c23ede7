package source

import (
	"html"
	"strings"
)

// StripHTML converts an HTML fragment to plain text: tags are dropped, block
// boundaries become newlines, entities are unescaped. Good enough for job
// descriptions; not a general-purpose HTML parser.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	var tag strings.Builder
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			if isBlockTag(tag.String()) {
				b.WriteByte('\n')
			}
		case inTag:
			tag.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	text := html.UnescapeString(b.String())

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isBlockTag(tag string) bool {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return false
	}
	tag = strings.Trim(strings.ToLower(fields[0]), "/")
	switch tag {
	case "p", "br", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "tr":
		return true
	}
	return false
}
