package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

const bulletRune = '•'

var (
	inlineMarks = strings.NewReplacer("**", "", "__", "", "`", "")
	// common typography outside cp1252 or better spelled in ASCII
	typography = strings.NewReplacer("→", "->", "←", "<-", "≈", "~")
)

// toCodePage converts UTF-8 text to the cp1252 bytes core fonts expect.
// Runes with no cp1252 form become '?'.
func toCodePage(s string) string {
	s = typography.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteByte(byte(r))
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// lineKind classifies a Markdown body line
type lineKind int

const (
	linePlain lineKind = iota
	lineBullet
	lineNumbered
	lineLabel
)

type bodyLine struct {
	kind   lineKind
	level  int // nesting depth, two spaces per level
	marker string
	text   string
}

// parseBodyLine strips Markdown markers from one itinerary line
func parseBodyLine(line string) bodyLine {
	trimmed := strings.TrimLeft(line, " ")
	level := (len(line) - len(trimmed)) / 2

	switch {
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "+ "):
		return bodyLine{kind: lineBullet, level: level, marker: string(bulletRune), text: cleanText(trimmed[2:])}
	case isNumbered(trimmed):
		dot := strings.IndexAny(trimmed, ".)")
		return bodyLine{kind: lineNumbered, level: level, marker: trimmed[:dot+1], text: cleanText(trimmed[dot+1:])}
	case len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**") &&
		!strings.Contains(trimmed[2:len(trimmed)-2], "**"):
		return bodyLine{kind: lineLabel, level: level, text: cleanText(trimmed)}
	default:
		return bodyLine{kind: linePlain, level: level, text: cleanText(trimmed)}
	}
}

func isNumbered(s string) bool {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	return i > 0 && i+1 < len(s) && (s[i] == '.' || s[i] == ')') && s[i+1] == ' '
}

func cleanText(s string) string {
	return strings.TrimSpace(inlineMarks.Replace(s))
}
