package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\x{2009}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// typographic replacements applied after NFC normalization
var replacements = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", "\"",
	"\u201d", "\"",
	"\u201e", "\"",
	"\u00ab", "\"",
	"\u00bb", "\"",
	"\u2013", "-",
	"\u2014", "-",
)

// NormalizeText cleans raw engine output. It applies NFC normalization,
// drops zero-width and control characters (newlines and tabs survive),
// straightens typographic quotes and dashes, collapses runs of spaces,
// trims every line and squeezes more than one empty line.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	s = replacements.Replace(b.String())

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
