// Package textnorm cleans raw OCR output into trimmed lines and provides the
// accent-insensitive folding used for label matching.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/unicode/norm"
)

// Line is one non-empty, whitespace-collapsed line of OCR text.
type Line struct {
	Text  string
	Index int
}

// Characters OCR engines commonly substitute on ID cards.
var substitutions = strings.NewReplacer(
	"\u00a0", " ", // no-break space
	"|", "I",
	"\u2019", "'", // right single quote
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
)

var (
	spaceRuns  = regexp.MustCompile(` {2,}`)
	lineBreaks = regexp.MustCompile(`\r\n|\r|\n`)
)

// Clean applies the character substitutions, collapses runs of spaces and
// trims the result.
func Clean(raw string) string {
	s := substitutions.Replace(raw)
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Lines splits raw OCR text into cleaned lines. Empty lines are dropped and
// indices are assigned after dropping.
func Lines(raw string) []Line {
	parts := lineBreaks.Split(Clean(raw), -1)
	lines := make([]Line, 0, len(parts))
	for _, p := range parts {
		text := strings.Join(strings.Fields(p), " ")
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Index: len(lines)})
	}
	return lines
}

// Texts returns the text of each line.
func Texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// Join concatenates line texts with sep.
func Join(lines []Line, sep string) string {
	return strings.Join(Texts(lines), sep)
}

var combining = runes.In(unicode.Mn)

// Fold decomposes s (NFKD), drops combining marks and upper-cases the rest,
// so "Cetățenie" and "CETATENIE" compare equal.
func Fold(s string) string {
	folded, _ := FoldOffsets(s)
	return folded
}

// FoldLower is Fold in lower case.
func FoldLower(s string) string {
	return strings.ToLower(Fold(s))
}

// FoldOffsets returns Fold(s) together with, for every byte of the folded
// string, the byte offset in s just past the rune that produced it. A match
// ending at folded byte i therefore ends at s[:ends[i-1]].
func FoldOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	ends := make([]int, 0, len(s))

	var buf [utf8.UTFMax]byte
	for i, r := range s {
		end := i + utf8.RuneLen(r)
		if r == utf8.RuneError {
			end = i + 1
		}
		if r < utf8.RuneSelf {
			b.WriteRune(unicode.ToUpper(r))
			ends = append(ends, end)
			continue
		}
		for _, d := range norm.NFKD.String(string(r)) {
			if combining.Contains(d) {
				continue
			}
			n := utf8.EncodeRune(buf[:], unicode.ToUpper(d))
			b.Write(buf[:n])
			for k := 0; k < n; k++ {
				ends = append(ends, end)
			}
		}
	}
	return b.String(), ends
}
