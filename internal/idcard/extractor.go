package idcard

import (
	"regexp"
	"strings"

	"idscan/internal/textnorm"
)

// Extract reads the value of one labelled field. The first line carrying any
// of the label's variants anchors the search; later occurrences are ignored.
// A missing value is reported as false, never as an error.
func Extract(lines []textnorm.Line, spec LabelSpec) (string, bool) {
	variants := foldVariants(spec.Variants)
	if len(variants) == 0 {
		return "", false
	}

	for i, line := range lines {
		folded, ends := textnorm.FoldOffsets(line.Text)
		end, found := labelEnd(folded, variants)
		if !found {
			continue
		}

		rest := strings.TrimSpace(strings.TrimLeft(remainder(line.Text, ends, end), " :"))
		after := lines[i+1:]

		switch spec.Strategy {
		case SingleToken:
			return singleToken(rest, after)
		case BoundedBlock:
			return boundedBlock(after, spec)
		default:
			if v, ok := sameLine(rest, folded, variants); ok {
				return v, true
			}
			return continuation(after, spec, variants)
		}
	}
	return "", false
}

// ExtractAll runs Extract for every entry of Labels.
func ExtractAll(lines []textnorm.Line) map[string]string {
	out := make(map[string]string, len(Labels))
	for _, spec := range Labels {
		if v, ok := Extract(lines, spec); ok {
			out[spec.Field] = v
		}
	}
	return out
}

func foldVariants(variants []string) []string {
	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		f := textnorm.Fold(v)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// labelEnd returns the folded byte offset where the label text on a line
// ends. The earliest variant wins; among variants starting at the same place
// the longest one does, so "Nume/Nom" is consumed as a whole.
func labelEnd(folded string, variants []string) (int, bool) {
	start, end := -1, 0
	for _, v := range variants {
		at := strings.Index(folded, v)
		if at < 0 {
			continue
		}
		if start < 0 || at < start || at == start && at+len(v) > end {
			start, end = at, at+len(v)
		}
	}
	return end, start >= 0
}

func remainder(text string, ends []int, end int) string {
	if end <= 0 {
		return text
	}
	if end > len(ends) {
		return ""
	}
	return text[ends[end-1]:]
}

// distinctLabels counts the variants present on a line that are not merely
// part of a longer variant also present.
func distinctLabels(folded string, variants []string) int {
	var present []string
	for _, v := range variants {
		if strings.Contains(folded, v) {
			present = append(present, v)
		}
	}
	n := 0
	for _, v := range present {
		covered := false
		for _, w := range present {
			if w != v && strings.Contains(w, v) {
				covered = true
				break
			}
		}
		if !covered {
			n++
		}
	}
	return n
}

func sameLine(rest, folded string, variants []string) (string, bool) {
	if rest == "" || strings.HasPrefix(rest, "/") {
		return "", false
	}
	// Several captions on one line is a multi-language header, not a value.
	if distinctLabels(folded, variants) > 1 {
		return "", false
	}
	if strings.Contains(rest, "/") {
		for _, seg := range strings.Split(rest, "/") {
			seg = strings.TrimSpace(seg)
			if seg == "" || containsAny(textnorm.Fold(seg), variants) || IsLabelHeader(seg) {
				continue
			}
			return seg, true
		}
		return "", false
	}
	if IsLabelHeader(rest) {
		return "", false
	}
	return rest, true
}

func continuation(after []textnorm.Line, spec LabelSpec, variants []string) (string, bool) {
	var parts []string
	seen := make(map[string]bool)
	skipped := false

	for j, line := range after {
		if j >= spec.window() {
			break
		}
		text := line.Text
		if spec.Noise != nil && spec.Noise.MatchString(text) {
			continue
		}
		if matchesAny(spec.Skip, text) {
			continue
		}
		folded := textnorm.Fold(text)
		// A caption split over two lines repeats the field's own label.
		if containsWord(folded, variants) {
			continue
		}
		if IsLabelHeader(text) {
			if spec.AllowLabelSkip && !skipped {
				skipped = true
				continue
			}
			break
		}
		if IsMRZLike(text) {
			break
		}
		if seen[folded] {
			continue
		}
		seen[folded] = true
		parts = append(parts, text)
	}

	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// singleToken scans to the end of the text; stacked captions may sit between
// the label and its value.
func singleToken(rest string, after []textnorm.Line) (string, bool) {
	if IsSexToken(rest) {
		return rest, true
	}
	if IsShortToken(rest) && !strings.HasPrefix(rest, "/") && !IsLabelHeader(rest) {
		return rest, true
	}

	for _, line := range after {
		text := line.Text
		if IsSexToken(text) {
			return text, true
		}
		if IsLabelHeader(text) {
			continue
		}
		if IsShortToken(text) {
			return text, true
		}
	}
	return "", false
}

func boundedBlock(after []textnorm.Line, spec LabelSpec) (string, bool) {
	var parts []string
	for j, line := range after {
		if j >= spec.window() {
			break
		}
		if spec.Stop != nil && spec.Stop.MatchString(textnorm.Fold(line.Text)) {
			break
		}
		parts = append(parts, line.Text)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

func containsAny(folded string, variants []string) bool {
	for _, v := range variants {
		if strings.Contains(folded, v) {
			return true
		}
	}
	return false
}

// containsWord reports whether any variant occurs in folded with no letter or
// digit directly before or after it.
func containsWord(folded string, variants []string) bool {
	for _, v := range variants {
		for from := 0; from < len(folded); {
			at := strings.Index(folded[from:], v)
			if at < 0 {
				break
			}
			at += from
			end := at + len(v)
			if (at == 0 || !isWordByte(folded[at-1])) && (end == len(folded) || !isWordByte(folded[end])) {
				return true
			}
			from = at + 1
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
