package charset

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pscheid92/fontsubset/internal/domain"
)

// Selection is either free text or a preset. Preset wins when both are set.
type Selection struct {
	Text   string
	Preset Preset
}

// Resolve turns a selection into an ordered string of unique characters that
// all appear in chars. Characters missing from chars are dropped silently.
func Resolve(sel Selection, chars []string) string {
	if sel.Preset == PresetAllAvailable {
		return strings.Join(chars, "")
	}

	available := runeSet(chars)
	if sel.Preset != "" {
		return keep(Dedupe(sel.Preset.expand()), available)
	}
	return Dedupe(matchText(sel.Text, available))
}

// matchText keeps the characters of typed text that chars can render. Each
// normalization segment is taken as typed when every rune of it is available;
// otherwise its composed form is used if that is a single available rune, so a
// decomposed "e" + U+0301 still selects "é".
func matchText(text string, available map[rune]struct{}) string {
	var b strings.Builder
	for text != "" {
		n := norm.NFC.NextBoundaryInString(text, true)
		if n <= 0 {
			n = len(text)
		}
		seg := text[:n]
		text = text[n:]

		if kept := keep(seg, available); kept == seg {
			b.WriteString(seg)
			continue
		}
		if composed := []rune(norm.NFC.String(seg)); len(composed) == 1 {
			if _, ok := available[composed[0]]; ok {
				b.WriteRune(composed[0])
				continue
			}
		}
		b.WriteString(keep(seg, available))
	}
	return b.String()
}

func keep(text string, available map[rune]struct{}) string {
	var b strings.Builder
	for _, r := range text {
		if _, ok := available[r]; ok {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func runeSet(chars []string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(chars))
	for _, c := range chars {
		for _, r := range c {
			set[r] = struct{}{}
		}
	}
	return set
}

// Dedupe keeps the first occurrence of every code point of text, in order.
// Code points are never rewritten.
func Dedupe(text string) string {
	seen := make(map[rune]struct{}, len(text))
	var b strings.Builder
	for _, r := range text {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		b.WriteRune(r)
	}
	return b.String()
}

// Domain returns the character set used to resolve selections for a session:
// the first uploaded font's. Fonts in one session are assumed to share a
// compatible alphabet.
func Domain(fonts []domain.FontRecord) []string {
	if len(fonts) == 0 {
		return nil
	}
	return fonts[0].CharacterSet
}

// Union is the set of characters present in at least one font.
func Union(fonts []domain.FontRecord) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, f := range fonts {
		for r := range runeSet(f.CharacterSet) {
			set[r] = struct{}{}
		}
	}
	return set
}

// Missing returns the characters of selection that are not in set, in order.
func Missing(selection string, set map[rune]struct{}) []rune {
	var missing []rune
	for _, r := range selection {
		if _, ok := set[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
