package charset

import (
	"fmt"
	"strings"

	"github.com/pscheid92/fontsubset/internal/domain"
)

// Preset names a built-in character selection rule.
type Preset string

const (
	PresetDefaultEnglish Preset = "default-english"
	PresetAlphanumeric   Preset = "alphanumeric"
	PresetNumbers        Preset = "numbers"
	PresetUppercase      Preset = "uppercase"
	PresetLowercase      Preset = "lowercase"
	PresetPunctuation    Preset = "punctuation"
	PresetAllAvailable   Preset = "all-available"
)

const (
	uppercase   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercase   = "abcdefghijklmnopqrstuvwxyz"
	digits      = "0123456789"
	punctuation = ".,;:!?\"'()[]{}/*-+=<>@#$%^&_|\\`~"
)

var presetOrder = []Preset{
	PresetDefaultEnglish,
	PresetAlphanumeric,
	PresetNumbers,
	PresetUppercase,
	PresetLowercase,
	PresetPunctuation,
	PresetAllAvailable,
}

// Presets lists every built-in preset in display order.
func Presets() []Preset {
	return append([]Preset(nil), presetOrder...)
}

// ParsePreset accepts a preset name. "all" is kept as an alias of all-available.
func ParsePreset(name string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(name)))
	if p == "all" {
		return PresetAllAvailable, nil
	}
	for _, known := range presetOrder {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownPreset, name)
}

// expand returns the canonical character list of p. all-available has no
// fixed list and is handled by the resolver.
func (p Preset) expand() string {
	switch p {
	case PresetDefaultEnglish:
		return defaultEnglish
	case PresetAlphanumeric:
		return uppercase + lowercase + digits
	case PresetNumbers:
		return digits
	case PresetUppercase:
		return uppercase
	case PresetLowercase:
		return lowercase
	case PresetPunctuation:
		return punctuation
	default:
		return ""
	}
}

// Basic Latin printable range, Latin-1 Supplement and the extra
// Windows-1252 letters (Œ œ Š š Ÿ Ž ž).
var defaultEnglish = func() string {
	var b strings.Builder
	for r := rune(0x0020); r <= 0x007E; r++ {
		b.WriteRune(r)
	}
	for r := rune(0x00A0); r <= 0x00FF; r++ {
		b.WriteRune(r)
	}
	for _, r := range []rune{0x0152, 0x0153, 0x0160, 0x0161, 0x0178, 0x017D, 0x017E} {
		b.WriteRune(r)
	}
	return b.String()
}()
