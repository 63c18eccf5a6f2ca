package speech

import (
	"strings"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// DefaultLanguage is used when no voice matches the preferred language
const DefaultLanguage = "en"

// MaleVoices returns voices declared male, or whose name mentions "male"
// but not "female" when no gender is declared
func MaleVoices(voices []types.Voice) []types.Voice {
	return filterVoices(voices, func(v types.Voice) bool {
		if v.Gender != "" {
			return strings.EqualFold(v.Gender, "male")
		}
		name := strings.ToLower(v.Name)
		return strings.Contains(name, "male") && !strings.Contains(name, "female")
	})
}

// FemaleVoices returns voices declared female, or whose name mentions
// "female" when no gender is declared
func FemaleVoices(voices []types.Voice) []types.Voice {
	return filterVoices(voices, func(v types.Voice) bool {
		if v.Gender != "" {
			return strings.EqualFold(v.Gender, "female")
		}
		return strings.Contains(strings.ToLower(v.Name), "female")
	})
}

// FilterByGender applies MaleVoices or FemaleVoices; any other gender
// returns voices unchanged
func FilterByGender(voices []types.Voice, gender string) []types.Voice {
	switch strings.ToLower(gender) {
	case "male":
		return MaleVoices(voices)
	case "female":
		return FemaleVoices(voices)
	default:
		return voices
	}
}

// SelectLanguage returns the voices supporting preferred, falling back to
// English voices when none do
func SelectLanguage(voices []types.Voice, preferred string) []types.Voice {
	if preferred != "" {
		if matched := voicesForLanguage(voices, preferred); len(matched) > 0 {
			return matched
		}
	}
	return voicesForLanguage(voices, DefaultLanguage)
}

func voicesForLanguage(voices []types.Voice, lang string) []types.Voice {
	base := baseLanguage(lang)
	return filterVoices(voices, func(v types.Voice) bool {
		for _, l := range v.Languages {
			if baseLanguage(l) == base {
				return true
			}
		}
		return false
	})
}

// baseLanguage reduces "en-US" or "en_GB" to "en"
func baseLanguage(lang string) string {
	lang = strings.ToLower(lang)
	if idx := strings.IndexAny(lang, "-_"); idx != -1 {
		lang = lang[:idx]
	}
	return lang
}

func filterVoices(voices []types.Voice, keep func(types.Voice) bool) []types.Voice {
	result := make([]types.Voice, 0, len(voices))
	for _, v := range voices {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}
