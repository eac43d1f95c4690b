package avatar3d

import (
	"math"
	"strings"
	"unicode"
)

const (
	textVowelStep = 0.11
	textSpaceStep = 0.03
	textOtherStep = 0.02
)

// VisemesFromText approximates a viseme timeline from plain text when no
// synthesis timing is available. Every vowel opens the mouth for a fixed
// step; whitespace and other characters only advance the clock.
func VisemesFromText(text string) []Viseme {
	var visemes []Viseme
	t := 0.0

	for _, r := range strings.ToLower(text) {
		switch {
		case strings.ContainsRune("aiueo", r):
			visemes = append(visemes, Viseme{
				Phoneme: string(r),
				Start:   roundMillis(t),
				End:     roundMillis(t + textVowelStep),
			})
			t += textVowelStep
		case unicode.IsSpace(r):
			t += textSpaceStep
		default:
			t += textOtherStep
		}
	}

	return visemes
}

func roundMillis(s float64) float64 {
	return math.Round(s*1000) / 1000
}
