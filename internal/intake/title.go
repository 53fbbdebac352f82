package intake

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleWordLimit caps display titles so queue listings stay readable.
const titleWordLimit = 8

// deriveTitle builds a display title from the leading words of the prompt.
// Punctuation is dropped and separator runs collapse to single spaces.
func deriveTitle(prompt string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range prompt {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == ',' || r == ':':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	words := strings.Fields(cleaned.String())
	if len(words) == 0 {
		return "Untitled Reel"
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
