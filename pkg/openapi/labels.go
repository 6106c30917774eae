package openapi

import (
	"strings"
	"unicode"
)

// LabelFor turns a property name into a sentence-case label:
// "firstName" and "first_name" both become "First name", "line2" becomes
// "Line 2". Acronym runs stay together ("userID" becomes "User id").
func LabelFor(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	runes := []rune(words[0])
	runes[0] = unicode.ToUpper(runes[0])
	words[0] = string(runes)
	return strings.Join(words, " ")
}

func splitWords(name string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if i > 0 && len(cur) > 0 && startsWord(runes[i-1], r) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

func startsWord(prev, r rune) bool {
	switch {
	case unicode.IsLower(prev) && unicode.IsUpper(r):
		return true
	case unicode.IsLetter(prev) && unicode.IsDigit(r):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(r):
		return true
	}
	return false
}
