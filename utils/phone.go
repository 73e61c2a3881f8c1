package utils

import "strings"

// CleanPhone normalizes a phone number to its bare 10 digits, stripping the
// country code and any formatting. Returns empty when the input can't be a US
// number.
func CleanPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	cleaned := digits.String()
	if len(cleaned) == 11 && cleaned[0] == '1' {
		cleaned = cleaned[1:]
	}
	if len(cleaned) != 10 {
		return ""
	}
	return cleaned
}

// WrongNumberPhrases mark an inbound reply as a wrong-number correction.
var WrongNumberPhrases = []string{"wrong number", "wrong person"}

// AutoDeadWords are single words that mark an inbound reply as a dead lead.
var AutoDeadWords = []string{
	"no", "nope", "lose", "sold", "off", "dont", "stop", "sorry", "remove",
	"not", "alone", "spam", "never", "quit", "end", "unsubscribe",
	"removeme", "unsub",
}

// ContainsWrongNumberPhrase reports whether the message looks like a
// wrong-number reply.
func ContainsWrongNumberPhrase(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range WrongNumberPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ContainsAutoDeadWord reports whether any word of the message is on the
// auto-dead list.
func ContainsAutoDeadWord(message string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}
		return ' '
	}, strings.ToLower(message))

	for _, word := range strings.Fields(cleaned) {
		for _, dead := range AutoDeadWords {
			if word == dead {
				return true
			}
		}
	}
	return false
}
