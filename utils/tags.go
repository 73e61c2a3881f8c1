package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// TagMappings maps a template tag to the prospect attribute that fills it. A
// nil-equivalent empty value means the tag is filled from company
// configuration instead of prospect data.
var TagMappings = map[string]string{
	"FirstName":             "first_name",
	"LastName":              "last_name",
	"StreetAddress":         "property_address",
	"PropertyStreetAddress": "property_address",
	"PropertyAddressFull":   "address_display",
	"City":                  "property_city",
	"State":                 "property_state",
	"ZipCode":               "property_zip",
	"Custom1":               "custom1",
	"NAME":                  "first_name",
	"ADDRESS":               "property_address",
	"CompanyName":           "",
	"UserFirstName":         "",
}

// Opt-out footers appended to bulk messages. Twilio traffic uses the short
// carrier-registered variant.
const (
	OptOutLanguage       = " Reply STOP for opt-out."
	OptOutLanguageTwilio = " reply stop to end."
)

// BannedWords can never appear in a template body.
var BannedWords = []string{
	"cash", "cheap", "urgent", "guarantee", "winner",
}

// SpamWords trip carrier content filters and are blocked up front.
var SpamWords = []string{
	"free money", "act now", "limited time", "no obligation",
}

var tagPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// GetTags returns all the tags used in a message string. Indexed tags such as
// {CompanyName:0} are reported by their base name.
func GetTags(message string) []string {
	matches := tagPattern.FindAllStringSubmatch(message, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := m[1]
		if i := strings.Index(tag, ":"); i >= 0 {
			tag = tag[:i]
		}
		tags = append(tags, tag)
	}
	return tags
}

// AllTagsValid reports whether every tag in the message is a known merge tag
// and the braces are balanced.
func AllTagsValid(message string) bool {
	if strings.Count(message, "{") != strings.Count(message, "}") {
		return false
	}
	for _, tag := range GetTags(message) {
		if _, ok := TagMappings[tag]; !ok {
			return false
		}
	}
	return true
}

// HasTag reports whether the message uses the given merge tag.
func HasTag(message, tag string) bool {
	for _, t := range GetTags(message) {
		if t == tag {
			return true
		}
	}
	return false
}

func findWords(message string, words []string) []string {
	var found []string
	lower := strings.ToLower(message)
	for _, word := range words {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		if re.MatchString(lower) {
			found = append(found, word)
		}
	}
	return found
}

// FindBannedWords returns any banned words present in the template message.
func FindBannedWords(message string) []string {
	return findWords(message, BannedWords)
}

// FindSpamWords returns any spam words/phrases present in the template
// message.
func FindSpamWords(message string) []string {
	return findWords(message, SpamWords)
}

// ParseIndex parses the N of an indexed tag like {CompanyName:N}. Anything
// non-numeric falls back to 0.
func ParseIndex(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || i < 0 {
		return 0
	}
	return i
}
