// Package normalize cleans user-supplied contact details before they are
// stored or compared.
package normalize

import (
	"regexp"
	"strings"
)

var (
	whitespace     = regexp.MustCompile(`\s+`)
	phoneNoise     = regexp.MustCompile(`[\s\-\(\)]`)
	phoneShape     = regexp.MustCompile(`^(\+?237)?[0-9]{9,}$`)
	cameroonPhones = []*regexp.Regexp{
		regexp.MustCompile(`^(\+237|237)?[2368]\d{8}$`),
		regexp.MustCompile(`^(\+237|237)?6[5-9]\d{7}$`),
		regexp.MustCompile(`^(\+237|237)?2[2-3]\d{7}$`),
		regexp.MustCompile(`^(\+237|237)?3[3-4]\d{7}$`),
	}
)

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone strips separators and brings numbers to the +237 international form
// when they look like local Cameroon numbers. It reports false when the
// result does not have the shape of a Cameroon number.
func Phone(s string) (string, bool) {
	phone := whitespace.ReplaceAllString(strings.TrimSpace(s), "")
	phone = phoneNoise.ReplaceAllString(phone, "")
	if phone == "" || !phoneShape.MatchString(phone) {
		return phone, false
	}
	switch {
	case strings.HasPrefix(phone, "237"):
		phone = "+" + phone
	case strings.HasPrefix(phone, "+237"):
	case strings.HasPrefix(phone, "6"), strings.HasPrefix(phone, "2"):
		phone = "+237" + phone
	}
	return phone, true
}

// IsCameroonPhone reports whether s matches one of the national numbering patterns.
func IsCameroonPhone(s string) bool {
	if s == "" {
		return false
	}
	cleaned := phoneNoise.ReplaceAllString(s, "")
	for _, re := range cameroonPhones {
		if re.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// Text trims s and collapses internal runs of whitespace.
func Text(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}
