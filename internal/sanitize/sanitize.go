// Package sanitize normalizes user supplied text before it is stored.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidEmail is returned when an address does not look like local@domain.tld
var ErrInvalidEmail = errors.New("invalid email")

var (
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	emailLocalStrip  = regexp.MustCompile(`[^a-zA-Z0-9._%+-]`)
	emailDomainStrip = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	nonASCIILetter   = regexp.MustCompile(`[^a-zA-Z]`)
)

// Text lowercases s and collapses whitespace runs into single spaces.
func Text(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Username keeps only the ASCII letters of name, lowercased, after
// stripping diacritics. The result is empty when name has no letters.
func Username(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	name = nonASCIILetter.ReplaceAllString(stripMarks(name), "")
	return strings.ToLower(name)
}

// Email lowercases and strips diacritics from email, validates it and
// removes characters that are not allowed in each part.
func Email(email string) (string, error) {
	email = stripMarks(strings.ToLower(email))
	if !emailPattern.MatchString(email) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	local, domain, _ := strings.Cut(email, "@")
	local = emailLocalStrip.ReplaceAllString(local, "")
	domain = emailDomainStrip.ReplaceAllString(domain, "")
	return local + "@" + domain, nil
}

// stripMarks decomposes s (NFKD) and drops combining marks.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
