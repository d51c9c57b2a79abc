// Package password implements the password strength policy shared by
// registration and password reset.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

const defaultMinLength = 8

// Subject carries the account attributes a password must not resemble.
type Subject struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// Policy validates plaintext passwords against a fixed rule set.
type Policy struct {
	minLength int
	common    map[string]struct{}
}

// NewPolicy builds a policy. minLength <= 0 falls back to 8.
func NewPolicy(minLength int) *Policy {
	if minLength <= 0 {
		minLength = defaultMinLength
	}
	common := make(map[string]struct{}, len(commonPasswords))
	for _, p := range commonPasswords {
		common[p] = struct{}{}
	}
	return &Policy{minLength: minLength, common: common}
}

// Validate returns every violated rule, or nil when the password is acceptable.
func (p *Policy) Validate(plaintext string, subject Subject) []string {
	var violations []string

	if len([]rune(plaintext)) < p.minLength {
		violations = append(violations, fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.minLength))
	}
	if attr, ok := similarAttribute(plaintext, subject); ok {
		violations = append(violations, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	if _, ok := p.common[strings.ToLower(plaintext)]; ok {
		violations = append(violations, "This password is too common.")
	}
	if plaintext != "" && isNumeric(plaintext) {
		violations = append(violations, "This password is entirely numeric.")
	}
	if !hasLetter(plaintext) {
		violations = append(violations, "This password must contain at least one letter.")
	}

	return violations
}

// maxSimilarity is the quick ratio at or above which a password counts as too
// close to an account attribute.
const maxSimilarity = 0.7

func similarAttribute(plaintext string, subject Subject) (string, bool) {
	lowered := strings.ToLower(plaintext)
	if lowered == "" {
		return "", false
	}
	candidates := []struct {
		name  string
		value string
	}{
		{"username", subject.Username},
		{"email address", subject.Email},
		{"first name", subject.FirstName},
		{"last name", subject.LastName},
	}
	for _, c := range candidates {
		for _, part := range attributeParts(c.value) {
			if negligiblePart(lowered, part) {
				continue
			}
			if quickRatio(lowered, part) >= maxSimilarity {
				return c.name, true
			}
		}
	}
	return "", false
}

// attributeParts returns the whole attribute followed by its alphanumeric
// fragments, so "ana.cruz@ustp.edu" is checked as a whole and as ana, cruz, ustp and edu.
func attributeParts(value string) []string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil
	}
	parts := []string{value}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) > 1 {
		parts = append(parts, fields...)
	}
	return parts
}

// negligiblePart reports parts so short next to the password that the ratio
// says nothing about resemblance.
func negligiblePart(plaintext, part string) bool {
	pwdLen := float64(len([]rune(plaintext)))
	partLen := float64(len([]rune(part)))
	return pwdLen >= 10*partLen && partLen < maxSimilarity/2*pwdLen
}

// quickRatio is 2*M/T where M counts characters shared by both strings
// (with multiplicity) and T is their combined length.
func quickRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(rb))
	for _, r := range rb {
		avail[r]++
	}
	matches := 0
	for _, r := range ra {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

var commonPasswords = []string{
	"password", "password1", "password123", "passw0rd", "p@ssw0rd",
	"12345678", "123456789", "1234567890", "87654321", "11111111",
	"qwerty", "qwerty123", "qwertyuiop", "asdfghjkl", "zxcvbnm",
	"iloveyou", "admin123", "welcome1", "welcome123", "letmein",
	"abc12345", "abcd1234", "monkey123", "dragon123", "sunshine",
	"football", "baseball", "princess", "superman", "trustno1",
	"changeme", "student1", "student123", "default1", "secret123",
}
