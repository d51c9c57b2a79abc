package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	policy := NewPolicy(0)
	violations := policy.Validate("Str0ng!Pass", Subject{Username: "2021001", Email: "a@x.com", FirstName: "Ana", LastName: "Cruz"})
	assert.Empty(t, violations)
}

func TestPolicyReportsEveryViolation(t *testing.T) {
	policy := NewPolicy(8)
	violations := policy.Validate("1234", Subject{Username: "2021001"})
	assert.Len(t, violations, 3)
	assert.Contains(t, violations, "This password is too short. It must contain at least 8 characters.")
	assert.Contains(t, violations, "This password is entirely numeric.")
	assert.Contains(t, violations, "This password must contain at least one letter.")
}

func TestPolicyRejectsCommonPassword(t *testing.T) {
	violations := NewPolicy(8).Validate("Password123", Subject{})
	assert.Equal(t, []string{"This password is too common."}, violations)
}

func TestPolicySimilarity(t *testing.T) {
	policy := NewPolicy(8)
	cases := []struct {
		name     string
		password string
		subject  Subject
		expected string
	}{
		{"username inside password", "x2021001abc", Subject{Username: "2021001"}, "The password is too similar to the username."},
		{"email local part", "anacruzzz!9", Subject{Email: "anacruz@ustp.edu.ph"}, "The password is too similar to the email address."},
		{"last name", "Delacruz#77", Subject{LastName: "Dela Cruz"}, "The password is too similar to the last name."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, policy.Validate(tc.password, tc.subject), tc.expected)
		})
	}
}

func TestPolicyAllowsPasswordsSharingEmailDomain(t *testing.T) {
	policy := NewPolicy(8)
	subject := Subject{Username: "2021001", Email: "ana@gmail.com", FirstName: "Ana", LastName: "Cruz"}

	assert.Empty(t, policy.Validate("Welcome#2024x", subject))
	assert.Empty(t, policy.Validate("Comet!Tail88", subject))
}

func TestAttributeParts(t *testing.T) {
	assert.Equal(t, []string{"ana@gmail.com", "ana", "gmail", "com"}, attributeParts("Ana@Gmail.com"))
	assert.Equal(t, []string{"2021001"}, attributeParts("2021001"))
	assert.Empty(t, attributeParts(""))
}

func TestQuickRatio(t *testing.T) {
	assert.InDelta(t, 1.0, quickRatio("abc", "cab"), 1e-9)
	assert.InDelta(t, 0.0, quickRatio("abc", "xyz"), 1e-9)
	assert.InDelta(t, 14.0/18.0, quickRatio("x2021001abc", "2021001"), 1e-9)
}
