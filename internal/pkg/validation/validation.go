// Package validation holds the input rules for user accounts.
package validation

import (
	"regexp"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Letters, spaces, hyphens and apostrophes.
var fullnameRe = regexp.MustCompile(`^[A-Za-z\s\-']+$`)

// MinPasswordLength is also quoted in the validation error shown to users.
const MinPasswordLength = 8

func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailRe.MatchString(email)
}

// IsValidPassword requires MinPasswordLength characters including a letter, a digit
// and a punctuation or symbol character.
func IsValidPassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength {
		return false
	}
	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidFullname(fullname string) bool {
	return fullname != "" && len(fullname) <= 120 && fullnameRe.MatchString(fullname)
}
