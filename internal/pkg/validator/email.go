package validator

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

const minPasswordLength = 8

// ValidateEmail checks the address shape only; deliverability is the identity
// provider's concern.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email format")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return errors.New("invalid email domain")
	}

	return nil
}

// ValidatePassword requires at least eight characters with a letter and a digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.New("password too short")
	}

	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must mix letters and digits")
	}

	return nil
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
