package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy        = bluemonday.StrictPolicy()
	usernameChars = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)
)

// SanitizeUsername removes any HTML and trims whitespace from username
func SanitizeUsername(username string) string {
	return strings.TrimSpace(policy.Sanitize(username))
}

// normalizeEmail lower-cases and trims an address; empty stays empty.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 32 || !usernameChars.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return ErrInvalidPassword
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
