package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLength is the longest display name a session may claim
const MaxUsernameLength = 15

// NormalizeUsername trims surrounding whitespace and validates the result.
// Usernames are free text: they are only unique while a session holds them.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", ErrInvalidUsername
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidUsername
		}
	}
	return name, nil
}
