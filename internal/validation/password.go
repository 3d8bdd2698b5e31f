package validation

import (
	"errors"
	"strings"
)

// ValidatePassword validates password length and blocks common patterns
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	// Upper bound keeps well below bcrypt's 72 byte truncation
	if len(password) > 20 {
		return errors.New("password must not exceed 20 characters")
	}

	lower := strings.ToLower(password)
	commonPatterns := []string{
		"password", "123456", "qwerty", "letmein",
	}

	for _, pattern := range commonPatterns {
		if strings.Contains(lower, pattern) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}

	return nil
}
