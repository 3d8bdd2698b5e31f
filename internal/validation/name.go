package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNicknameLength = 10

// ValidateNickname validates a public nickname
func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return errors.New("nickname is required")
	}

	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return errors.New("nickname is too long (max 10 characters)")
	}

	if strings.IndexFunc(nickname, unicode.IsSpace) >= 0 {
		return errors.New("nickname must not contain spaces")
	}

	return nil
}
