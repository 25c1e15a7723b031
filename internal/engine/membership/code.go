package membership

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"taskhub/internal/platform/provider"
)

const (
	// Invitation codes are read aloud and typed by hand, so look-alike
	// characters (0/O, 1/I/L) are left out.
	codeChars  = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength = 8
)

var (
	ErrInvalidCode = errors.New("invalid invitation code format")
	ErrCodeTaken   = errors.New("invitation code already taken")
)

func (s *Service) codeExists(ctx context.Context, code string) (bool, error) {
	docs, err := s.records.Read(ctx, provider.Invitations, provider.Filter{"code": code})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// generateCode returns customCode when it is valid and unused, otherwise a
// random code, retrying on collision and growing by one character if
// collisions persist.
func (s *Service) generateCode(ctx context.Context, customCode string) (string, error) {
	if customCode != "" {
		code := NormalizeCode(customCode)
		if !isValidCode(code) {
			return "", ErrInvalidCode
		}
		exists, err := s.codeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrCodeTaken
		}
		return code, nil
	}

	for i := 0; i < 5; i++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		exists, err := s.codeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	code, err := randomCode(codeLength + 1)
	if err != nil {
		return "", err
	}
	exists, err := s.codeExists(ctx, code)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.New("failed to generate unique invitation code")
	}
	return code, nil
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeChars)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeChars[n.Int64()]
	}
	return string(b), nil
}

// NormalizeCode upper-cases a code and drops separators users tend to type.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

func isValidCode(code string) bool {
	if len(code) < 4 || len(code) > 16 {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeChars, c) {
			return false
		}
	}
	return true
}
