package repository

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/debemdeboas/postkey/internal/model"
)

const (
	// KeyAlphabet leaves out 0/O, 1/I/L so keys survive being read aloud.
	KeyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	KeyLength   = 8
)

type KeyGenerator func() (model.TemplateKey, error)

// GenerateKey draws KeyLength characters from KeyAlphabet. Uniqueness is
// checked by the repository, not assumed.
func GenerateKey() (model.TemplateKey, error) {
	var sb strings.Builder
	sb.Grow(KeyLength)

	max := big.NewInt(int64(len(KeyAlphabet)))
	for i := 0; i < KeyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("error generating key: %w", err)
		}
		sb.WriteByte(KeyAlphabet[n.Int64()])
	}

	return model.TemplateKey(sb.String()), nil
}

// NormalizeKey trims and upper-cases user input so typed keys match.
func NormalizeKey(raw string) model.TemplateKey {
	return model.TemplateKey(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsWellFormedKey reports whether key could have been produced by
// GenerateKey.
func IsWellFormedKey(key model.TemplateKey) bool {
	if len(key) != KeyLength {
		return false
	}
	for _, c := range string(key) {
		if !strings.ContainsRune(KeyAlphabet, c) {
			return false
		}
	}
	return true
}
