// Package shortcode generates and validates the short codes that
// identify links.
package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// alphabet is the character set for generated codes. Alphanumeric
	// only, so codes survive copy-paste and URL encoding untouched.
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// GeneratedLength is the length of server-generated codes.
	// 62^7 is roughly 3.5 trillion combinations.
	GeneratedLength = 7

	// Custom code length bounds.
	MinCustomLength = 3
	MaxCustomLength = 10

	// maxAttempts bounds collision retries during generation.
	maxAttempts = 5
)

var (
	// ErrInvalidCode means a custom code violates the length or
	// character rules, or names a reserved route.
	ErrInvalidCode = errors.New("invalid short code")

	// ErrCodeTaken means the requested custom code already exists.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrExhausted means generation could not find a free code within
	// the retry budget.
	ErrExhausted = errors.New("could not generate a unique short code")
)

// reserved blocks custom codes that would shadow service routes.
var reserved = map[string]struct{}{
	"api":     {},
	"health":  {},
	"healthz": {},
	"readyz":  {},
	"metrics": {},
	"static":  {},
	"admin":   {},
}

// Store is the uniqueness oracle the generator consults.
type Store interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator produces unique short codes against a Store.
type Generator struct {
	store Store
}

// NewGenerator returns a Generator backed by store.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Generate returns a fresh random code that does not exist in the
// store at the time of checking. The caller must still handle a unique
// violation on insert; the check here only keeps retries cheap.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		code, err := randomCode(GeneratedLength)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := g.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code %q: %w", code, err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Claim validates a caller-chosen code and checks it is free.
// Returns ErrInvalidCode or ErrCodeTaken on rejection.
func (g *Generator) Claim(ctx context.Context, code string) error {
	if err := ValidateCustom(code); err != nil {
		return err
	}
	exists, err := g.store.CodeExists(ctx, code)
	if err != nil {
		return fmt.Errorf("check code %q: %w", code, err)
	}
	if exists {
		return ErrCodeTaken
	}
	return nil
}

// ValidateCustom checks a custom code against the length and character
// rules and the reserved route list. Matching against reserved names is
// case-insensitive.
func ValidateCustom(code string) error {
	if len(code) < MinCustomLength || len(code) > MaxCustomLength {
		return fmt.Errorf("%w: length must be %d-%d characters", ErrInvalidCode, MinCustomLength, MaxCustomLength)
	}
	for _, r := range code {
		if !isAlphanumeric(r) {
			return fmt.Errorf("%w: only letters and digits are allowed", ErrInvalidCode)
		}
	}
	if _, ok := reserved[strings.ToLower(code)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCode, code)
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func randomCode(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
