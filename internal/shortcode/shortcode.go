// Package shortcode generates and validates the short codes that identify links.
package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	Alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultLength = 7
	MinLength     = 3
	MaxLength     = 64
)

// largest multiple of len(Alphabet) that fits in a byte; bytes above it are
// rejected so every symbol is equally likely.
const rejectAbove = 256 - 256%len(Alphabet)

// Generator produces random short codes. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

type base62 struct{}

// NewBase62 returns a crypto/rand backed generator over Alphabet.
func NewBase62() Generator { return base62{} }

func (base62) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// Validate checks a caller-supplied custom code.
func Validate(code string) error {
	if code == "" {
		return errors.New("short code cannot be empty")
	}
	if len(code) < MinLength {
		return fmt.Errorf("short code too short (minimum %d characters)", MinLength)
	}
	if len(code) > MaxLength {
		return fmt.Errorf("short code too long (maximum %d characters)", MaxLength)
	}
	if code[0] == '-' || code[0] == '_' || code[len(code)-1] == '-' || code[len(code)-1] == '_' {
		return errors.New("short code cannot start or end with dash or underscore")
	}
	for _, c := range code {
		if !validChar(c) {
			return errors.New("short code contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

// Reserved reports whether code collides with a fixed route segment.
func Reserved(code string) bool {
	switch code {
	case "api", "r", "x", "metrics", "health":
		return true
	}
	return false
}

func validChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
