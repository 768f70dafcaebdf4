// Package passgen generates random passwords from a fixed alphabet.
package passgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/psm/internal/common"
)

// Type selects the alphabet.
type Type int

const (
	Simple Type = iota + 1
	Complex
)

const (
	MinLength = 1
	MaxLength = 100

	simpleAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	complexAlphabet = simpleAlphabet + "_!#$%^&()-+=*"
)

func (t Type) String() string {
	switch t {
	case Simple:
		return "simple"
	case Complex:
		return "complex"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Alphabet returns the symbols a password of type t is drawn from, or ""
// for an unknown type.
func (t Type) Alphabet() string {
	switch t {
	case Simple:
		return simpleAlphabet
	case Complex:
		return complexAlphabet
	default:
		return ""
	}
}

// ParseType accepts "simple" or "complex" in any case.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return Simple, nil
	case "complex":
		return Complex, nil
	default:
		return 0, fmt.Errorf("%w: password type %q", common.ErrInvalidArgument, s)
	}
}

// Generator is safe for concurrent use as long as its reader is.
type Generator struct {
	rnd io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{rnd: rand.Reader}
}

// NewWithReader is used by tests to inject a deterministic source.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rnd: r}
}

// Generate draws every character independently and uniformly from the
// alphabet of t. It never clamps: a length outside [MinLength, MaxLength]
// or an unknown type is an error.
func (g *Generator) Generate(length int, t Type) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: length %d is outside [%d, %d]", common.ErrInvalidArgument, length, MinLength, MaxLength)
	}
	alphabet := t.Alphabet()
	if alphabet == "" {
		return "", fmt.Errorf("%w: unknown password type %d", common.ErrInvalidArgument, int(t))
	}

	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(g.rnd, max)
		if err != nil {
			return "", fmt.Errorf("random source: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
