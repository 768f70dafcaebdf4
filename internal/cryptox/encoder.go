package cryptox

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Deployment profiles that pick the login-password encoder.
const (
	ProfileProd = "prod"
	ProfileDev  = "dev"
	ProfileTest = "test"
)

// PasswordEncoder is the one-way scheme used for account login passwords.
type PasswordEncoder interface {
	Encode(raw string) (string, error)
	Matches(raw, encoded string) bool
}

// BcryptEncoder hashes with bcrypt.
type BcryptEncoder struct {
	Cost int
}

func (e BcryptEncoder) Encode(raw string) (string, error) {
	cost := e.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (e BcryptEncoder) Matches(raw, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw)) == nil
}

// PlainEncoder stores the raw value. Only for dev and test profiles.
type PlainEncoder struct{}

func (PlainEncoder) Encode(raw string) (string, error) { return raw, nil }

func (PlainEncoder) Matches(raw, encoded string) bool {
	return subtle.ConstantTimeCompare([]byte(raw), []byte(encoded)) == 1
}

var ErrUnknownProfile = errors.New("unknown profile")

// NewPasswordEncoder selects the login encoder for a deployment profile.
func NewPasswordEncoder(profile string) (PasswordEncoder, error) {
	switch profile {
	case ProfileProd:
		return BcryptEncoder{}, nil
	case ProfileDev, ProfileTest:
		return PlainEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
}
