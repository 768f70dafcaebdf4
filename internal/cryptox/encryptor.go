package cryptox

import (
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// PasswordEncryptor is the reversible codec applied to entry passwords.
type PasswordEncryptor interface {
	Encrypt(plain string) (string, error)
	Decrypt(encrypted string) (string, error)
}

// AESPasswordEncryptor encrypts with AES-256-GCM. The key is derived once
// from the configured key and hex salt; every Encrypt call uses a new nonce,
// so equal plaintexts produce different ciphertexts.
type AESPasswordEncryptor struct {
	aead cipher.AEAD
}

// NewAESPasswordEncryptor validates the configured secrets and prepares the
// cipher. It is meant to be called at startup so bad settings fail fast.
func NewAESPasswordEncryptor(key, hexSalt string) (*AESPasswordEncryptor, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	salt, err := hex.DecodeString(hexSalt)
	if err != nil || len(salt) < minSaltBytes {
		return nil, ErrBadSalt
	}

	derived := DeriveKey([]byte(key), salt)
	aead, err := newGCM(derived)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &AESPasswordEncryptor{aead: aead}, nil
}

// Encrypt returns lowercase hex of nonce||ciphertext.
func (e *AESPasswordEncryptor) Encrypt(plain string) (string, error) {
	return hex.EncodeToString(seal(e.aead, []byte(plain))), nil
}

// Decrypt surfaces the cipher failure for corrupted or foreign input.
func (e *AESPasswordEncryptor) Decrypt(encrypted string) (string, error) {
	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	plain, err := open(e.aead, data)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
