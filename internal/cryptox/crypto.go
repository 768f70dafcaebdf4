// Package cryptox holds the two secret-protection schemes of the server:
// reversible AES-GCM encryption for stored entry passwords and one-way
// encoding for account login passwords.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/psm/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	keySize      = 32
	nonceSize    = 12
	minSaltBytes = 8
)

var (
	ErrMissingKey          = errors.New("encryptor key is empty")
	ErrBadSalt             = errors.New("encryptor salt must be hex encoded, at least 8 bytes")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// DeriveKey stretches a configured passphrase and salt into an AES-256 key.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, keySize)
}

// seal encrypts plaintext with AES-GCM under a fresh random nonce and
// returns nonce||ciphertext.
func seal(aead cipher.AEAD, plaintext []byte) []byte {
	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, nil)
}

// open reverses seal.
func open(aead cipher.AEAD, data []byte) ([]byte, error) {
	ns := aead.NonceSize()
	if len(data) < ns+aead.Overhead() {
		return nil, ErrMalformedCiphertext
	}
	return aead.Open(nil, data[:ns], data[ns:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}
