package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "5c0744940b5c369b"

func newTestEncryptor(t *testing.T) *AESPasswordEncryptor {
	t.Helper()
	e, err := NewAESPasswordEncryptor("correct horse", testSalt)
	require.NoError(t, err)
	return e
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey([]byte("pw"), []byte("salt-1"))
	k2 := DeriveKey([]byte("pw"), []byte("salt-1"))
	k3 := DeriveKey([]byte("pw"), []byte("salt-2"))

	assert.Len(t, k1, 32)
	assert.True(t, bytes.Equal(k1, k2))
	assert.False(t, bytes.Equal(k1, k3))
}

func TestAESPasswordEncryptor_RoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	for _, s := range []string{"", "a", "p@ssw0rd!", "пароль", strings.Repeat("x", 100)} {
		enc, err := e.Encrypt(s)
		require.NoError(t, err)
		_, err = hex.DecodeString(enc)
		require.NoError(t, err, "ciphertext must be hex")

		dec, err := e.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
}

func TestAESPasswordEncryptor_NonceVariesCiphertext(t *testing.T) {
	e := newTestEncryptor(t)
	a, _ := e.Encrypt("same")
	b, _ := e.Encrypt("same")
	assert.NotEqual(t, a, b)
}

func TestAESPasswordEncryptor_OtherKeyCannotDecrypt(t *testing.T) {
	e := newTestEncryptor(t)
	other, err := NewAESPasswordEncryptor("another key", testSalt)
	require.NoError(t, err)

	enc, _ := e.Encrypt("secret")
	_, err = other.Decrypt(enc)
	assert.Error(t, err)
}

func TestAESPasswordEncryptor_DecryptCorrupted(t *testing.T) {
	e := newTestEncryptor(t)

	_, err := e.Decrypt("not-hex")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext))

	_, err = e.Decrypt("abcd")
	assert.True(t, errors.Is(err, ErrMalformedCiphertext))

	enc, _ := e.Encrypt("secret")
	raw, _ := hex.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	_, err = e.Decrypt(hex.EncodeToString(raw))
	assert.Error(t, err)
}

func TestNewAESPasswordEncryptor_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		key  string
		salt string
		want error
	}{
		{"empty key", "", testSalt, ErrMissingKey},
		{"salt not hex", "k", "zzzz", ErrBadSalt},
		{"salt too short", "k", "abcd", ErrBadSalt},
		{"empty salt", "k", "", ErrBadSalt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESPasswordEncryptor(tt.key, tt.salt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
