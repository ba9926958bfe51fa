package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// SessionKeyAlphabet is the character set the raw session secret is drawn from.
const SessionKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SessionKeyHexLength is the length of every public session key.
const SessionKeyHexLength = sha256.Size * 2

var (
	ErrInvalidKeyLength = errors.New("session key length must be > 0")
	ErrEmptySalt        = errors.New("session key salt is empty")
)

// NewRandomString returns length characters drawn uniformly from SessionKeyAlphabet.
func NewRandomString(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidKeyLength
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(SessionKeyAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(SessionKeyAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// HashSessionSecret derives the public session key from a raw secret.
// The salt is the process-wide secret; without it the key cannot be forged.
func HashSessionSecret(raw string, salt []byte) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewSessionKey draws a fresh random secret and returns its salted hash.
func NewSessionKey(length int, salt []byte) (string, error) {
	if len(salt) == 0 {
		return "", ErrEmptySalt
	}

	raw, err := NewRandomString(length)
	if err != nil {
		return "", err
	}

	return HashSessionSecret(raw, salt), nil
}

// ValidSessionKey reports whether key has the shape of a generated key.
// It is a cheap pre-filter; it does not prove the key was ever issued.
func ValidSessionKey(key string) bool {
	if len(key) != SessionKeyHexLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
