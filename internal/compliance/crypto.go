package compliance

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// applicationSalt is fixed (not secret): a passphrase-derived key must be
// reproducible across process restarts without persisting the derived key
// itself.
var applicationSalt = []byte("api-integration-gateway-kdf-v1")

// DeriveKey resolves ENCRYPTION_KEY into a 32-byte AES-256 key: a hex string
// is decoded directly, anything else is treated as a passphrase and run
// through scrypt. Never falls back to a hard-coded default key — an empty
// input is an error.
func DeriveKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not configured")
	}
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	key, err := scrypt.Key([]byte(raw), applicationSalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key from passphrase: %w", err)
	}
	return key, nil
}

// encryptField seals plaintext with AES-256-GCM under key, returning
// base64(nonce || ciphertext).
func encryptField(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// pseudonymize derives a stable, non-reversible token for a personal
// identifier via keyed HMAC-SHA256.
func pseudonymize(salt []byte, value string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(value))
	return "pn_" + hex.EncodeToString(mac.Sum(nil))
}

// maskCardNumber keeps the first 6 and last 4 digits, replacing everything
// between with '*'. Only applies when n >= 13; shorter values pass through
// unmasked.
func maskCardNumber(number string) string {
	n := len(number)
	if n < 13 {
		return number
	}
	masked := make([]byte, n)
	copy(masked, number[:6])
	for i := 6; i < n-4; i++ {
		masked[i] = '*'
	}
	copy(masked[n-4:], number[n-4:])
	return string(masked)
}
