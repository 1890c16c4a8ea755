// Package crypto encrypts repository access credentials at rest with an
// AES-256-GCM envelope keyed off a process-wide master key and the
// repository's own ID, so a leaked ciphertext from one repository row
// can't be replayed against another.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const envelopeVersionPrefix = "v1:"

const credentialInfo = "repository-credential"

// Sealer encrypts and decrypts repository credentials with a single
// 32-byte master key, normally sourced from the process environment.
type Sealer struct {
	masterKey []byte
}

func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}
	return &Sealer{masterKey: masterKey}, nil
}

// Seal encrypts plaintext, binding the ciphertext to repositoryID via
// additional authenticated data — decrypting with a different ID fails.
func (s *Sealer) Seal(repositoryID, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key := deriveKey(s.masterKey, repositoryID)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	aad := additionalData(repositoryID)
	sealed := aead.Seal(nil, nonce, []byte(plaintext), aad)

	buf := make([]byte, 0, len(nonce)+len(sealed))
	buf = append(buf, nonce...)
	buf = append(buf, sealed...)

	return envelopeVersionPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Open decrypts ciphertext previously produced by Seal for the same
// repositoryID.
func (s *Sealer) Open(repositoryID, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	encoded := strings.TrimPrefix(strings.TrimSpace(ciphertext), envelopeVersionPrefix)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(s.masterKey, repositoryID)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce := raw[:aead.NonceSize()]
	body := raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, additionalData(repositoryID))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func deriveKey(masterKey []byte, repositoryID string) []byte {
	mac := hmac.New(sha256.New, masterKey)
	_, _ = mac.Write([]byte(credentialInfo))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write([]byte(repositoryID))
	return mac.Sum(nil)
}

func additionalData(repositoryID string) []byte {
	aad := make([]byte, 0, len(credentialInfo)+1+len(repositoryID))
	aad = append(aad, credentialInfo...)
	aad = append(aad, 0)
	aad = append(aad, repositoryID...)
	return aad
}
