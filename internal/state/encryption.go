package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	// EncryptionKeyEnvVar is the environment variable holding the state
	// encryption passphrase.
	EncryptionKeyEnvVar = "LOCKSTEP_STATE_KEY"

	// Encrypted state file header
	encryptedHeader = "# LOCKSTEP_ENCRYPTED_STATE\n"

	saltSize = 16
)

// scrypt parameters for interactive use.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Encrypt seals state content with AES-256-GCM under a key derived from
// the passphrase in the environment. Returns the content unchanged when no
// passphrase is configured. The output layout is
// header + base64(salt || nonce || ciphertext) + newline.
func Encrypt(content []byte) ([]byte, error) {
	passphrase := os.Getenv(EncryptionKeyEnvVar)
	if passphrase == "" {
		return content, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, content, nil)
	payload := append(append(salt, nonce...), sealed...)
	encoded := base64.StdEncoding.EncodeToString(payload)

	return []byte(encryptedHeader + encoded + "\n"), nil
}

// Decrypt opens state content if it carries the encrypted header.
// Returns the original content if not encrypted.
func Decrypt(content []byte) ([]byte, error) {
	if !IsEncrypted(content) {
		return content, nil
	}

	passphrase := os.Getenv(EncryptionKeyEnvVar)
	if passphrase == "" {
		return nil, fmt.Errorf("state file is encrypted but %s is not set", EncryptionKeyEnvVar)
	}

	encoded := strings.TrimPrefix(string(content), encryptedHeader)
	encoded = strings.TrimSpace(encoded)

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted state: %w", err)
	}
	if len(payload) < saltSize {
		return nil, fmt.Errorf("encrypted state too short")
	}
	salt, rest := payload[:saltSize], payload[saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, fmt.Errorf("encrypted state too short")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state (wrong key?): %w", err)
	}
	return plain, nil
}

// IsEncrypted checks whether state content carries the encrypted header.
func IsEncrypted(content []byte) bool {
	return strings.HasPrefix(string(content), encryptedHeader)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
