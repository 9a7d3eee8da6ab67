// Package credential keeps assistant API keys in the store's configuration
// table encrypted with AES-256-GCM under a key derived from the machine.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// EncryptedPrefix marks encrypted configuration values.
const EncryptedPrefix = "enc:v1:"

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid encrypted format")
)

// Vault encrypts and decrypts configuration values.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives the machine key and prepares the cipher.
func NewVault() (*Vault, error) {
	return newVault(machineKey())
}

func newVault(key []byte) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext. The empty string stays empty.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the prefix were
// stored in the clear and are returned unchanged.
func (v *Vault) Decrypt(stored string) (string, error) {
	if !IsEncrypted(stored) {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrInvalidFormat, err)
	}
	n := v.aead.NonceSize()
	if len(raw) < n {
		return "", ErrInvalidFormat
	}
	plaintext, err := v.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// IsSecretKey reports whether a configuration key holds a credential.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

// ConfigStore is the configuration table of the store.
type ConfigStore interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// Set writes a configuration value, encrypting it first when key names a
// credential.
func (v *Vault) Set(s ConfigStore, key, value string) error {
	if IsSecretKey(key) {
		enc, err := v.Encrypt(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		value = enc
	}
	return s.SetConfig(key, value)
}

// Get reads a configuration value, decrypting it when needed.
func (v *Vault) Get(s ConfigStore, key string) (string, error) {
	stored, err := s.GetConfig(key)
	if err != nil {
		return "", err
	}
	value, err := v.Decrypt(stored)
	if err != nil {
		return "", fmt.Errorf("config %s: %w", key, err)
	}
	return value, nil
}

// machineKey hashes host, home, platform and user identifiers into a
// 32-byte key that is stable across restarts on the same machine.
func machineKey() []byte {
	var b strings.Builder
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	b.WriteString(hostname)
	b.WriteString(home)
	b.WriteString(runtime.GOOS)
	b.WriteString(runtime.GOARCH)
	b.WriteString("canvascoach-credential-v1")
	if uid := os.Getuid(); uid != -1 {
		fmt.Fprintf(&b, "uid:%d", uid)
	}
	b.WriteString(os.Getenv("USER"))

	sum := sha256.Sum256([]byte(b.String()))
	return sum[:]
}

// MaskSecret shows the first and last four characters of long secrets.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
