package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Vault encrypts PSP credentials at rest.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type xchachaVault struct {
	key []byte
}

// New builds a Vault from a 32 byte key.
func New(key []byte) (Vault, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &xchachaVault{key: k}, nil
}

// NewFromBase64 decodes a standard base64 key, as stored in VAULT_KEY.
func NewFromBase64(encoded string) (Vault, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return New(key)
}

// GenerateKey returns a random key encoded for VAULT_KEY.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func (v *xchachaVault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(CiphertextVersion))
	return CiphertextVersion + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (v *xchachaVault) Decrypt(ciphertext string) (string, error) {
	version, body, ok := strings.Cut(ciphertext, ".")
	if !ok || version != CiphertextVersion {
		return "", ErrMalformedCiphertext
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(version))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// OpenCredentials decrypts a PSP's stored key pair. The public key is
// optional for providers that only use a secret.
func OpenCredentials(v Vault, encryptedPublic, encryptedSecret string) (Credentials, error) {
	var creds Credentials

	secret, err := v.Decrypt(encryptedSecret)
	if err != nil {
		return creds, err
	}
	creds.SecretKey = Secret(secret)

	if encryptedPublic != "" {
		public, err := v.Decrypt(encryptedPublic)
		if err != nil {
			return creds, err
		}
		creds.PublicKey = public
	}
	return creds, nil
}
