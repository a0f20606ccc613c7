package vault

import "errors"

var (
	ErrInvalidKey          = errors.New("vault key must be 32 bytes")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrDecryptionFailed    = errors.New("decryption failed")
)
