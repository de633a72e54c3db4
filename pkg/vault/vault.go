// Package vault encrypts provider credentials before they are stored.
//
// Ciphertext is "hex(iv):hex(aes-256-cbc(plaintext))". The key is the
// SHA-256 digest of the configured passphrase, so any passphrase length works.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyPassphrase = errors.New("vault: encryption passphrase is empty")

// DecryptionError reports a stored secret that cannot be turned back into plaintext.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vault: cannot decrypt secret: %s: %v", e.Reason, e.Err)
	}
	return "vault: cannot decrypt secret: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

type Vault struct {
	block cipher.Block
}

func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return &Vault{block: block}, nil
}

// Encrypt returns "" for an empty plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: read iv: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(v.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt returns "" for an empty ciphertext and a *DecryptionError for anything malformed.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	parts := strings.Split(ciphertext, ":")
	if len(parts) != 2 {
		return "", &DecryptionError{Reason: fmt.Sprintf("expected 2 parts, got %d", len(parts))}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &DecryptionError{Reason: "iv is not hex", Err: err}
	}
	if len(iv) != aes.BlockSize {
		return "", &DecryptionError{Reason: fmt.Sprintf("iv has %d bytes", len(iv))}
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &DecryptionError{Reason: "payload is not hex", Err: err}
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: "payload is not a whole number of blocks"}
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(v.block, iv).CryptBlocks(out, data)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", &DecryptionError{Reason: "bad padding", Err: err}
	}
	return string(plain), nil
}

// Mask keeps the first and last two characters of s. Strings of four
// characters or fewer are fully masked.
func Mask(s string) string {
	r := []rune(s)
	n := len(r)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return string(r[:2]) + strings.Repeat("*", n-4) + string(r[n-2:])
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty block")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding length")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}
