// Package cryptoutils implements the authenticated-encryption envelope used
// for local-only storage. Payloads are AES-256-GCM with a self-describing
// layout of salt(16) || nonce(12) || ciphertext || tag(16), so decryption
// needs no external metadata.
package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"fjacquet/receiptvault/internal/storageerror"
)

const (
	// SaltSize is the PBKDF2 salt length in bytes.
	SaltSize = 16
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// MinPayloadSize is the smallest well-formed payload: header plus tag
	// with an empty ciphertext.
	MinPayloadSize = SaltSize + NonceSize + TagSize

	// DefaultIterations is the PBKDF2 iteration count used when the caller
	// does not configure one.
	DefaultIterations = 100_000
)

// DeriveKey stretches a passphrase into an AES-256 key via PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}

// EncryptWithPassphrase seals plaintext with a key derived from passphrase.
// A fresh salt and nonce are generated on every call.
func EncryptWithPassphrase(plaintext []byte, passphrase string, iterations int) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to generate salt", Err: err}
	}
	key := DeriveKey(passphrase, salt, iterations)
	return seal(plaintext, key, salt)
}

// DecryptWithPassphrase opens a payload produced by EncryptWithPassphrase.
func DecryptWithPassphrase(payload []byte, passphrase string, iterations int) ([]byte, error) {
	if len(payload) < MinPayloadSize {
		return nil, &storageerror.EncryptionError{
			Msg: fmt.Sprintf("payload too short: %d bytes, need at least %d", len(payload), MinPayloadSize),
		}
	}
	salt := payload[:SaltSize]
	key := DeriveKey(passphrase, salt, iterations)
	return open(payload, key)
}

// EncryptWithKey seals plaintext with a raw 32-byte key, as handed out by a
// platform-protected secret store. The salt field is written as zeros and
// ignored on decryption.
func EncryptWithKey(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, &storageerror.EncryptionError{
			Msg: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)),
		}
	}
	salt := make([]byte, SaltSize) // reserved on the raw-key path
	return seal(plaintext, key, salt)
}

// DecryptWithKey opens a payload with a raw 32-byte key.
func DecryptWithKey(payload, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, &storageerror.EncryptionError{
			Msg: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)),
		}
	}
	if len(payload) < MinPayloadSize {
		return nil, &storageerror.EncryptionError{
			Msg: fmt.Sprintf("payload too short: %d bytes, need at least %d", len(payload), MinPayloadSize),
		}
	}
	return open(payload, key)
}

// EncryptStringWithKey seals a string and encodes the payload as base64.
func EncryptStringWithKey(plaintext string, key []byte) (string, error) {
	sealed, err := EncryptWithKey([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptStringWithKey reverses EncryptStringWithKey.
func DecryptStringWithKey(encoded string, key []byte) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &storageerror.EncryptionError{Msg: "payload is not valid base64", Err: err}
	}
	plaintext, err := DecryptWithKey(payload, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptFile seals the file at src and writes the payload to dst.
func EncryptFile(src, dst string, key []byte) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return &storageerror.EncryptionError{Msg: fmt.Sprintf("failed to read %s", src), Err: err}
	}
	sealed, err := EncryptWithKey(plaintext, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, sealed, 0o600); err != nil {
		return &storageerror.EncryptionError{Msg: fmt.Sprintf("failed to write %s", dst), Err: err}
	}
	return nil
}

// DecryptFile opens the payload at src and writes the plaintext to dst.
func DecryptFile(src, dst string, key []byte) error {
	payload, err := os.ReadFile(src)
	if err != nil {
		return &storageerror.EncryptionError{Msg: fmt.Sprintf("failed to read %s", src), Err: err}
	}
	plaintext, err := DecryptWithKey(payload, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, plaintext, 0o600); err != nil {
		return &storageerror.EncryptionError{Msg: fmt.Sprintf("failed to write %s", dst), Err: err}
	}
	return nil
}

// seal assembles salt || nonce || ciphertext+tag with a fresh random nonce.
func seal(plaintext, key, salt []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to create cipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to create GCM", Err: err}
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to generate nonce", Err: err}
	}

	payload := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+TagSize)
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = gcm.Seal(payload, nonce, plaintext, nil)
	return payload, nil
}

// open splits a payload back into nonce and ciphertext and authenticates it.
// Length is checked by the callers before slicing.
func open(payload, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to create cipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &storageerror.EncryptionError{Msg: "failed to create GCM", Err: err}
	}

	nonce := payload[SaltSize : SaltSize+NonceSize]
	ciphertext := payload[SaltSize+NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &storageerror.EncryptionError{Msg: "authentication failed", Err: err}
	}
	if plaintext == nil {
		// An empty plaintext decrypts to a nil slice; callers get the same
		// empty-but-present value they sealed.
		plaintext = []byte{}
	}
	return plaintext, nil
}
