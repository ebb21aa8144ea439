// Package hashutils computes and verifies SHA-256 content digests for
// receipt images. File digests are streamed so memory stays bounded
// regardless of file size.
package hashutils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// SHA256Bytes returns the lowercase hex digest of a byte buffer.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256Reader streams r through the hash.
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256File streams the file at path through the hash.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	digest, err := SHA256Reader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return digest, nil
}

// Equal compares two hex digests case-insensitively in constant time.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(a)),
		[]byte(strings.ToLower(b)),
	) == 1
}

// VerifyFile recomputes the digest of the file at path and compares it
// against expected.
func VerifyFile(path, expected string) (bool, error) {
	actual, err := SHA256File(path)
	if err != nil {
		return false, err
	}
	return Equal(actual, expected), nil
}
