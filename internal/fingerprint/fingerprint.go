// Package fingerprint computes content fingerprints for integrity checking.
//
// Fingerprints are SHA-1 digests encoded as lowercase hex, matching the
// encoding used by upstream manifests so equality is a plain string compare.
// This is corruption detection, not tamper protection.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Sum returns the fingerprint of a byte slice.
func Sum(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// SumReader returns the fingerprint of everything readable from r.
func SumReader(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the fingerprint of the file at path, streaming its
// contents so large files are never held in memory.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := SumReader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
