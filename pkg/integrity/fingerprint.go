// Package integrity computes the content fingerprints used for tamper
// evidence.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint returns the lowercase hex SHA-256 digest of data. The same
// bytes always produce the same fingerprint.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader consumes r and fingerprints everything it yields.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
