package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainLayout = "varpath/layout/v1"
	DomainWrite  = "varpath/write/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash computes the content hash of a layout.
// Two layouts hash equal iff they describe the same types and symbols at the same
// addresses, so a changed hash means the target was relinked.
func LayoutHash(l Layout) (string, error) {
	canonical, err := MarshalCanonical(layoutObject(l))
	if err != nil {
		return "", fmt.Errorf("LayoutHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// WriteID computes the content-addressed ID of a journaled write.
// The address is deliberately not part of the identity: the path is the durable
// key, the address only holds for the layout the write was made against.
func WriteID(sessionID string, seq int64, path string, v Value) (string, error) {
	obj := map[string]any{
		"session_id": sessionID,
		"seq":        seq,
		"path":       path,
		"value":      v,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("WriteID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainWrite, canonical), nil
}

// MustLayoutHash is like LayoutHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustLayoutHash(l Layout) string {
	h, err := LayoutHash(l)
	if err != nil {
		panic(err)
	}
	return h
}

// MustWriteID is like WriteID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustWriteID(sessionID string, seq int64, path string, v Value) string {
	id, err := WriteID(sessionID, seq, path, v)
	if err != nil {
		panic(err)
	}
	return id
}
