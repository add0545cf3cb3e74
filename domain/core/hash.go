package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters
func (h Hash) Short() string {
	if len(h) > 12 {
		return string(h[:12])
	}
	return string(h)
}

// HashRecords fingerprints a header and its rows. Field and record
// separators are ASCII unit/record separators so "a,b" and "a","b" differ.
func HashRecords(header []string, rows [][]string) Hash {
	h := sha256.New()
	write := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				h.Write([]byte{0x1f})
			}
			h.Write([]byte(f))
		}
		h.Write([]byte{0x1e})
	}
	write(header)
	for _, row := range rows {
		write(row)
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
