// Package keygen generates and parses server-assigned entity keys.
package keygen

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// BinaryIDLen is the size in bytes of a binary id.
const BinaryIDLen = 12

// NewUUID returns a random (v4) UUID in canonical string form.
func NewUUID() string {
	return uuid.New().String()
}

// NewBinaryID returns a new 12-byte, time-ordered binary id.
func NewBinaryID() xid.ID {
	return xid.New()
}

// ParseBinaryID parses the 24-character hex form of a binary id.
func ParseBinaryID(s string) (xid.ID, error) {
	if len(s) != 2*BinaryIDLen {
		return xid.NilID(), fmt.Errorf("binary id must be %d hex characters, got %d", 2*BinaryIDLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return xid.NilID(), fmt.Errorf("binary id: %w", err)
	}
	return xid.FromBytes(b)
}

// FormatBinaryID returns the 24-character hex form of id.
func FormatBinaryID(id xid.ID) string {
	return hex.EncodeToString(id.Bytes())
}

// ParseUUID validates s as a UUID and returns its canonical string form.
func ParseUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
