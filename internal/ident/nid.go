// Package ident defines the stable node identifier used across the lock
// registry and access-control engine.
package ident

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidHex is returned by ParseHex when the input is not a 32-character
// hex string.
var ErrInvalidHex = errors.New("ident: invalid hex NID")

// NID is an opaque 128-bit value, stable across moves of the node it
// identifies. It exists before the node's path is known.
type NID struct {
	uuid.UUID
}

// New generates a fresh random NID.
func New() NID {
	return NID{uuid.New()}
}

// Nil is the zero-value NID, never assigned to a real node.
var Nil = NID{uuid.Nil}

// ParseHex parses a 32-character hex string (no dashes) into a NID.
func ParseHex(hex string) (NID, error) {
	hex = strings.ToLower(strings.TrimSpace(hex))
	if len(hex) != 32 {
		return Nil, ErrInvalidHex
	}
	for _, c := range hex {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return Nil, ErrInvalidHex
		}
	}
	dashed := hex[0:8] + "-" + hex[8:12] + "-" + hex[12:16] + "-" + hex[16:20] + "-" + hex[20:32]
	u, err := uuid.Parse(dashed)
	if err != nil {
		return Nil, err
	}
	return NID{u}, nil
}

// HexUpper renders the NID as 32 uppercase hex characters, with no dashes,
// matching the encoding the check-digit algorithm in §4.5 iterates over.
func (n NID) HexUpper() string {
	return strings.ToUpper(strings.ReplaceAll(n.UUID.String(), "-", ""))
}

// IsNil reports whether n is the nil NID.
func (n NID) IsNil() bool {
	return n.UUID == uuid.Nil
}
