// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// HandleLen is the length of a ciphertext handle in bytes.
const HandleLen = 32

// Handle is an opaque, fixed-size reference to a ciphertext held by the
// homomorphic-computation service. A handle carries no plaintext; equality of
// handles implies identity of the referenced ciphertext, not equality of the
// underlying values. The zero handle is never a valid reference.
type Handle [HandleLen]byte

var ErrInvalidHandle = errors.New("invalid ciphertext handle")

// HandleFromBytes returns the handle represented by b.
func HandleFromBytes(b []byte) (Handle, error) {
	if len(b) != HandleLen {
		return Handle{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHandle, HandleLen, len(b))
	}
	var h Handle
	copy(h[:], b)
	return h, nil
}

// ParseHandle parses a hex-encoded handle, with or without a 0x prefix.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %s", ErrInvalidHandle, err)
	}
	return HandleFromBytes(b)
}

// Bytes returns a copy of the handle bytes.
func (h Handle) Bytes() []byte {
	b := make([]byte, HandleLen)
	copy(b, h[:])
	return b
}

// Hex returns the canonical 0x-prefixed lowercase hex form of the handle.
// Response maps from the threshold-decryption service are keyed by this form.
func (h Handle) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) String() string {
	return h.Hex()
}

// IsZero reports whether the handle is the zero value. A zero handle must be
// treated as absence, never as a reference.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Hash returns the handle as a common.Hash for EVM-facing surfaces.
func (h Handle) Hash() common.Hash {
	return common.Hash(h)
}

// ID returns the handle as an ids.ID for logging and tracing.
func (h Handle) ID() ids.ID {
	return ids.ID(h)
}
