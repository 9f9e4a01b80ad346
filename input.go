// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import (
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// EncryptedInput is a freshly produced ciphertext handle together with the
// proof that it is well formed and bound to a specific (contract, submitter)
// pair. It is the only form in which the contract accepts ciphertexts it did
// not itself produce.
type EncryptedInput struct {
	Handle Handle `serialize:"true"`
	Proof  []byte `serialize:"true"`
}

// NewEncryptedInput creates an encrypted input and verifies its shape.
func NewEncryptedInput(handle Handle, proof []byte) (*EncryptedInput, error) {
	in := &EncryptedInput{
		Handle: handle,
		Proof:  proof,
	}
	if err := in.Verify(); err != nil {
		return nil, err
	}
	return in, nil
}

// Verify checks the structural invariants of the input. It does not validate
// the proof itself; that requires the coprocessor.
func (in *EncryptedInput) Verify() error {
	if in.Handle.IsZero() {
		return fmt.Errorf("%w: zero handle", ErrInvalidHandle)
	}
	if len(in.Proof) == 0 {
		return fmt.Errorf("%w: empty proof", ErrInvalidProof)
	}
	return nil
}

// Bytes returns the RLP encoding of the input.
func (in *EncryptedInput) Bytes() []byte {
	b, _ := rlp.EncodeToBytes(in)
	return b
}

// ParseEncryptedInput decodes and verifies an RLP-encoded input.
func ParseEncryptedInput(b []byte) (*EncryptedInput, error) {
	in := &EncryptedInput{}
	if err := rlp.DecodeBytes(b, in); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encrypted input: %w", err)
	}
	if err := in.Verify(); err != nil {
		return nil, err
	}
	return in, nil
}
