// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package coprocessor

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"

	"github.com/luxfi/planetbounce"
)

// inputProofDomain separates input-proof digests from every other signature
// the service produces.
const inputProofDomain = "planetbounce/input-proof/v1"

// ErrUnknownHandle is returned when an operation references a handle the
// service holds no ciphertext for.
var ErrUnknownHandle = errors.New("unknown ciphertext handle")

// inputDigest binds a ciphertext handle to the contract it may be submitted
// to and the identity that may submit it.
func inputDigest(handle planetbounce.Handle, contract, user common.Address) []byte {
	return crypto.Keccak256(
		[]byte(inputProofDomain),
		handle.Bytes(),
		contract.Bytes(),
		user.Bytes(),
	)
}

// proveInput attests that handle was produced by this service for
// (contract, user). The proof is a BLS signature over the binding digest.
// Caller holds mu.
func (s *Service) proveInput(handle planetbounce.Handle, contract, user common.Address) ([]byte, error) {
	sig, err := s.attestSK.Sign(inputDigest(handle, contract, user))
	if err != nil {
		return nil, fmt.Errorf("failed to sign input proof: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// VerifyInput checks that proof binds handle to (contract, user) and that the
// service holds the referenced ciphertext. A proof produced for a different
// contract or submitter fails verification, so encrypted inputs cannot be
// replayed across contracts or identities.
func (s *Service) VerifyInput(handle planetbounce.Handle, proof []byte, contract, user common.Address) error {
	sig, err := bls.SignatureFromBytes(proof)
	if err != nil {
		return fmt.Errorf("%w: %s", planetbounce.ErrInvalidProof, err)
	}
	if !bls.Verify(s.attestPK, sig, inputDigest(handle, contract, user)) {
		return fmt.Errorf("%w: proof does not bind handle %s to (%s, %s)",
			planetbounce.ErrInvalidProof, handle, contract.Hex(), user.Hex())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cts[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return nil
}
