// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import "errors"

// Shared error taxonomy of the encrypted-guess protocol. Callers classify
// failures with errors.Is; no layer collapses these into a generic error.
var (
	// ErrEngineNotReady is returned when the homomorphic engine has not
	// completed initialization, or its initialization permanently failed.
	ErrEngineNotReady = errors.New("homomorphic engine not ready")

	// ErrEncryptionFailed is returned when the encryption service rejects a
	// well-formed encryption request.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrInvalidProof is returned when an input proof does not bind the
	// ciphertext to the expected (contract, submitter) pair.
	ErrInvalidProof = errors.New("invalid input proof")

	// ErrNoResultYet is returned by the contract when a caller requests a
	// result handle before any guess of theirs has been processed.
	ErrNoResultYet = errors.New("no result yet")

	// ErrSignatureRejected is returned when the identity holder declines to
	// sign the decryption authorization credential.
	ErrSignatureRejected = errors.New("signature rejected")

	// ErrResultNotReady is returned when a decryption is attempted against a
	// handle that has not been populated on-chain.
	ErrResultNotReady = errors.New("result not ready")

	// ErrRelayerUnavailable is returned when the threshold-decryption or
	// coprocessor service is unreachable or responds with a server error.
	ErrRelayerUnavailable = errors.New("relayer unavailable")

	// ErrNotAuthorized is returned when the caller holds no access-control
	// grant for the requested handle.
	ErrNotAuthorized = errors.New("not authorized for handle")

	// ErrDecryptionIncomplete is returned when the service responds without a
	// value for a requested handle.
	ErrDecryptionIncomplete = errors.New("decryption incomplete")

	// ErrDecryptionInFlight is returned when a second decryption attempt is
	// made while one is already outstanding in the same session.
	ErrDecryptionInFlight = errors.New("decryption already in flight")
)
