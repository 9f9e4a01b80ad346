// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package coprocessor

import (
	"fmt"
	"sort"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
)

// HandleContractPair names one handle to decrypt and the contract that
// produced it.
type HandleContractPair struct {
	Handle   planetbounce.Handle
	Contract common.Address
}

// DecryptRequest carries a decryption authorization credential together with
// the handles it authorizes. The signature covers the typed message built
// from (PublicKey, Contracts, StartTimestamp, DurationDays) under the
// service's signing domain.
type DecryptRequest struct {
	Pairs          []HandleContractPair
	User           common.Address
	PublicKey      []byte
	Signature      []byte
	Contracts      []common.Address
	StartTimestamp uint64
	DurationDays   uint64
}

// DecryptResponse maps each requested handle, keyed by its canonical hex
// form, to its decrypted protocol value. The attestation is a BLS signature
// by the service over the canonical encoding of the result map.
type DecryptResponse struct {
	Values      map[string]uint64
	Attestation []byte
}

// UserDecrypt verifies the authorization credential and, for every requested
// handle the user holds a grant for, returns the decrypted value: 0/1 match
// indicators for comparison results, raw integers otherwise.
//
// Verification order: credential signature, validity window, contract
// authorization, ciphertext existence, access-control grant. The first
// failure aborts the whole request; a response never mixes authorized and
// unauthorized handles.
func (s *Service) UserDecrypt(req *DecryptRequest) (*DecryptResponse, error) {
	if len(req.Pairs) == 0 {
		return nil, fmt.Errorf("%w: no handles requested", planetbounce.ErrDecryptionIncomplete)
	}

	td := planetbounce.DecryptionTypedData(s.domain, req.PublicKey, req.Contracts, req.StartTimestamp, req.DurationDays)
	signer, err := planetbounce.RecoverTypedDataSigner(td, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", planetbounce.ErrNotAuthorized, err)
	}
	if signer != req.User {
		return nil, fmt.Errorf("%w: credential signed by %s, claimed user %s",
			planetbounce.ErrNotAuthorized, signer.Hex(), req.User.Hex())
	}

	now := s.now()
	start := time.Unix(int64(req.StartTimestamp), 0)
	end := start.Add(time.Duration(req.DurationDays) * 24 * time.Hour)
	if now.Before(start) {
		return nil, fmt.Errorf("%w: credential not yet valid", planetbounce.ErrNotAuthorized)
	}
	if !now.Before(end) {
		return nil, fmt.Errorf("%w: credential expired", planetbounce.ErrNotAuthorized)
	}

	authorized := make(map[common.Address]bool, len(req.Contracts))
	for _, c := range req.Contracts {
		authorized[c] = true
	}

	type outcome struct {
		handle  planetbounce.Handle
		matched bool
	}
	var outcomes []outcome

	s.mu.Lock()
	values := make(map[string]uint64, len(req.Pairs))
	for _, pair := range req.Pairs {
		if !authorized[pair.Contract] {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: contract %s not in authorized list",
				planetbounce.ErrNotAuthorized, pair.Contract.Hex())
		}
		stored, ok := s.cts[pair.Handle]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", planetbounce.ErrResultNotReady, pair.Handle)
		}
		if !s.grantedLocked(pair.Handle).Contains(req.User) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s has no grant for %s",
				planetbounce.ErrNotAuthorized, req.User.Hex(), pair.Handle)
		}

		v := s.decryptLocked(stored)
		values[pair.Handle.Hex()] = v
		if stored.kind == kindMatch {
			outcomes = append(outcomes, outcome{handle: pair.Handle, matched: v == 1})
		}
	}
	reporters := make([]OutcomeReporter, len(s.reporters))
	copy(reporters, s.reporters)
	s.mu.Unlock()

	attestation, err := s.attestValues(values)
	if err != nil {
		return nil, err
	}

	// Reporters run outside the service lock; they may call back into the
	// contract, which takes its own lock before calling the service.
	for _, o := range outcomes {
		for _, r := range reporters {
			r.ReportOutcome(o.handle, o.matched)
		}
	}

	s.log.Info("user decryption served",
		zap.String("user", req.User.Hex()),
		zap.Int("handles", len(values)),
	)
	return &DecryptResponse{Values: values, Attestation: attestation}, nil
}

// attestValues signs the canonical encoding of a result map: handle/value
// pairs concatenated in handle order.
func (s *Service) attestValues(values map[string]uint64) ([]byte, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg []byte
	for _, k := range keys {
		msg = append(msg, []byte(k)...)
		msg = append(msg, uint64Bytes(values[k])...)
	}

	sig, err := s.attestSK.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to attest decryption response: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// VerifyAttestation checks a response attestation against the service's
// public attestation key.
func VerifyAttestation(pk *bls.PublicKey, values map[string]uint64, attestation []byte) bool {
	sig, err := bls.SignatureFromBytes(attestation)
	if err != nil {
		return false
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var msg []byte
	for _, k := range keys {
		msg = append(msg, []byte(k)...)
		msg = append(msg, uint64Bytes(values[k])...)
	}
	return bls.Verify(pk, sig, msg)
}

func (s *Service) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowFn()
}

// SetClock overrides the service clock. Tests use this to exercise validity
// windows.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}
