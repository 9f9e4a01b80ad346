// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coprocessor implements the homomorphic-computation and
// threshold-decryption capability the encrypted-guess protocol is built
// against. The production protocol treats this capability as an external
// service reached through the relayer bridge; this package provides the same
// surface backed by a local BFV instance, so the whole protocol can run and be
// tested without a remote coprocessor.
//
// Ciphertexts are held by the service and referenced by opaque 32-byte
// handles. Plaintext never leaves the service except through UserDecrypt,
// which demands a verified authorization credential and an access-control
// grant for every requested handle.
package coprocessor

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	gmath "github.com/luxfi/geth/common/math"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
	"github.com/luxfi/math/set"
	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
)

// MaxInputValue bounds the plaintext of an encrypted input. Guesses are
// encoded as 8-bit unsigned integers.
const MaxInputValue = 1 << 8

// SigningDomainName and SigningDomainVersion identify the EIP-712 domain
// under which decryption authorization credentials are signed.
const (
	SigningDomainName    = "Decryption"
	SigningDomainVersion = "1"
)

type ciphertextKind uint8

const (
	// kindValue holds an encrypted small integer.
	kindValue ciphertextKind = iota
	// kindMatch holds a randomized difference: the plaintext is zero iff the
	// compared values were equal, and uniformly random otherwise.
	kindMatch
)

type storedCiphertext struct {
	ct   *rlwe.Ciphertext
	kind ciphertextKind
}

// OutcomeReporter is notified when an authorized decryption reveals the
// outcome of an encrypted comparison. The ledger contract registers itself
// here to accrue wins without the result ever appearing on-chain.
type OutcomeReporter interface {
	ReportOutcome(result planetbounce.Handle, matched bool)
}

// Service is the dev homomorphic-computation and threshold-decryption
// service. All operations are safe for concurrent use; the underlying BFV
// encoder, encryptor, evaluator and decryptor are not thread safe and are
// guarded by the service mutex.
type Service struct {
	log      *zap.Logger
	params   bfv.Parameters
	domain   apitypes.TypedDataDomain
	attestSK *bls.SecretKey
	attestPK *bls.PublicKey

	mu        sync.Mutex
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor
	evaluator bfv.Evaluator
	cts       map[planetbounce.Handle]storedCiphertext
	grants    map[planetbounce.Handle]set.Set[common.Address]
	reporters []OutcomeReporter
	nowFn     func() time.Time
}

// New creates a service with fresh BFV and attestation keys. The chain id and
// verifier address parameterize the EIP-712 signing domain handed out to
// clients.
func New(log *zap.Logger, chainID uint64, verifier common.Address) (*Service, error) {
	paramsDef := bfv.PN12QP109
	paramsDef.T = 65537
	params, err := bfv.NewParametersFromLiteral(paramsDef)
	if err != nil {
		return nil, fmt.Errorf("failed to build BFV parameters: %w", err)
	}

	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()

	attestSK, err := bls.NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation key: %w", err)
	}

	s := &Service{
		log:       log,
		params:    params,
		attestSK:  attestSK,
		attestPK:  attestSK.PublicKey(),
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
		decryptor: bfv.NewDecryptor(params, sk),
		evaluator: bfv.NewEvaluator(params, rlwe.EvaluationKey{}),
		cts:       make(map[planetbounce.Handle]storedCiphertext),
		grants:    make(map[planetbounce.Handle]set.Set[common.Address]),
		nowFn:     time.Now,
		domain: apitypes.TypedDataDomain{
			Name:              SigningDomainName,
			Version:           SigningDomainVersion,
			ChainId:           gmath.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: verifier.Hex(),
		},
	}
	log.Info("coprocessor initialized",
		zap.Uint64("chainID", chainID),
		zap.String("verifier", verifier.Hex()),
	)
	return s, nil
}

// Domain returns the EIP-712 signing domain for decryption credentials.
func (s *Service) Domain() apitypes.TypedDataDomain {
	return s.domain
}

// AttestationKey returns the public key under which decryption responses are
// attested.
func (s *Service) AttestationKey() *bls.PublicKey {
	return s.attestPK
}

// Encrypt produces a fresh encryption of value scoped to (contract, user) and
// returns the ciphertext handle together with an input proof binding it to
// that pair. Encryption is randomized: repeated calls with equal inputs yield
// distinct handles.
func (s *Service) Encrypt(contract, user common.Address, value uint64) (planetbounce.Handle, []byte, error) {
	if value >= MaxInputValue {
		return planetbounce.Handle{}, nil, fmt.Errorf("%w: value %d out of range", planetbounce.ErrEncryptionFailed, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handle, err := s.encryptLocked(value, kindValue)
	if err != nil {
		return planetbounce.Handle{}, nil, err
	}
	proof, err := s.proveInput(handle, contract, user)
	if err != nil {
		return planetbounce.Handle{}, nil, err
	}
	s.log.Debug("encrypted input produced",
		zap.Stringer("handle", handle),
		zap.String("contract", contract.Hex()),
		zap.String("user", user.Hex()),
	)
	return handle, proof, nil
}

// RandomEncrypted draws a uniform value below max and returns a handle to its
// encryption. The plaintext is never revealed; no access-control grant is
// created, so no identity can ever authorize its decryption.
func (s *Service) RandomEncrypted(max uint64) (planetbounce.Handle, error) {
	if max == 0 || max >= MaxInputValue {
		return planetbounce.Handle{}, fmt.Errorf("%w: bound %d out of range", planetbounce.ErrEncryptionFailed, max)
	}
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(max))
	if err != nil {
		return planetbounce.Handle{}, fmt.Errorf("failed to draw random value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encryptLocked(n.Uint64(), kindValue)
}

// Eq homomorphically compares two stored ciphertexts and returns a handle to
// the encrypted result. The result is a randomized difference r*(a-b) with r
// uniform and nonzero, so it decrypts to zero exactly when the plaintexts
// match and reveals nothing else. The comparison itself never decrypts
// either operand.
func (s *Service) Eq(a, b planetbounce.Handle) (planetbounce.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctA, ok := s.cts[a]
	if !ok {
		return planetbounce.Handle{}, fmt.Errorf("%w: %s", ErrUnknownHandle, a)
	}
	ctB, ok := s.cts[b]
	if !ok {
		return planetbounce.Handle{}, fmt.Errorf("%w: %s", ErrUnknownHandle, b)
	}

	r, err := s.randomScalar()
	if err != nil {
		return planetbounce.Handle{}, err
	}

	diff := s.evaluator.SubNew(ctA.ct, ctB.ct)
	masked := s.evaluator.MulScalarNew(diff, r)

	handle, err := s.registerLocked(masked, kindMatch)
	if err != nil {
		return planetbounce.Handle{}, err
	}
	s.log.Debug("homomorphic equality computed",
		zap.Stringer("lhs", a),
		zap.Stringer("rhs", b),
		zap.Stringer("result", handle),
	)
	return handle, nil
}

// Has reports whether the service holds a ciphertext for the handle.
func (s *Service) Has(h planetbounce.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cts[h]
	return ok
}

// RegisterReporter subscribes a reporter to comparison outcomes revealed by
// authorized decryptions.
func (s *Service) RegisterReporter(r OutcomeReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, r)
}

// encryptLocked encrypts value and registers the ciphertext. Caller holds mu.
func (s *Service) encryptLocked(value uint64, kind ciphertextKind) (planetbounce.Handle, error) {
	pt := bfv.NewPlaintext(s.params, s.params.MaxLevel())
	s.encoder.Encode([]uint64{value}, pt)
	ct := s.encryptor.EncryptNew(pt)
	return s.registerLocked(ct, kind)
}

// registerLocked stores a ciphertext under its derived handle. The handle is
// the keccak256 of the serialized ciphertext. Caller holds mu.
func (s *Service) registerLocked(ct *rlwe.Ciphertext, kind ciphertextKind) (planetbounce.Handle, error) {
	raw, err := ct.MarshalBinary()
	if err != nil {
		return planetbounce.Handle{}, fmt.Errorf("failed to serialize ciphertext: %w", err)
	}
	handle := planetbounce.Handle(crypto.Keccak256Hash(raw))
	s.cts[handle] = storedCiphertext{ct: ct, kind: kind}
	return handle, nil
}

// decryptLocked decrypts a stored ciphertext to its protocol-level value:
// the raw integer for value ciphertexts, a 0/1 match indicator for
// comparison results. Caller holds mu.
func (s *Service) decryptLocked(stored storedCiphertext) uint64 {
	pt := s.decryptor.DecryptNew(stored.ct)
	coeffs := make([]uint64, s.params.N())
	s.encoder.Decode(pt, coeffs)
	switch stored.kind {
	case kindMatch:
		if coeffs[0] == 0 {
			return 1
		}
		return 0
	default:
		return coeffs[0]
	}
}

// randomScalar draws a uniform scalar in [1, T).
func (s *Service) randomScalar() (uint64, error) {
	t := s.params.T()
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(t-1))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random scalar: %w", err)
	}
	return n.Uint64() + 1, nil
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
