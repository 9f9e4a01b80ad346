// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer provides the HTTP surface between the client protocol and
// the threshold-decryption/coprocessor service: the same-origin bridge that
// forwards browser-side requests to the upstream service, the upstream dev
// service itself, and the typed client used by the encryption and decryption
// flows.
package relayer

// Wire shapes of the coprocessor service API. Numeric validity fields travel
// as decimal strings, matching the upstream service convention.

// InputRequest asks the service to produce an encrypted input bound to a
// (contract, user) pair.
type InputRequest struct {
	ContractAddress string `json:"contractAddress"`
	UserAddress     string `json:"userAddress"`
	Value           uint64 `json:"value"`
}

// InputResponse carries the resulting ciphertext handle and input proof.
type InputResponse struct {
	Handle     string `json:"handle"`
	InputProof string `json:"inputProof"`
}

// WireHandleContractPair names one handle and the contract that produced it.
type WireHandleContractPair struct {
	Handle          string `json:"handle"`
	ContractAddress string `json:"contractAddress"`
}

// UserDecryptRequest carries a decryption authorization credential. The
// ephemeral private key never appears here: it stays with the caller, where
// the production protocol uses it to unbox the re-encrypted response.
type UserDecryptRequest struct {
	HandleContractPairs []WireHandleContractPair `json:"handleContractPairs"`
	UserAddress         string                   `json:"userAddress"`
	PublicKey           string                   `json:"publicKey"`
	Signature           string                   `json:"signature"`
	ContractAddresses   []string                 `json:"contractAddresses"`
	StartTimestamp      string                   `json:"startTimestamp"`
	DurationDays        string                   `json:"durationDays"`
}

// UserDecryptResponse maps canonical hex handles to decrypted values,
// together with the service's attestation over the map.
type UserDecryptResponse struct {
	Values      map[string]uint64 `json:"values"`
	Attestation string            `json:"attestation"`
}

// DomainInfo is the EIP-712 signing domain advertised by the service.
type DomainInfo struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

// KeyURLResponse advertises service readiness, the signing domain, and the
// attestation public key.
type KeyURLResponse struct {
	Status         string     `json:"status"`
	Domain         DomainInfo `json:"domain"`
	AttestationKey string     `json:"attestationKey"`
}

// ErrorResponse is the JSON error body used by both the bridge and the
// service.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Service routes.
const (
	InputPath       = "/v1/input"
	UserDecryptPath = "/v1/user-decrypt"
	KeyURLPath      = "/v1/keyurl"
)
