// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	gmath "github.com/luxfi/geth/common/math"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
)

// DecryptionPrimaryType is the primary type of the typed, domain-separated
// message a player signs to authorize decryption of a result handle.
const DecryptionPrimaryType = "UserDecryptRequestVerification"

// DefaultValidityDays is the validity window applied when the engine does not
// supply one.
const DefaultValidityDays = 1

// DecryptionTypes describes the schema of the authorization credential.
var DecryptionTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	DecryptionPrimaryType: {
		{Name: "publicKey", Type: "bytes"},
		{Name: "contractAddresses", Type: "address[]"},
		{Name: "startTimestamp", Type: "uint256"},
		{Name: "durationDays", Type: "uint256"},
	},
}

// DecryptionTypedData builds the typed authorization message binding an
// ephemeral public key, a validity window, and the authorized contract list
// under the engine-supplied signing domain. The domain is passed through
// unmodified; only the validity fields are injected here.
func DecryptionTypedData(
	domain apitypes.TypedDataDomain,
	publicKey []byte,
	contracts []common.Address,
	startTimestamp uint64,
	durationDays uint64,
) apitypes.TypedData {
	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}
	return apitypes.TypedData{
		Types:       DecryptionTypes,
		PrimaryType: DecryptionPrimaryType,
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"startTimestamp":    (*gmath.HexOrDecimal256)(new(big.Int).SetUint64(startTimestamp)),
			"durationDays":      (*gmath.HexOrDecimal256)(new(big.Int).SetUint64(durationDays)),
		},
	}
}

// HashTypedData returns the EIP-712 digest of the typed data.
func HashTypedData(td apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return digest, nil
}

// RecoverTypedDataSigner recovers the identity that produced sig over td.
// Both 0/1 and 27/28 recovery id conventions are accepted.
func RecoverTypedDataSigner(td apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d",
			ErrSignatureRejected, crypto.SignatureLength, len(sig))
	}
	digest, err := HashTypedData(td)
	if err != nil {
		return common.Address{}, err
	}
	norm := make([]byte, len(sig))
	copy(norm, sig)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}
