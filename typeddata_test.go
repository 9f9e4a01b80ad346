// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import (
	"testing"

	"github.com/luxfi/geth/common"
	gmath "github.com/luxfi/geth/common/math"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

func testDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              "Decryption",
		Version:           "1",
		ChainId:           gmath.NewHexOrDecimal256(1337),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000c0ffee01").Hex(),
	}
}

func TestDecryptionTypedDataHashIsDeterministic(t *testing.T) {
	contracts := []common.Address{common.HexToAddress("0x00000000000000000000000000000000c0ffee01")}
	publicKey := []byte{0x04, 0x01, 0x02}

	td := DecryptionTypedData(testDomain(), publicKey, contracts, 1000, DefaultValidityDays)
	require.Equal(t, DecryptionPrimaryType, td.PrimaryType)

	h1, err := HashTypedData(td)
	require.NoError(t, err)
	h2, err := HashTypedData(DecryptionTypedData(testDomain(), publicKey, contracts, 1000, DefaultValidityDays))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	// Any field change moves the digest.
	h3, err := HashTypedData(DecryptionTypedData(testDomain(), publicKey, contracts, 1001, DefaultValidityDays))
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestRecoverTypedDataSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	td := DecryptionTypedData(testDomain(), []byte{0x04, 0xaa}, nil, 500, DefaultValidityDays)
	digest, err := HashTypedData(td)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	recovered, err := RecoverTypedDataSigner(td, sig)
	require.NoError(t, err)
	require.Equal(t, signer, recovered)

	// Legacy 27/28 V values are accepted too.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27
	recovered, err = RecoverTypedDataSigner(td, legacy)
	require.NoError(t, err)
	require.Equal(t, signer, recovered)

	// A corrupt signature does not recover the signer.
	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[0] ^= 0xff
	got, err := RecoverTypedDataSigner(td, bad)
	if err == nil {
		require.NotEqual(t, signer, got)
	}
}
