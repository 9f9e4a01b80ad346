// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package fheclient

import (
	"context"
	"crypto/ecdsa"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"

	"github.com/luxfi/planetbounce"
)

// Signer produces EIP-712 signatures over decryption authorization
// credentials. Implementations may prompt the user and refuse.
type Signer interface {
	// Address is the account the signatures recover to.
	Address() common.Address

	// SignTypedData signs the EIP-712 digest of td. An error means the
	// holder declined or could not sign.
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

// LocalSigner signs with an in-memory secp256k1 key.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ Signer = (*LocalSigner)(nil)

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:  key,
		addr: common.Address(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

func (s *LocalSigner) Address() common.Address {
	return s.addr
}

func (s *LocalSigner) SignTypedData(_ context.Context, td apitypes.TypedData) ([]byte, error) {
	digest, err := planetbounce.HashTypedData(td)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest, s.key)
}
