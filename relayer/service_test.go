// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/coprocessor"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000c0ffee01")

type serviceFixture struct {
	cop    *coprocessor.Service
	server *httptest.Server
	client *Client
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cop, err := coprocessor.New(zap.NewNop(), 1337, testContract)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewServer(zap.NewNop(), cop).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &serviceFixture{
		cop:    cop,
		server: server,
		client: NewClient(zap.NewNop(), server.URL),
	}
}

// wireDecryptRequest builds a signed credential in its wire form.
func wireDecryptRequest(
	t *testing.T,
	f *serviceFixture,
	identity *ecdsa.PrivateKey,
	user common.Address,
	handles []planetbounce.Handle,
) *UserDecryptRequest {
	t.Helper()
	ephemeral, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.FromECDSAPub(&ephemeral.PublicKey)

	start := uint64(time.Now().Unix())
	td := planetbounce.DecryptionTypedData(
		f.cop.Domain(), pub, []common.Address{testContract}, start, planetbounce.DefaultValidityDays)
	digest, err := planetbounce.HashTypedData(td)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, identity)
	require.NoError(t, err)

	pairs := make([]WireHandleContractPair, len(handles))
	for i, h := range handles {
		pairs[i] = WireHandleContractPair{Handle: h.Hex(), ContractAddress: testContract.Hex()}
	}
	return &UserDecryptRequest{
		HandleContractPairs: pairs,
		UserAddress:         user.Hex(),
		PublicKey:           hexutil.Encode(pub),
		Signature:           hexutil.Encode(sig),
		ContractAddresses:   []string{testContract.Hex()},
		StartTimestamp:      strconv.FormatUint(start, 10),
		DurationDays:        strconv.FormatUint(planetbounce.DefaultValidityDays, 10),
	}
}

func TestKeyURLAdvertisesDomain(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.client.KeyURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ready", resp.Status)
	require.Equal(t, coprocessor.SigningDomainName, resp.Domain.Name)
	require.Equal(t, coprocessor.SigningDomainVersion, resp.Domain.Version)
	require.Equal(t, uint64(1337), resp.Domain.ChainID)
	require.Equal(t, testContract.Hex(), resp.Domain.VerifyingContract)

	keyBytes, err := hexutil.Decode(resp.AttestationKey)
	require.NoError(t, err)
	require.Equal(t,
		bls.PublicKeyToCompressedBytes(f.cop.AttestationKey()),
		keyBytes,
	)
}

func TestEncryptInputEndToEnd(t *testing.T) {
	f := newServiceFixture(t)
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	input, err := f.client.EncryptInput(context.Background(), testContract, user, 3)
	require.NoError(t, err)
	require.False(t, input.Handle.IsZero())
	require.NoError(t, f.cop.VerifyInput(input.Handle, input.Proof, testContract, user))

	// The proof binds the original (contract, user) pair.
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	require.Error(t, f.cop.VerifyInput(input.Handle, input.Proof, testContract, other))
}

func TestInputRejectsMalformedRequests(t *testing.T) {
	f := newServiceFixture(t)

	for name, body := range map[string]string{
		"invalid json":    `{"contractAddress":`,
		"invalid address": `{"contractAddress":"nope","userAddress":"nope","value":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+InputPath, "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Get(f.server.URL + InputPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestUserDecryptEndToEnd(t *testing.T) {
	f := newServiceFixture(t)
	identity, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := common.Address(crypto.PubkeyToAddress(identity.PublicKey))

	const value = 5
	input, err := f.client.EncryptInput(context.Background(), testContract, user, value)
	require.NoError(t, err)
	require.NoError(t, f.cop.Allow(input.Handle, user))

	req := wireDecryptRequest(t, f, identity, user, []planetbounce.Handle{input.Handle})
	values, err := f.client.UserDecrypt(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, uint64(value), values[input.Handle.Hex()])
}

func TestUserDecryptWithoutGrantIsForbidden(t *testing.T) {
	f := newServiceFixture(t)
	identity, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := common.Address(crypto.PubkeyToAddress(identity.PublicKey))

	input, err := f.client.EncryptInput(context.Background(), testContract, user, 2)
	require.NoError(t, err)

	req := wireDecryptRequest(t, f, identity, user, []planetbounce.Handle{input.Handle})
	_, err = f.client.UserDecrypt(context.Background(), req)
	require.ErrorIs(t, err, planetbounce.ErrNotAuthorized)
}

func TestUserDecryptUnknownHandleIsNotFound(t *testing.T) {
	f := newServiceFixture(t)
	identity, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := common.Address(crypto.PubkeyToAddress(identity.PublicKey))

	var unknown planetbounce.Handle
	unknown[0] = 0x01
	req := wireDecryptRequest(t, f, identity, user, []planetbounce.Handle{unknown})
	_, err = f.client.UserDecrypt(context.Background(), req)
	require.ErrorIs(t, err, planetbounce.ErrResultNotReady)
}

func TestClientThroughBridge(t *testing.T) {
	f := newServiceFixture(t)

	bridge := newTestBridge(t, f.server.URL)
	mux := http.NewServeMux()
	mux.Handle(BridgePathPrefix, bridge)
	front := httptest.NewServer(mux)
	defer front.Close()

	client := NewClient(zap.NewNop(), front.URL+"/api/relayer")
	identity, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := common.Address(crypto.PubkeyToAddress(identity.PublicKey))

	input, err := client.EncryptInput(context.Background(), testContract, user, 7)
	require.NoError(t, err)
	require.NoError(t, f.cop.Allow(input.Handle, user))

	req := wireDecryptRequest(t, f, identity, user, []planetbounce.Handle{input.Handle})
	values, err := client.UserDecrypt(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, uint64(7), values[input.Handle.Hex()])
}

func TestClientUnreachableService(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	client := NewClient(zap.NewNop(), dead.URL)
	_, err := client.KeyURL(context.Background())
	require.ErrorIs(t, err, planetbounce.ErrRelayerUnavailable)
}
