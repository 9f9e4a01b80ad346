// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package fheclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/crypto"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/relayer"
)

// Client builds encrypted guesses and runs the decryption authorization flow
// against the service, holding at most one decryption in flight at a time.
type Client struct {
	log     *zap.Logger
	engine  *Engine
	relayer *relayer.Client
	nowFn   func() time.Time

	mu         sync.Mutex
	decrypting bool
}

func NewClient(log *zap.Logger, engine *Engine, rc *relayer.Client) *Client {
	return &Client{
		log:     log,
		engine:  engine,
		relayer: rc,
		nowFn:   time.Now,
	}
}

// BuildEncryptedGuess encrypts option under the service's public key, bound
// to (contract, submitter). The engine must be ready.
func (c *Client) BuildEncryptedGuess(
	ctx context.Context,
	contract common.Address,
	submitter common.Address,
	option planetbounce.Planet,
) (*planetbounce.EncryptedInput, error) {
	if !option.Valid() {
		return nil, fmt.Errorf("%w: %d", planetbounce.ErrInvalidOption, option)
	}
	if c.engine.State() != StateReady {
		return nil, fmt.Errorf("%w: state %s", planetbounce.ErrEngineNotReady, c.engine.State())
	}

	input, err := c.relayer.EncryptInput(ctx, contract, submitter, uint64(option))
	if err != nil {
		if errors.Is(err, planetbounce.ErrRelayerUnavailable) {
			return nil, err
		}
		if errors.Is(err, planetbounce.ErrEncryptionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", planetbounce.ErrEncryptionFailed, err)
	}

	c.log.Debug("encrypted guess built",
		zap.Stringer("handle", input.Handle),
		zap.String("submitter", submitter.Hex()),
	)
	return input, nil
}

// DecryptResult authorizes decryption of a match-result handle and returns
// whether it revealed a match. Each attempt uses a fresh ephemeral keypair
// and a fresh signed credential valid for one day. A second attempt while
// one is outstanding fails with ErrDecryptionInFlight.
func (c *Client) DecryptResult(
	ctx context.Context,
	handle planetbounce.Handle,
	contract common.Address,
	signer Signer,
) (bool, error) {
	if handle.IsZero() {
		return false, fmt.Errorf("%w: zero result handle", planetbounce.ErrResultNotReady)
	}

	c.mu.Lock()
	if c.decrypting {
		c.mu.Unlock()
		return false, planetbounce.ErrDecryptionInFlight
	}
	c.decrypting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.decrypting = false
		c.mu.Unlock()
	}()

	domain, err := c.engine.Domain()
	if err != nil {
		return false, err
	}

	ephemeral, err := crypto.GenerateKey()
	if err != nil {
		return false, fmt.Errorf("could not generate ephemeral key: %w", err)
	}
	publicKey := crypto.FromECDSAPub(&ephemeral.PublicKey)

	start := uint64(c.nowFn().Unix())
	td := planetbounce.DecryptionTypedData(
		domain, publicKey, []common.Address{contract}, start, planetbounce.DefaultValidityDays)

	signature, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return false, fmt.Errorf("%w: %s", planetbounce.ErrSignatureRejected, err)
	}

	values, err := c.relayer.UserDecrypt(ctx, &relayer.UserDecryptRequest{
		HandleContractPairs: []relayer.WireHandleContractPair{{
			Handle:          handle.Hex(),
			ContractAddress: contract.Hex(),
		}},
		UserAddress:       signer.Address().Hex(),
		PublicKey:         hexutil.Encode(publicKey),
		Signature:         hexutil.Encode(signature),
		ContractAddresses: []string{contract.Hex()},
		StartTimestamp:    strconv.FormatUint(start, 10),
		DurationDays:      strconv.FormatUint(planetbounce.DefaultValidityDays, 10),
	})
	if err != nil {
		return false, err
	}

	value, ok := values[handle.Hex()]
	if !ok {
		return false, fmt.Errorf("%w: no value for handle %s", planetbounce.ErrDecryptionIncomplete, handle)
	}

	c.log.Debug("result decrypted",
		zap.Stringer("handle", handle),
		zap.Uint64("value", value),
	)
	return value == 1, nil
}
