// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fheclient implements the client side of the encrypted-guess
// protocol: the homomorphic engine lifecycle, encrypted input construction,
// and the decryption authorization flow.
package fheclient

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	gmath "github.com/luxfi/geth/common/math"
	"github.com/luxfi/geth/signer/core/apitypes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/relayer"
)

// State is the engine lifecycle state.
type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Engine fetches and caches the service's signing metadata. Initialization is
// deduplicated: any number of concurrent Init calls share one in-flight
// attempt, and waiters block on a channel rather than polling. A failed
// attempt leaves the engine errored; a later Init starts a fresh attempt.
type Engine struct {
	log    *zap.Logger
	client *relayer.Client

	group singleflight.Group

	mu     sync.Mutex
	state  State
	domain apitypes.TypedDataDomain
	ready  chan struct{}
}

func NewEngine(log *zap.Logger, client *relayer.Client) *Engine {
	return &Engine{
		log:    log,
		client: client,
		ready:  make(chan struct{}),
	}
}

// Init brings the engine to the ready state, fetching the signing domain from
// the service. Concurrent callers share a single fetch.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateReady {
		e.mu.Unlock()
		return nil
	}
	e.state = StateInitializing
	e.mu.Unlock()

	_, err, _ := e.group.Do("init", func() (interface{}, error) {
		e.mu.Lock()
		done := e.state == StateReady
		e.mu.Unlock()
		if done {
			return nil, nil
		}

		resp, err := e.client.KeyURL(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", planetbounce.ErrEngineNotReady, err)
		}
		if resp.Status != "ready" {
			return nil, fmt.Errorf("%w: service status %q", planetbounce.ErrEngineNotReady, resp.Status)
		}

		e.mu.Lock()
		if e.state != StateReady {
			e.domain = apitypes.TypedDataDomain{
				Name:              resp.Domain.Name,
				Version:           resp.Domain.Version,
				ChainId:           (*gmath.HexOrDecimal256)(new(big.Int).SetUint64(resp.Domain.ChainID)),
				VerifyingContract: resp.Domain.VerifyingContract,
			}
			e.state = StateReady
			close(e.ready)
		}
		e.mu.Unlock()

		e.log.Info("homomorphic engine ready",
			zap.String("domain", resp.Domain.Name),
			zap.Uint64("chainID", resp.Domain.ChainID),
		)
		return nil, nil
	})
	if err != nil {
		e.mu.Lock()
		if e.state != StateReady {
			e.state = StateErrored
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// WaitReady blocks until the engine is ready or ctx expires. It does not
// trigger initialization.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", planetbounce.ErrEngineNotReady, ctx.Err())
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Domain returns the service's EIP-712 signing domain. It errors until the
// engine is ready.
func (e *Engine) Domain() (apitypes.TypedDataDomain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady {
		return apitypes.TypedDataDomain{}, fmt.Errorf("%w: state %s", planetbounce.ErrEngineNotReady, e.state)
	}
	return e.domain, nil
}
