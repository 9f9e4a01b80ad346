// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract models the on-chain side of the encrypted-guess protocol:
// a per-player game ledger that accepts encrypted guesses, computes encrypted
// comparisons through the coprocessor, and exposes result handles under
// access control. Calls execute with ledger serialization semantics: one
// state-changing call completes at a time.
package contract

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/coprocessor"
)

// PlanetCount is the size of the option set, mirrored from the protocol
// vocabulary. Exposed read-only and never mutated.
const PlanetCount = planetbounce.PlanetCount

// gameRecord is the per-player state. The target is drawn by the coprocessor
// on the player's first game and never decrypted toward the player.
type gameRecord struct {
	target planetbounce.Handle
	guess  planetbounce.Handle
	result planetbounce.Handle
	gameID uint64
	played bool
}

// PlanetBounce is the ledger-state machine. Per-player records are fully
// independent; the only shared state is the ledger itself.
type PlanetBounce struct {
	log     *zap.Logger
	address common.Address
	cop     *coprocessor.Service
	events  planetbounce.EventAcceptor

	mu          sync.Mutex
	games       map[common.Address]*gameRecord
	gamesPlayed map[common.Address]*uint256.Int
	wins        map[common.Address]*uint256.Int
	nextGameID  uint64

	// resultOwner maps a result handle to the game it concluded, so a
	// decryption outcome reported by the coprocessor can be credited.
	resultOwner map[planetbounce.Handle]outcomeKey
	credited    map[uint64]bool
}

type outcomeKey struct {
	player common.Address
	gameID uint64
}

// New deploys the contract model at address, wired to the coprocessor. The
// contract registers itself as an outcome reporter so wins accrue when a
// player's authorized decryption reveals a match. Events go to acceptor;
// a nil acceptor drops them.
func New(
	log *zap.Logger,
	address common.Address,
	cop *coprocessor.Service,
	acceptor planetbounce.EventAcceptor,
) *PlanetBounce {
	c := &PlanetBounce{
		log:         log,
		address:     address,
		cop:         cop,
		events:      acceptor,
		games:       make(map[common.Address]*gameRecord),
		gamesPlayed: make(map[common.Address]*uint256.Int),
		wins:        make(map[common.Address]*uint256.Int),
		nextGameID:  1,
		resultOwner: make(map[planetbounce.Handle]outcomeKey),
		credited:    make(map[uint64]bool),
	}
	cop.RegisterReporter(c)
	return c
}

// Address returns the contract's deployed address. Input proofs must bind to
// this address.
func (c *PlanetBounce) Address() common.Address {
	return c.address
}

// Play accepts exactly one encrypted guess. The input proof must bind the
// guess ciphertext to (contract, caller); on acceptance the contract computes
// an encrypted equality against the caller's stored target, stores the result
// handle, grants decryption of that handle to the caller alone, and
// increments the caller's lifetime gamesPlayed counter.
//
// A repeat call by the same caller starts a fresh game: new gameId, new
// result handle, gamesPlayed incremented again. The previous result handle
// stops being reachable through GetResultHandle but its grant is not revoked.
//
// Events are emitted in order: GameStarted, GuessSubmitted, GameResult.
func (c *PlanetBounce) Play(caller common.Address, input *planetbounce.EncryptedInput) error {
	if input == nil {
		return fmt.Errorf("%w: nil input", planetbounce.ErrInvalidProof)
	}
	if err := input.Verify(); err != nil {
		return err
	}
	if err := c.cop.VerifyInput(input.Handle, input.Proof, c.address, caller); err != nil {
		return fmt.Errorf("play rejected: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.games[caller]
	if !ok {
		record = &gameRecord{}
		c.games[caller] = record
	}
	if record.target.IsZero() {
		target, err := c.cop.RandomEncrypted(PlanetCount)
		if err != nil {
			return fmt.Errorf("failed to draw target: %w", err)
		}
		record.target = target
	}

	result, err := c.cop.Eq(record.target, input.Handle)
	if err != nil {
		return fmt.Errorf("failed to compute encrypted comparison: %w", err)
	}
	if err := c.cop.Allow(result, caller); err != nil {
		return fmt.Errorf("failed to grant result access: %w", err)
	}

	gameID := c.nextGameID
	c.nextGameID++

	record.guess = input.Handle
	record.result = result
	record.gameID = gameID
	record.played = true
	c.resultOwner[result] = outcomeKey{player: caller, gameID: gameID}

	played := c.gamesPlayed[caller]
	if played == nil {
		played = uint256.NewInt(0)
		c.gamesPlayed[caller] = played
	}
	played.Add(played, uint256.NewInt(1))

	c.emit(planetbounce.GameStarted{Player: caller, GameID: gameID})
	c.emit(planetbounce.GuessSubmitted{Player: caller, Guess: input.Handle})
	c.emit(planetbounce.GameResult{Player: caller, Result: result})

	c.log.Info("guess accepted",
		zap.String("player", caller.Hex()),
		zap.Uint64("gameID", gameID),
		zap.Stringer("result", result),
	)
	return nil
}

// GetResultHandle returns the caller's current result handle. Absence is a
// failure, never a zero handle: callers that have not completed a Play get
// ErrNoResultYet.
func (c *PlanetBounce) GetResultHandle(caller common.Address) (planetbounce.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.games[caller]
	if !ok || !record.played {
		return planetbounce.Handle{}, planetbounce.ErrNoResultYet
	}
	return record.result, nil
}

// GamesPlayed returns the lifetime number of accepted guesses for addr,
// zero for addresses that never played.
func (c *PlanetBounce) GamesPlayed(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.gamesPlayed[addr]; ok {
		return v.Clone()
	}
	return uint256.NewInt(0)
}

// Wins returns the lifetime number of revealed matches for addr, zero for
// addresses that never played. Wins accrue only when an authorized
// decryption reveals a match, so this counter may trail a not-yet-decrypted
// result.
func (c *PlanetBounce) Wins(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.wins[addr]; ok {
		return v.Clone()
	}
	return uint256.NewInt(0)
}

// ReportOutcome credits a win when the coprocessor reveals a match for a
// result handle this contract produced. Credits are idempotent per game.
// Handles produced elsewhere are ignored.
func (c *PlanetBounce) ReportOutcome(result planetbounce.Handle, matched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.resultOwner[result]
	if !ok || !matched || c.credited[key.gameID] {
		return
	}
	c.credited[key.gameID] = true

	wins := c.wins[key.player]
	if wins == nil {
		wins = uint256.NewInt(0)
		c.wins[key.player] = wins
	}
	wins.Add(wins, uint256.NewInt(1))

	c.log.Info("win credited",
		zap.String("player", key.player.Hex()),
		zap.Uint64("gameID", key.gameID),
	)
}

func (c *PlanetBounce) emit(ev planetbounce.Event) {
	if c.events != nil {
		c.events.Accept(ev)
	}
}
