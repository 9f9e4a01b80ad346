// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package controller sequences a client game session through its phases:
// pick an option, encrypt and submit it, authorize decryption, show the
// result. The controller is the only owner of the phase value.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/fheclient"
)

// Phase is a client session phase. Exactly one is active at a time.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseEncrypting
	PhaseDecrypting
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseEncrypting:
		return "encrypting"
	case PhaseDecrypting:
		return "decrypting"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

var (
	// ErrBadPhase is returned when an operation is invoked in a phase whose
	// guards do not admit it.
	ErrBadPhase = errors.New("operation not allowed in current phase")

	// ErrNoSelection is returned when submission is attempted before an
	// option has been selected.
	ErrNoSelection = errors.New("no option selected")
)

// Ledger is the contract surface the controller writes to and reads from.
type Ledger interface {
	Play(caller common.Address, input *planetbounce.EncryptedInput) error
	GetResultHandle(caller common.Address) (planetbounce.Handle, error)
}

// Controller drives one player session. It is not safe for concurrent use:
// the client scheduling model is single-threaded and cooperative, and the
// decryption layer underneath enforces its own single-outstanding-attempt
// guard.
type Controller struct {
	log      *zap.Logger
	client   *fheclient.Client
	engine   *fheclient.Engine
	ledger   Ledger
	contract common.Address
	signer   fheclient.Signer

	phase     Phase
	selection planetbounce.Planet
	selected  bool
	result    planetbounce.Handle
	matched   bool
	hasResult bool
	status    string
}

func New(
	log *zap.Logger,
	client *fheclient.Client,
	engine *fheclient.Engine,
	ledger Ledger,
	contract common.Address,
	signer fheclient.Signer,
) *Controller {
	return &Controller{
		log:      log,
		client:   client,
		engine:   engine,
		ledger:   ledger,
		contract: contract,
		signer:   signer,
		phase:    PhaseIdle,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Status returns the latest user-facing status message.
func (c *Controller) Status() string {
	return c.status
}

// Selection returns the currently selected option, if any.
func (c *Controller) Selection() (planetbounce.Planet, bool) {
	return c.selection, c.selected
}

// Result returns the revealed match bit once the session reached the result
// phase.
func (c *Controller) Result() (bool, bool) {
	return c.matched, c.hasResult
}

// Select records the player's option. Only admitted while idle or selecting.
func (c *Controller) Select(option planetbounce.Planet) error {
	if c.phase != PhaseIdle && c.phase != PhaseSelecting {
		return fmt.Errorf("%w: select in %s", ErrBadPhase, c.phase)
	}
	if !option.Valid() {
		return fmt.Errorf("%w: %d", planetbounce.ErrInvalidOption, option)
	}
	c.selection = option
	c.selected = true
	c.phase = PhaseSelecting
	c.status = fmt.Sprintf("selected %s", option)
	return nil
}

// Submit encrypts the selected option and plays it on the ledger. On
// success the session moves to decrypting, holding the confirmed result
// handle. Any encryption or ledger failure returns the session to selecting
// with the selection preserved; the player retries manually.
func (c *Controller) Submit(ctx context.Context) error {
	if c.phase != PhaseSelecting {
		return fmt.Errorf("%w: submit in %s", ErrBadPhase, c.phase)
	}
	if !c.selected {
		return ErrNoSelection
	}
	if c.engine.State() != fheclient.StateReady {
		c.status = "engine offline"
		return fmt.Errorf("%w: state %s", planetbounce.ErrEngineNotReady, c.engine.State())
	}
	c.phase = PhaseEncrypting

	player := c.signer.Address()
	input, err := c.client.BuildEncryptedGuess(ctx, c.contract, player, c.selection)
	if err != nil {
		c.phase = PhaseSelecting
		c.status = statusFor(err)
		c.log.Warn("encryption failed", zap.Error(err))
		return err
	}

	if err := c.ledger.Play(player, input); err != nil {
		c.phase = PhaseSelecting
		c.status = statusFor(err)
		c.log.Warn("play rejected", zap.Error(err))
		return err
	}

	handle, err := c.ledger.GetResultHandle(player)
	if err != nil {
		c.phase = PhaseSelecting
		c.status = statusFor(err)
		return err
	}

	c.result = handle
	c.phase = PhaseDecrypting
	c.status = "guess submitted, result pending decryption"
	c.log.Info("guess confirmed",
		zap.Stringer("option", c.selection),
		zap.Stringer("result", handle),
	)
	return nil
}

// Decrypt authorizes decryption of the confirmed result handle. On failure
// the session stays in decrypting with the handle intact, so the player may
// retry; on success it moves to result.
func (c *Controller) Decrypt(ctx context.Context) error {
	if c.phase != PhaseDecrypting {
		return fmt.Errorf("%w: decrypt in %s", ErrBadPhase, c.phase)
	}

	matched, err := c.client.DecryptResult(ctx, c.result, c.contract, c.signer)
	if err != nil {
		c.status = statusFor(err)
		c.log.Warn("decryption failed", zap.Error(err))
		return err
	}

	c.matched = matched
	c.hasResult = true
	c.phase = PhaseResult
	if matched {
		c.status = "match"
	} else {
		c.status = "no match"
	}
	return nil
}

// PlayAgain resets a finished session to idle, clearing the selection and
// the revealed result.
func (c *Controller) PlayAgain() error {
	if c.phase != PhaseResult {
		return fmt.Errorf("%w: play-again in %s", ErrBadPhase, c.phase)
	}
	c.selection = 0
	c.selected = false
	c.result = planetbounce.Handle{}
	c.matched = false
	c.hasResult = false
	c.phase = PhaseIdle
	c.status = ""
	return nil
}

// statusFor classifies a failure into a user-facing message. Every failure
// path produces one; nothing is swallowed.
func statusFor(err error) string {
	switch {
	case errors.Is(err, planetbounce.ErrEngineNotReady):
		return "engine offline"
	case errors.Is(err, planetbounce.ErrEncryptionFailed):
		return "encryption error"
	case errors.Is(err, planetbounce.ErrSignatureRejected):
		return "signature declined"
	case errors.Is(err, planetbounce.ErrResultNotReady), errors.Is(err, planetbounce.ErrNoResultYet):
		return "result not ready"
	case errors.Is(err, planetbounce.ErrRelayerUnavailable):
		return "service outage"
	case errors.Is(err, planetbounce.ErrNotAuthorized):
		return "authorization error"
	case errors.Is(err, planetbounce.ErrDecryptionIncomplete):
		return "decryption incomplete"
	default:
		return fmt.Sprintf("error: %s", err)
	}
}
