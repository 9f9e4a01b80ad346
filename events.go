// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package planetbounce

import (
	"sync"

	"github.com/luxfi/geth/common"
)

// Event is an observability event emitted by the ledger contract.
type Event interface {
	// Type returns the event name.
	Type() string
	// Account returns the player the event concerns.
	Account() common.Address
}

// GameStarted is emitted when a guess is accepted and a new game begins.
type GameStarted struct {
	Player common.Address
	GameID uint64
}

func (GameStarted) Type() string { return "GameStarted" }
func (e GameStarted) Account() common.Address { return e.Player }

// GuessSubmitted is emitted after GameStarted with the accepted guess handle.
type GuessSubmitted struct {
	Player common.Address
	Guess  Handle
}

func (GuessSubmitted) Type() string { return "GuessSubmitted" }
func (e GuessSubmitted) Account() common.Address { return e.Player }

// GameResult is emitted last, once the encrypted comparison result is stored.
type GameResult struct {
	Player common.Address
	Result Handle
}

func (GameResult) Type() string { return "GameResult" }
func (e GameResult) Account() common.Address { return e.Player }

// EventAcceptor receives contract events in emission order.
type EventAcceptor interface {
	Accept(ev Event)
}

// EventLog is an EventAcceptor that records events for inspection. It is safe
// for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *EventLog) Accept(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a snapshot of the recorded events in emission order.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// ByPlayer returns the recorded events for a single player.
func (l *EventLog) ByPlayer(player common.Address) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Account() == player {
			out = append(out, ev)
		}
	}
	return out
}
