// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/coprocessor"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	verifierAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type fixture struct {
	cop      *coprocessor.Service
	contract *PlanetBounce
	events   *planetbounce.EventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cop, err := coprocessor.New(zap.NewNop(), 1337, verifierAddr)
	require.NoError(t, err)
	events := &planetbounce.EventLog{}
	return &fixture{
		cop:      cop,
		contract: New(zap.NewNop(), contractAddr, cop, events),
		events:   events,
	}
}

func newPlayer(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, common.Address(crypto.PubkeyToAddress(key.PublicKey))
}

// playGuess encrypts planet for player and submits it.
func (f *fixture) playGuess(t *testing.T, player common.Address, planet planetbounce.Planet) {
	t.Helper()
	handle, proof, err := f.cop.Encrypt(contractAddr, player, uint64(planet))
	require.NoError(t, err)
	input, err := planetbounce.NewEncryptedInput(handle, proof)
	require.NoError(t, err)
	require.NoError(t, f.contract.Play(player, input))
}

// decryptResult runs the full authorization flow for the player's current
// result handle and returns the revealed match bit.
func (f *fixture) decryptResult(t *testing.T, identity *ecdsa.PrivateKey, player common.Address) bool {
	t.Helper()
	handle, err := f.contract.GetResultHandle(player)
	require.NoError(t, err)

	ephemeral, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.FromECDSAPub(&ephemeral.PublicKey)
	now := uint64(time.Now().Unix())

	td := planetbounce.DecryptionTypedData(f.cop.Domain(), pub, []common.Address{contractAddr}, now, 1)
	digest, err := planetbounce.HashTypedData(td)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest, identity)
	require.NoError(t, err)

	resp, err := f.cop.UserDecrypt(&coprocessor.DecryptRequest{
		Pairs:          []coprocessor.HandleContractPair{{Handle: handle, Contract: contractAddr}},
		User:           player,
		PublicKey:      pub,
		Signature:      sig,
		Contracts:      []common.Address{contractAddr},
		StartTimestamp: now,
		DurationDays:   1,
	})
	require.NoError(t, err)
	v, ok := resp.Values[handle.Hex()]
	require.True(t, ok)
	return v == 1
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	_, player := newPlayer(t)

	require.True(t, f.contract.GamesPlayed(player).IsZero())
	require.True(t, f.contract.Wins(player).IsZero())

	_, err := f.contract.GetResultHandle(player)
	require.ErrorIs(t, err, planetbounce.ErrNoResultYet)
	require.EqualError(t, err, "no result yet")
}

func TestPlayAcceptsOneGuess(t *testing.T) {
	f := newFixture(t)
	_, player := newPlayer(t)

	f.playGuess(t, player, planetbounce.Mars)

	require.Equal(t, uint64(1), f.contract.GamesPlayed(player).Uint64())
	handle, err := f.contract.GetResultHandle(player)
	require.NoError(t, err)
	require.False(t, handle.IsZero())
}

func TestPlayRejectsForeignProof(t *testing.T) {
	f := newFixture(t)
	_, player := newPlayer(t)
	_, other := newPlayer(t)

	// Proof bound to a different submitter must not be replayable.
	handle, proof, err := f.cop.Encrypt(contractAddr, other, uint64(planetbounce.Venus))
	require.NoError(t, err)
	input, err := planetbounce.NewEncryptedInput(handle, proof)
	require.NoError(t, err)

	err = f.contract.Play(player, input)
	require.ErrorIs(t, err, planetbounce.ErrInvalidProof)
	require.True(t, f.contract.GamesPlayed(player).IsZero())
	_, err = f.contract.GetResultHandle(player)
	require.ErrorIs(t, err, planetbounce.ErrNoResultYet)
}

func TestRepeatPlayOverwrites(t *testing.T) {
	f := newFixture(t)
	_, player := newPlayer(t)

	f.playGuess(t, player, planetbounce.Mercury)
	first, err := f.contract.GetResultHandle(player)
	require.NoError(t, err)

	f.playGuess(t, player, planetbounce.Neptune)
	second, err := f.contract.GetResultHandle(player)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, uint64(2), f.contract.GamesPlayed(player).Uint64())
}

func TestPlayerIsolation(t *testing.T) {
	f := newFixture(t)
	_, alice := newPlayer(t)
	_, bob := newPlayer(t)

	f.playGuess(t, alice, planetbounce.Earth)

	require.Equal(t, uint64(1), f.contract.GamesPlayed(alice).Uint64())
	require.True(t, f.contract.GamesPlayed(bob).IsZero())
	require.True(t, f.contract.Wins(bob).IsZero())
	_, err := f.contract.GetResultHandle(bob)
	require.ErrorIs(t, err, planetbounce.ErrNoResultYet)
}

func TestResultGrantScopedToSubmitter(t *testing.T) {
	f := newFixture(t)
	_, alice := newPlayer(t)
	_, bob := newPlayer(t)

	f.playGuess(t, alice, planetbounce.Saturn)
	handle, err := f.contract.GetResultHandle(alice)
	require.NoError(t, err)

	require.True(t, f.cop.IsAllowed(handle, alice))
	require.False(t, f.cop.IsAllowed(handle, bob))
}

func TestEventOrdering(t *testing.T) {
	f := newFixture(t)
	_, player := newPlayer(t)

	f.playGuess(t, player, planetbounce.Jupiter)

	events := f.events.ByPlayer(player)
	require.Len(t, events, 3)
	require.Equal(t, "GameStarted", events[0].Type())
	require.Equal(t, "GuessSubmitted", events[1].Type())
	require.Equal(t, "GameResult", events[2].Type())

	started := events[0].(planetbounce.GameStarted)
	require.NotZero(t, started.GameID)
	result := events[2].(planetbounce.GameResult)
	handle, err := f.contract.GetResultHandle(player)
	require.NoError(t, err)
	require.Equal(t, handle, result.Result)
}

func TestRoundTripIsDeterministicPerHandle(t *testing.T) {
	f := newFixture(t)
	identity, player := newPlayer(t)

	f.playGuess(t, player, planetbounce.Mars)
	first := f.decryptResult(t, identity, player)
	// Repeating the decryption against the same handle reveals the same bit.
	require.Equal(t, first, f.decryptResult(t, identity, player))
}

func TestWinsAccrueOnRevealedMatch(t *testing.T) {
	f := newFixture(t)
	identity, player := newPlayer(t)

	// Keep playing until a game is won, then check the deferred accounting.
	// Eight options make a miss likely on any single game, so iterate; each
	// game re-guesses every option once, which must reveal exactly one match
	// against the fixed target.
	won := false
	for _, planet := range planetbounce.Planets() {
		f.playGuess(t, player, planet)
		require.True(t, f.contract.Wins(player).IsZero() || won,
			"wins must not change before the result is decrypted")
		if f.decryptResult(t, identity, player) {
			won = true
		}
	}
	require.True(t, won, "one of the eight options must match the target")
	require.Equal(t, uint64(1), f.contract.Wins(player).Uint64())
	require.Equal(t, uint64(planetbounce.PlanetCount), f.contract.GamesPlayed(player).Uint64())
}

func TestWinCreditIsIdempotentPerGame(t *testing.T) {
	f := newFixture(t)
	identity, player := newPlayer(t)

	won := false
	for _, planet := range planetbounce.Planets() {
		f.playGuess(t, player, planet)
		if f.decryptResult(t, identity, player) {
			won = true
			// Decrypt the same winning result again.
			require.True(t, f.decryptResult(t, identity, player))
			break
		}
	}
	require.True(t, won)
	require.Equal(t, uint64(1), f.contract.Wins(player).Uint64())
}
