// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package planetbounce defines the shared vocabulary of the encrypted-guess
// protocol: the option set, ciphertext handles, encrypted input envelopes,
// the error taxonomy, and the game events emitted by the ledger contract.
package planetbounce

import (
	"errors"
	"fmt"
	"strings"
)

// PlanetCount is the size of the option set. It mirrors the PLANET_COUNT
// constant exposed by the on-chain contract and never changes.
const PlanetCount = 8

// Planet identifies one option of the fixed option set.
type Planet uint8

const (
	Mercury Planet = iota
	Venus
	Earth
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
)

var planetNames = [PlanetCount]string{
	"Mercury",
	"Venus",
	"Earth",
	"Mars",
	"Jupiter",
	"Saturn",
	"Uranus",
	"Neptune",
}

// ErrInvalidOption is returned when an option index falls outside the set.
var ErrInvalidOption = errors.New("invalid option index")

// Valid reports whether the planet is a member of the option set.
func (p Planet) Valid() bool {
	return uint8(p) < PlanetCount
}

// String returns the planet name, or a numeric fallback for out-of-range values.
func (p Planet) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Planet(%d)", uint8(p))
	}
	return planetNames[p]
}

// ParsePlanet resolves a planet by case-insensitive name.
func ParsePlanet(name string) (Planet, error) {
	for i, n := range planetNames {
		if strings.EqualFold(n, name) {
			return Planet(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown planet %q", ErrInvalidOption, name)
}

// Planets returns the full option set in index order.
func Planets() []Planet {
	ps := make([]Planet, PlanetCount)
	for i := range ps {
		ps[i] = Planet(i)
	}
	return ps
}
