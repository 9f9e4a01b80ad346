// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package coprocessor

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/math/set"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
)

// Allow grants account the right to request decryption of handle. Grants
// accumulate per handle and are never revoked or transferred; the protocol
// only ever issues a single grant per result handle, scoped to the player
// whose guess produced it.
func (s *Service) Allow(handle planetbounce.Handle, account common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cts[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	g := s.grants[handle]
	if g == nil {
		g = set.NewSet[common.Address]()
	}
	g.Add(account)
	s.grants[handle] = g

	s.log.Debug("decryption grant created",
		zap.Stringer("handle", handle),
		zap.String("account", account.Hex()),
	)
	return nil
}

// IsAllowed reports whether account holds a decryption grant for handle.
func (s *Service) IsAllowed(handle planetbounce.Handle, account common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[handle].Contains(account)
}

// grantedLocked returns the grant set for handle. Caller holds mu.
func (s *Service) grantedLocked(handle planetbounce.Handle) set.Set[common.Address] {
	return s.grants[handle]
}
