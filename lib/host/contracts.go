// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"sync"

	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/venue"
)

// Contracts is the host's deployment table: which addresses carry
// code, and what that code is. It backs three narrow views — the
// registry's code-presence oracle, the venue bindings adapters
// execute against, and the adapter set wallets dispatch through.
//
// Safe for concurrent use. Bindings are additive; there is no
// unbind — removing trust in an address is the registry's job, not
// the deployment table's.
type Contracts struct {
	mu       sync.RWMutex
	venues   map[ref.Address]any
	adapters map[ref.Address]venue.Adapter
	code     map[ref.Address]bool
}

// NewContracts returns an empty deployment table.
func NewContracts() *Contracts {
	return &Contracts{
		venues:   make(map[ref.Address]any),
		adapters: make(map[ref.Address]venue.Adapter),
		code:     make(map[ref.Address]bool),
	}
}

// BindVenue deploys a venue implementation at an address.
func (c *Contracts) BindVenue(addr ref.Address, impl any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues[addr] = impl
}

// BindAdapter deploys an adapter implementation at an address.
func (c *Contracts) BindAdapter(addr ref.Address, impl venue.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[addr] = impl
}

// MarkCode records addresses as code-bearing without an executable
// binding: validators and modules the host dispatches to directly.
func (c *Contracts) MarkCode(addrs ...ref.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, addr := range addrs {
		c.code[addr] = true
	}
}

// HasCode implements registry.CodePresence.
func (c *Contracts) HasCode(addr ref.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.code[addr] {
		return true
	}
	if _, ok := c.venues[addr]; ok {
		return true
	}
	_, ok := c.adapters[addr]
	return ok
}

// Venue implements venue.Bindings.
func (c *Contracts) Venue(target ref.Address) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	impl, ok := c.venues[target]
	return impl, ok
}

// Adapter implements wallet.AdapterSet.
func (c *Contracts) Adapter(addr ref.Address) (venue.Adapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	impl, ok := c.adapters[addr]
	return impl, ok
}
