// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Genesis is the boot-time trust seed: the adapters, targets, policy
// slots, operator credentials, and approved implementations applied
// when a host first comes up. The file format is JSONC, so seeds can
// carry comments and trailing commas.
type Genesis struct {
	Adapters  []ref.Address   `json:"adapters"`
	Targets   []GenesisTarget `json:"targets"`
	Policies  []GenesisPolicy `json:"policies"`
	Operators []ref.Address   `json:"operators"`

	// Implementations lists additional approved wallet
	// implementations beyond the host default.
	Implementations []GenesisImplementation `json:"implementations"`
}

// GenesisTarget maps one target to its serving adapter.
type GenesisTarget struct {
	Target  ref.Address `json:"target"`
	Adapter ref.Address `json:"adapter"`
}

// GenesisPolicy binds a validator to a (target, selector) slot. The
// slot's selector is given either as a canonical signature
// ("deposit(address,uint256)") or as a raw 0x-prefixed
// selector, not both. Leaving both empty names the zero selector,
// the bare native-transfer slot.
type GenesisPolicy struct {
	Target    ref.Address `json:"target"`
	Signature string      `json:"signature,omitempty"`
	Selector  string      `json:"selector,omitempty"`
	Validator ref.Address `json:"validator"`
}

// Slot resolves the policy entry's selector.
func (p GenesisPolicy) Slot() (ref.Selector, error) {
	switch {
	case p.Signature != "" && p.Selector != "":
		return ref.Selector{}, fmt.Errorf("policy for %s: signature and selector are mutually exclusive", p.Target)
	case p.Signature != "":
		return ref.SelectorOf(p.Signature), nil
	case p.Selector != "":
		return ref.ParseSelector(p.Selector)
	default:
		return ref.Selector{}, nil
	}
}

// GenesisImplementation names an approved wallet implementation,
// either by its 0x id or by the label the id derives from.
type GenesisImplementation struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
}

// Resolve returns the implementation id.
func (g GenesisImplementation) Resolve() (ref.ImplementationID, error) {
	switch {
	case g.ID != "" && g.Label != "":
		return ref.ImplementationID{}, errors.New("implementation: id and label are mutually exclusive")
	case g.ID != "":
		return ref.ParseImplementationID(g.ID)
	case g.Label != "":
		return ref.ImplementationIDOf(g.Label), nil
	default:
		return ref.ImplementationID{}, errors.New("implementation: id or label is required")
	}
}

// LoadGenesis reads and parses a JSONC genesis seed file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genesis
	if err := json.Unmarshal(jsonc.ToJSON(data), &g); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return &g, nil
}

// Validate checks the seed for internal consistency: no zero
// addresses, every target's adapter listed, every policy's selector
// resolvable.
func (g *Genesis) Validate() error {
	var errs []error

	adapters := make(map[ref.Address]bool, len(g.Adapters))
	for i, adapter := range g.Adapters {
		if adapter.IsZero() {
			errs = append(errs, fmt.Errorf("adapters[%d]: zero address", i))
			continue
		}
		adapters[adapter] = true
	}

	for i, target := range g.Targets {
		if target.Target.IsZero() {
			errs = append(errs, fmt.Errorf("targets[%d]: zero target", i))
		}
		if !adapters[target.Adapter] {
			errs = append(errs, fmt.Errorf("targets[%d]: adapter %s is not in the adapter list", i, target.Adapter))
		}
	}

	for i, policy := range g.Policies {
		if policy.Target.IsZero() {
			errs = append(errs, fmt.Errorf("policies[%d]: zero target", i))
		}
		if policy.Validator.IsZero() {
			errs = append(errs, fmt.Errorf("policies[%d]: zero validator", i))
		}
		if _, err := policy.Slot(); err != nil {
			errs = append(errs, fmt.Errorf("policies[%d]: %w", i, err))
		}
	}

	for i, operator := range g.Operators {
		if operator.IsZero() {
			errs = append(errs, fmt.Errorf("operators[%d]: zero address", i))
		}
	}

	for i, impl := range g.Implementations {
		if _, err := impl.Resolve(); err != nil {
			errs = append(errs, fmt.Errorf("implementations[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
