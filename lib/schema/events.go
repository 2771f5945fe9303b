// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"math/big"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Event is implemented by every event payload in this package. Kind
// returns the stable event type string used for storage and queries.
type Event interface {
	Kind() string
}

// Sink receives events from mutating components. The audit store is
// the production sink; tests use in-memory recorders. Emit must not
// fail — event recording never vetoes the mutation that produced it.
type Sink interface {
	Emit(event Event)
}

// DiscardSink is a Sink that drops every event. Components treat a
// nil sink as DiscardSink, so this type mostly shows up in tests that
// want to be explicit.
type DiscardSink struct{}

// Emit drops the event.
func (DiscardSink) Emit(Event) {}

// Event kind strings. Stable storage identifiers — renaming one
// orphans previously recorded events.
const (
	KindAdapterRegistered      = "registry.adapter_registered"
	KindAdapterUnregistered    = "registry.adapter_unregistered"
	KindTargetRegistered       = "registry.target_registered"
	KindTargetAdapterUpdated   = "registry.target_adapter_updated"
	KindTargetRemoved          = "registry.target_removed"
	KindPolicyAdded            = "policy.added"
	KindPolicyRemoved          = "policy.removed"
	KindOperatorAdded          = "router.operator_added"
	KindOperatorRemoved        = "router.operator_removed"
	KindActionExecuted         = "router.action_executed"
	KindWalletCreated          = "factory.wallet_created"
	KindImplementationApproved = "factory.implementation_approved"
	KindRouterUpdated          = "factory.router_updated"
	KindWalletUpgraded         = "wallet.upgraded"
	KindModuleInstalled        = "wallet.module_installed"
	KindModuleUninstalled      = "wallet.module_uninstalled"
	KindAdapterBlocked         = "wallet.adapter_blocked"
	KindAdapterUnblocked       = "wallet.adapter_unblocked"
	KindTargetBlocked          = "wallet.target_blocked"
	KindTargetUnblocked        = "wallet.target_unblocked"
	KindWithdrawal             = "wallet.withdrawal"
	KindProposalScheduled      = "timelock.proposal_scheduled"
	KindProposalExecuted       = "timelock.proposal_executed"
	KindProposalCanceled       = "timelock.proposal_canceled"
	KindEmergencyExecuted      = "timelock.emergency_executed"
)

// AdapterRegistered records an adapter joining the registry.
type AdapterRegistered struct {
	Adapter ref.Address `json:"adapter"`
}

// Kind implements Event.
func (AdapterRegistered) Kind() string { return KindAdapterRegistered }

// AdapterUnregistered records an emergency adapter removal. Targets
// mapped to the adapter become invalid immediately but stay listed;
// TargetCount is the number of mappings soft-invalidated.
type AdapterUnregistered struct {
	Adapter     ref.Address `json:"adapter"`
	TargetCount int         `json:"target_count"`
}

// Kind implements Event.
func (AdapterUnregistered) Kind() string { return KindAdapterUnregistered }

// TargetRegistered records a new target→adapter mapping.
type TargetRegistered struct {
	Target  ref.Address `json:"target"`
	Adapter ref.Address `json:"adapter"`
}

// Kind implements Event.
func (TargetRegistered) Kind() string { return KindTargetRegistered }

// TargetAdapterUpdated records a target rotating to a new adapter
// without a remove+add window.
type TargetAdapterUpdated struct {
	Target          ref.Address `json:"target"`
	PreviousAdapter ref.Address `json:"previous_adapter"`
	NewAdapter      ref.Address `json:"new_adapter"`
}

// Kind implements Event.
func (TargetAdapterUpdated) Kind() string { return KindTargetAdapterUpdated }

// TargetRemoved records an emergency target removal.
type TargetRemoved struct {
	Target  ref.Address `json:"target"`
	Adapter ref.Address `json:"adapter"`
}

// Kind implements Event.
func (TargetRemoved) Kind() string { return KindTargetRemoved }

// PolicyAdded records a validator being bound to a (target, selector)
// slot.
type PolicyAdded struct {
	Target    ref.Address  `json:"target"`
	Selector  ref.Selector `json:"selector"`
	Validator ref.Address  `json:"validator"`
}

// Kind implements Event.
func (PolicyAdded) Kind() string { return KindPolicyAdded }

// PolicyRemoved records an emergency policy kill.
type PolicyRemoved struct {
	Target            ref.Address  `json:"target"`
	Selector          ref.Selector `json:"selector"`
	PreviousValidator ref.Address  `json:"previous_validator"`
}

// Kind implements Event.
func (PolicyRemoved) Kind() string { return KindPolicyRemoved }

// OperatorAdded records a new operator credential.
type OperatorAdded struct {
	Operator ref.Address `json:"operator"`
	Count    int         `json:"count"`
}

// Kind implements Event.
func (OperatorAdded) Kind() string { return KindOperatorAdded }

// OperatorRemoved records an operator removal (emergency path).
type OperatorRemoved struct {
	Operator ref.Address `json:"operator"`
	Count    int         `json:"count"`
}

// Kind implements Event.
func (OperatorRemoved) Kind() string { return KindOperatorRemoved }

// ActionExecuted records a successful operator action against a
// wallet. BatchIndex/BatchSize are 0/1 for single actions.
type ActionExecuted struct {
	Wallet     ref.Address  `json:"wallet"`
	Operator   ref.Address  `json:"operator"`
	Target     ref.Address  `json:"target"`
	Selector   ref.Selector `json:"selector"`
	Value      *big.Int     `json:"value,omitempty"`
	BatchIndex int          `json:"batch_index"`
	BatchSize  int          `json:"batch_size"`
}

// Kind implements Event.
func (ActionExecuted) Kind() string { return KindActionExecuted }

// WalletCreated records a new wallet deployment.
type WalletCreated struct {
	Wallet         ref.Address          `json:"wallet"`
	Owner          ref.Address          `json:"owner"`
	AgentIndex     uint32               `json:"agent_index"`
	BaseAsset      ref.Address          `json:"base_asset"`
	Implementation ref.ImplementationID `json:"implementation"`
}

// Kind implements Event.
func (WalletCreated) Kind() string { return KindWalletCreated }

// ImplementationApproved records a new sanctioned upgrade target.
type ImplementationApproved struct {
	Implementation ref.ImplementationID `json:"implementation"`
}

// Kind implements Event.
func (ImplementationApproved) Kind() string { return KindImplementationApproved }

// RouterUpdated records an admin rotation of the factory's current
// router.
type RouterUpdated struct {
	PreviousRouter ref.Address `json:"previous_router"`
	NewRouter      ref.Address `json:"new_router"`
}

// Kind implements Event.
func (RouterUpdated) Kind() string { return KindRouterUpdated }

// WalletUpgraded records an owner-driven implementation swap.
type WalletUpgraded struct {
	Wallet                 ref.Address          `json:"wallet"`
	PreviousImplementation ref.ImplementationID `json:"previous_implementation"`
	NewImplementation      ref.ImplementationID `json:"new_implementation"`
}

// Kind implements Event.
func (WalletUpgraded) Kind() string { return KindWalletUpgraded }

// ModuleInstalled records an execution module installation.
type ModuleInstalled struct {
	Wallet ref.Address `json:"wallet"`
	Module ref.Address `json:"module"`
}

// Kind implements Event.
func (ModuleInstalled) Kind() string { return KindModuleInstalled }

// ModuleUninstalled records an execution module removal.
type ModuleUninstalled struct {
	Wallet ref.Address `json:"wallet"`
	Module ref.Address `json:"module"`
}

// Kind implements Event.
func (ModuleUninstalled) Kind() string { return KindModuleUninstalled }

// AdapterBlocked records an owner vetoing an adapter for their wallet.
type AdapterBlocked struct {
	Wallet  ref.Address `json:"wallet"`
	Adapter ref.Address `json:"adapter"`
}

// Kind implements Event.
func (AdapterBlocked) Kind() string { return KindAdapterBlocked }

// AdapterUnblocked records an owner lifting an adapter veto.
type AdapterUnblocked struct {
	Wallet  ref.Address `json:"wallet"`
	Adapter ref.Address `json:"adapter"`
}

// Kind implements Event.
func (AdapterUnblocked) Kind() string { return KindAdapterUnblocked }

// TargetBlocked records an owner vetoing a target for their wallet.
type TargetBlocked struct {
	Wallet ref.Address `json:"wallet"`
	Target ref.Address `json:"target"`
}

// Kind implements Event.
func (TargetBlocked) Kind() string { return KindTargetBlocked }

// TargetUnblocked records an owner lifting a target veto.
type TargetUnblocked struct {
	Wallet ref.Address `json:"wallet"`
	Target ref.Address `json:"target"`
}

// Kind implements Event.
func (TargetUnblocked) Kind() string { return KindTargetUnblocked }

// Withdrawal records an owner withdrawal. Token is the zero address
// for native-asset withdrawals.
type Withdrawal struct {
	Wallet    ref.Address `json:"wallet"`
	Token     ref.Address `json:"token,omitempty"`
	Recipient ref.Address `json:"recipient"`
	Amount    *big.Int    `json:"amount"`
}

// Kind implements Event.
func (Withdrawal) Kind() string { return KindWithdrawal }

// ProposalScheduled records an admin operation entering the timelock
// queue. ReadyAt is a Unix timestamp (seconds).
type ProposalScheduled struct {
	ID      string `json:"id"`
	OpKind  OpKind `json:"op_kind"`
	Salt    string `json:"salt"`
	ReadyAt int64  `json:"ready_at"`
}

// Kind implements Event.
func (ProposalScheduled) Kind() string { return KindProposalScheduled }

// ProposalExecuted records a matured proposal being applied.
type ProposalExecuted struct {
	ID     string `json:"id"`
	OpKind OpKind `json:"op_kind"`
	Salt   string `json:"salt"`
}

// Kind implements Event.
func (ProposalExecuted) Kind() string { return KindProposalExecuted }

// ProposalCanceled records a pending proposal being withdrawn.
type ProposalCanceled struct {
	ID     string `json:"id"`
	OpKind OpKind `json:"op_kind"`
	Salt   string `json:"salt"`
}

// Kind implements Event.
func (ProposalCanceled) Kind() string { return KindProposalCanceled }

// EmergencyExecuted records a revocation applied through the instant
// emergency path, bypassing the queue.
type EmergencyExecuted struct {
	Caller ref.Address `json:"caller"`
	OpKind OpKind      `json:"op_kind"`
}

// Kind implements Event.
func (EmergencyExecuted) Kind() string { return KindEmergencyExecuted }
