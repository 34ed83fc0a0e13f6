// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"github.com/luxfi/governance/risk"
)

// MaxQuarantineBlocks is the hard ceiling on any quarantine duration. An
// engine may request longer; the guardian clamps it here.
const MaxQuarantineBlocks uint64 = 1_440

// ActionKind selects the variant of a guardian Action.
type ActionKind uint8

const (
	ActionAccept ActionKind = iota
	ActionAcceptMonitored
	ActionQuarantine
	ActionReject
	ActionAutoReject
	ActionRequireManualReview
	ActionChainHalt
)

func (k ActionKind) String() string {
	switch k {
	case ActionAccept:
		return "accept"
	case ActionAcceptMonitored:
		return "accept_monitored"
	case ActionQuarantine:
		return "quarantine"
	case ActionReject:
		return "reject"
	case ActionAutoReject:
		return "auto_reject"
	case ActionRequireManualReview:
		return "require_manual_review"
	case ActionChainHalt:
		return "chain_halt"
	default:
		return "unknown"
	}
}

// Action is the guardian's bounded disposition for a transaction. It is
// derived from the engine's recommendation but never exceeds the guardian's
// own limits.
type Action struct {
	Kind ActionKind

	// QuarantineBlocks is the hold duration, already clamped to
	// MaxQuarantineBlocks (ActionQuarantine).
	QuarantineBlocks uint64

	// ReviewLevel is the severity attached to a manual review
	// (ActionRequireManualReview).
	ReviewLevel risk.Level
}

// Decision is the outcome of one transaction validation. Approved is false
// exactly for the Reject, AutoReject, and ChainHalt actions.
type Decision struct {
	Approved   bool
	VetoReason string
	Action     Action
	Assessment risk.Assessment
}
