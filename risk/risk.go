// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package risk defines the contract between the guardian and the external
// threat-assessment engine. The engine scores each transaction and recommends
// a disposition; the guardian treats every recommendation as advisory and
// bounds it before acting. This package deliberately contains no scoring
// logic of its own.
package risk

import (
	"github.com/luxfi/ids"
)

// Level grades the severity of a threat. Catastrophic is the maximum and is
// the only level that can trigger the guardian's auto-reject path.
type Level uint8

const (
	Low Level = iota
	Medium
	High
	Critical
	Catastrophic
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	case Catastrophic:
		return "catastrophic"
	default:
		return "unknown"
	}
}

// ActionKind selects the variant of an Action.
type ActionKind uint8

const (
	ActionAccept ActionKind = iota
	ActionAcceptWithMonitoring
	ActionQuarantine
	ActionReject
	ActionEscalateToGuardian
	ActionHaltChain
)

func (k ActionKind) String() string {
	switch k {
	case ActionAccept:
		return "accept"
	case ActionAcceptWithMonitoring:
		return "accept_with_monitoring"
	case ActionQuarantine:
		return "quarantine"
	case ActionReject:
		return "reject"
	case ActionEscalateToGuardian:
		return "escalate_to_guardian"
	case ActionHaltChain:
		return "halt_chain"
	default:
		return "unknown"
	}
}

// Action is the engine's recommended disposition for a transaction. Kind
// selects the variant; payload fields are meaningful only for the kinds that
// name them.
type Action struct {
	Kind ActionKind

	// QuarantineBlocks is the requested hold duration (ActionQuarantine).
	QuarantineBlocks uint64

	// Reason explains a rejection or a halt request (ActionReject,
	// ActionHaltChain).
	Reason string

	// ThreatLevel is the escalated severity (ActionEscalateToGuardian).
	ThreatLevel Level

	// EmergencyLevel grades a halt request on a 0-10 scale (ActionHaltChain).
	EmergencyLevel uint8
}

// Assessment is the engine's verdict on a single transaction. The zero value
// is a clean accept.
type Assessment struct {
	ThreatScore float64
	Level       Level
	Recommended Action

	// GuardianOverrideRequired asks the guardian to apply its own judgment
	// instead of trusting the recommendation outright.
	GuardianOverrideRequired bool
}

// TxProfile carries the transaction features the engine scores. Amount and
// GasPrice are in base units.
type TxProfile struct {
	TxID      ids.ID
	Amount    uint64
	GasPrice  uint64
	SizeBytes int
}

// Engine produces threat assessments. Implementations must be safe for
// concurrent use: the guardian calls AssessTransaction from arbitrary
// validation goroutines.
type Engine interface {
	AssessTransaction(profile TxProfile, height uint64) (Assessment, error)
}
