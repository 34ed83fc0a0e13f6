// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package guardian is the policy layer between an advisory risk engine and
// the chain's consensus parameters. It bounds every engine recommendation,
// verifies every parameter change against the protocol manifest, halts
// validation through a persistent circuit breaker, and keeps an audit trail
// of every applied optimization.
package guardian

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/governance/adaptive"
	"github.com/luxfi/governance/manifest"
	"github.com/luxfi/governance/risk"
	"github.com/luxfi/governance/utils/timer/mockable"
)

var (
	ErrBreakerActive       = errors.New("circuit breaker active")
	ErrInsufficientHistory = errors.New("insufficient block history")
	ErrNotPreApproved      = errors.New("proposal not pre-approved")
	ErrConfidenceTooLow    = errors.New("proposal confidence below voting threshold")
)

const (
	// minHistoryForOptimization is the number of blocks every optimization
	// request must carry.
	minHistoryForOptimization = 144

	// votingConfidenceThreshold is the confidence below which a proposal
	// marked for voting cannot be applied directly.
	votingConfidenceThreshold = 0.8

	// haltEmergencyLevel is the emergency grade at or above which a halt
	// recommendation trips the circuit breaker.
	haltEmergencyLevel = 9

	quarantineCacheSize = 4096
)

var (
	statePrefix = []byte("state")
	auditPrefix = []byte("audit")
)

// Bridge enforces guardian policy over transaction validation and consensus
// parameter changes. All methods are safe for concurrent use.
type Bridge struct {
	log       log.Logger
	clock     mockable.Clock
	metrics   *guardianMetrics
	engine    risk.Engine
	aiEnabled bool
	audit     *auditLog

	stateDB database.Database

	// stateMu guards decision accounting and the operator flags.
	stateMu        sync.RWMutex
	autoPilot      bool
	manualOverride bool
	totalDecisions uint64
	vetoes         uint64
	lastVetoReason string

	// consensusMu guards the adaptive controller, whose windows and control
	// loops are not safe for concurrent use on their own.
	consensusMu sync.RWMutex
	controller  *adaptive.Controller

	// breakerMu guards the circuit breaker and serializes writes of its
	// persisted snapshot.
	breakerMu sync.RWMutex
	breaker   circuitBreaker

	// quarantined maps a held transaction to its release height. Bounded;
	// the oldest entries fall out once the cache fills.
	quarantined *lru.Cache[ids.ID, uint64]
}

// New returns a bridge seeded from [config], persisting its breaker state and
// audit trail in [db]. A nil [engine] disables threat assessment: every
// transaction passes through manifest checks only.
func New(
	config Config,
	engine risk.Engine,
	db database.Database,
	registerer metric.Registerer,
	logger log.Logger,
) (*Bridge, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid guardian config: %w", err)
	}

	controller, err := adaptive.New(config.Controller)
	if err != nil {
		return nil, err
	}
	metrics, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}

	stateDB := prefixdb.New(statePrefix, db)
	breaker, err := loadBreaker(stateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit breaker state: %w", err)
	}

	b := &Bridge{
		log:         logger,
		metrics:     metrics,
		engine:      engine,
		aiEnabled:   engine != nil,
		audit:       newAuditLog(prefixdb.New(auditPrefix, db)),
		stateDB:     stateDB,
		autoPilot:   config.AutoPilot,
		controller:  controller,
		breaker:     breaker,
		quarantined: lru.NewCache[ids.ID, uint64](quarantineCacheSize),
	}

	if breaker.active {
		logger.Warn("resuming with circuit breaker active",
			log.Uint64("activationBlock", breaker.activationBlock),
			log.String("reason", breaker.reason),
		)
	}
	metrics.setParameters(controller.Difficulty(), controller.VDFIterations(), controller.MinGasPrice())
	return b, nil
}

// ValidateTransaction produces the guardian's decision for one transaction.
// An active circuit breaker or a supply cap violation fails with an error
// before any decision is reached; everything after that point is a Decision,
// approved or not.
func (b *Bridge) ValidateTransaction(profile risk.TxProfile, height uint64) (Decision, error) {
	b.breakerMu.RLock()
	halted, haltReason := b.breaker.active, b.breaker.reason
	b.breakerMu.RUnlock()
	if halted {
		return Decision{}, fmt.Errorf("%w: %s", ErrBreakerActive, haltReason)
	}

	var assessment risk.Assessment
	if b.engine != nil {
		var err error
		assessment, err = b.engine.AssessTransaction(profile, height)
		if err != nil {
			return Decision{}, fmt.Errorf("risk assessment failed: %w", err)
		}
	}

	if err := manifest.VerifySupply(profile.Amount); err != nil {
		return Decision{}, err
	}

	if err := manifest.VerifyTransactionFee(profile.GasPrice); err != nil {
		return b.record(Decision{
			VetoReason: err.Error(),
			Action:     Action{Kind: ActionReject},
			Assessment: assessment,
		}), nil
	}

	if assessment.GuardianOverrideRequired && b.AutoPilot() && assessment.Level == risk.Catastrophic {
		return b.record(Decision{
			VetoReason: "catastrophic threat rejected by autopilot",
			Action:     Action{Kind: ActionAutoReject},
			Assessment: assessment,
		}), nil
	}

	return b.record(b.applyRecommendation(profile, assessment, height)), nil
}

// applyRecommendation maps the engine's recommendation onto a bounded
// guardian action.
func (b *Bridge) applyRecommendation(profile risk.TxProfile, assessment risk.Assessment, height uint64) Decision {
	recommended := assessment.Recommended
	switch recommended.Kind {
	case risk.ActionAccept:
		return Decision{
			Approved:   true,
			Action:     Action{Kind: ActionAccept},
			Assessment: assessment,
		}

	case risk.ActionAcceptWithMonitoring:
		return Decision{
			Approved:   true,
			Action:     Action{Kind: ActionAcceptMonitored},
			Assessment: assessment,
		}

	case risk.ActionQuarantine:
		blocks := min(recommended.QuarantineBlocks, MaxQuarantineBlocks)
		b.quarantined.Put(profile.TxID, height+blocks)
		return Decision{
			Approved:   true,
			Action:     Action{Kind: ActionQuarantine, QuarantineBlocks: blocks},
			Assessment: assessment,
		}

	case risk.ActionReject:
		return Decision{
			VetoReason: recommended.Reason,
			Action:     Action{Kind: ActionReject},
			Assessment: assessment,
		}

	case risk.ActionEscalateToGuardian:
		return Decision{
			Approved:   true,
			Action:     Action{Kind: ActionRequireManualReview, ReviewLevel: recommended.ThreatLevel},
			Assessment: assessment,
		}

	case risk.ActionHaltChain:
		if recommended.EmergencyLevel >= haltEmergencyLevel {
			b.ActivateCircuitBreaker(height, recommended.Reason)
			return Decision{
				VetoReason: recommended.Reason,
				Action:     Action{Kind: ActionChainHalt},
				Assessment: assessment,
			}
		}
		return Decision{
			Approved:   true,
			Action:     Action{Kind: ActionRequireManualReview, ReviewLevel: risk.Critical},
			Assessment: assessment,
		}

	default:
		// Fail closed on recommendations this version does not know.
		return Decision{
			VetoReason: fmt.Sprintf("unrecognized recommendation %q", recommended.Kind),
			Action:     Action{Kind: ActionReject},
			Assessment: assessment,
		}
	}
}

// record books one produced decision into the running counters.
func (b *Bridge) record(d Decision) Decision {
	b.stateMu.Lock()
	b.totalDecisions++
	if !d.Approved {
		b.vetoes++
		b.lastVetoReason = d.VetoReason
	}
	b.stateMu.Unlock()

	b.metrics.decisions.Inc()
	if !d.Approved {
		b.metrics.vetoes.Inc()
		b.log.Warn("transaction vetoed",
			log.Stringer("action", d.Action.Kind),
			log.String("reason", d.VetoReason),
		)
	}
	return d
}

// GenerateOptimization feeds [recentBlocks] into the controller and returns a
// proposal adjusting all three consensus parameters, pre-verified against the
// manifest swing limits. Every call must carry at least
// minHistoryForOptimization blocks; a short call fails before any observation
// is recorded, leaving the controller untouched.
func (b *Bridge) GenerateOptimization(height uint64, recentBlocks []adaptive.BlockMetrics) (*Proposal, error) {
	if n := len(recentBlocks); n < minHistoryForOptimization {
		return nil, fmt.Errorf("%w: %d of %d blocks", ErrInsufficientHistory, n, minHistoryForOptimization)
	}

	b.consensusMu.Lock()
	defer b.consensusMu.Unlock()

	b.controller.UpdateMetrics(recentBlocks)

	currentDifficulty := b.controller.Difficulty()
	currentVDF := b.controller.VDFIterations()
	currentGas := b.controller.MinGasPrice()

	proposedDifficulty := b.controller.DifficultyAdjustment()
	proposedVDF := b.controller.VDFAdjustment()
	proposedGas := b.controller.GasAdjustment()

	if err := manifest.VerifyDifficultyProposal(currentDifficulty, proposedDifficulty); err != nil {
		return nil, err
	}
	if err := manifest.VerifyVDFProposal(currentVDF, proposedVDF); err != nil {
		return nil, err
	}
	if err := manifest.VerifyGasProposal(currentGas, proposedGas); err != nil {
		return nil, err
	}

	var avgBlockTime float64
	if len(recentBlocks) > 0 {
		for _, blk := range recentBlocks {
			avgBlockTime += float64(blk.BlockTime)
		}
		avgBlockTime /= float64(len(recentBlocks))
	}

	confidence := b.controller.Confidence()
	timestamp := b.clock.Unix()
	proposal := &Proposal{
		ID:        proposalID(height, timestamp),
		Height:    height,
		Timestamp: timestamp,

		CurrentDifficulty:       currentDifficulty,
		ProposedDifficulty:      proposedDifficulty,
		DifficultyChangePercent: changePercent(currentDifficulty, proposedDifficulty),

		CurrentVDF:       currentVDF,
		ProposedVDF:      proposedVDF,
		VDFChangePercent: changePercent(currentVDF, proposedVDF),

		CurrentMinGas:    currentGas,
		ProposedMinGas:   proposedGas,
		GasChangePercent: changePercent(currentGas, proposedGas),

		AvgBlockTime:      avgBlockTime,
		HashrateTrend:     b.controller.HashrateTrend(),
		MempoolCongestion: b.controller.MempoolCongestion(),
		NetworkHealth:     b.controller.NetworkHealth(),

		Confidence:          confidence,
		ExpectedImprovement: b.controller.ExpectedImprovement(),

		PreApproved:    true,
		RequiresVoting: false,
	}

	b.metrics.confidence.Set(confidence)
	b.log.Info("generated optimization proposal",
		log.Stringer("proposalID", proposal.ID),
		log.Uint64("height", height),
		log.Float64("confidence", confidence),
		log.Float64("expectedImprovement", proposal.ExpectedImprovement),
	)
	return proposal, nil
}

// ApplyOptimization commits an approved proposal's parameter values and
// writes one audit record per changed parameter. Audit persistence failures
// are logged, not rolled back: the in-memory parameters stay authoritative.
func (b *Bridge) ApplyOptimization(proposal *Proposal) error {
	if !proposal.PreApproved {
		return ErrNotPreApproved
	}
	if proposal.RequiresVoting && proposal.Confidence < votingConfidenceThreshold {
		return fmt.Errorf("%w: %.2f < %.2f", ErrConfidenceTooLow, proposal.Confidence, votingConfidenceThreshold)
	}

	b.consensusMu.Lock()
	oldDifficulty := b.controller.Difficulty()
	oldVDF := b.controller.VDFIterations()
	oldGas := b.controller.MinGasPrice()
	b.controller.SetParameters(proposal.ProposedDifficulty, proposal.ProposedVDF, proposal.ProposedMinGas)
	b.consensusMu.Unlock()

	b.metrics.setParameters(proposal.ProposedDifficulty, proposal.ProposedVDF, proposal.ProposedMinGas)
	b.metrics.optimizations.Inc()

	improvementBps := uint64(proposal.ExpectedImprovement * 100)
	confidenceBps := uint64(proposal.Confidence * 10_000)
	records := []OptimizationRecord{
		{
			Height:                  proposal.Height,
			Timestamp:               proposal.Timestamp,
			Parameter:               paramDifficulty,
			OldValue:                oldDifficulty,
			NewValue:                proposal.ProposedDifficulty,
			PredictedImprovementBps: improvementBps,
			ConfidenceBps:           confidenceBps,
		},
		{
			Height:                  proposal.Height,
			Timestamp:               proposal.Timestamp,
			Parameter:               paramVDF,
			OldValue:                oldVDF,
			NewValue:                proposal.ProposedVDF,
			PredictedImprovementBps: improvementBps,
			ConfidenceBps:           confidenceBps,
		},
		{
			Height:                  proposal.Height,
			Timestamp:               proposal.Timestamp,
			Parameter:               paramMinGas,
			OldValue:                oldGas,
			NewValue:                proposal.ProposedMinGas,
			PredictedImprovementBps: improvementBps,
			ConfidenceBps:           confidenceBps,
		},
	}
	if err := b.audit.record(records); err != nil {
		b.log.Error("failed to persist audit records",
			log.Stringer("proposalID", proposal.ID),
			log.Err(err),
		)
	}

	b.log.Info("applied optimization proposal",
		log.Stringer("proposalID", proposal.ID),
		log.Uint64("difficulty", proposal.ProposedDifficulty),
		log.Uint64("vdfIterations", proposal.ProposedVDF),
		log.Uint64("minGasPrice", proposal.ProposedMinGas),
	)
	return nil
}

// ActivateCircuitBreaker halts all transaction validation until an operator
// calls DeactivateCircuitBreaker. Activating an already active breaker keeps
// the original activation.
func (b *Bridge) ActivateCircuitBreaker(height uint64, reason string) {
	b.breakerMu.Lock()
	defer b.breakerMu.Unlock()

	if !b.breaker.activate(height, reason) {
		return
	}
	b.metrics.breakerActivations.Inc()
	b.log.Error("circuit breaker activated",
		log.Uint64("height", height),
		log.String("reason", reason),
		log.Uint64("recoveryBlock", b.breaker.autoRecovery),
	)
	if err := b.breaker.persist(b.stateDB); err != nil {
		b.log.Error("failed to persist circuit breaker state", log.Err(err))
	}
}

// DeactivateCircuitBreaker resumes transaction validation. Deactivation is
// always an operator decision; the guardian never clears the breaker itself.
func (b *Bridge) DeactivateCircuitBreaker() {
	b.breakerMu.Lock()
	defer b.breakerMu.Unlock()

	if !b.breaker.deactivate() {
		return
	}
	b.log.Info("circuit breaker deactivated")
	if err := b.breaker.persist(b.stateDB); err != nil {
		b.log.Error("failed to persist circuit breaker state", log.Err(err))
	}
}

// BreakerStatus reports the circuit breaker's current state.
func (b *Bridge) BreakerStatus() BreakerStatus {
	b.breakerMu.RLock()
	defer b.breakerMu.RUnlock()
	return b.breaker.status()
}

// RecordMempoolSize feeds a mempool depth observation into the gas loop.
func (b *Bridge) RecordMempoolSize(size int) {
	b.consensusMu.Lock()
	defer b.consensusMu.Unlock()
	b.controller.RecordMempoolSize(size)
}

// Parameters is a point-in-time view of the authoritative consensus values.
type Parameters struct {
	Difficulty    uint64 `json:"difficulty"`
	VDFIterations uint64 `json:"vdfIterations"`
	MinGasPrice   uint64 `json:"minGasPrice"`
}

func (b *Bridge) Parameters() Parameters {
	b.consensusMu.RLock()
	defer b.consensusMu.RUnlock()
	return Parameters{
		Difficulty:    b.controller.Difficulty(),
		VDFIterations: b.controller.VDFIterations(),
		MinGasPrice:   b.controller.MinGasPrice(),
	}
}

// Stats summarizes the guardian's decision history. VetoRate is the share of
// decisions vetoed, in percent.
type Stats struct {
	AIEnabled      bool    `json:"aiEnabled"`
	AutoPilot      bool    `json:"autoPilot"`
	TotalDecisions uint64  `json:"totalDecisions"`
	Vetoes         uint64  `json:"vetoes"`
	VetoRate       float64 `json:"vetoRate"`
	LastVetoReason string  `json:"lastVetoReason"`
}

func (b *Bridge) Stats() Stats {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	var rate float64
	if b.totalDecisions > 0 {
		rate = float64(b.vetoes) / float64(b.totalDecisions) * 100
	}
	return Stats{
		AIEnabled:      b.aiEnabled,
		AutoPilot:      b.autoPilot,
		TotalDecisions: b.totalDecisions,
		Vetoes:         b.vetoes,
		VetoRate:       rate,
		LastVetoReason: b.lastVetoReason,
	}
}

// AutoPilot reports whether catastrophic threats are rejected without
// operator involvement.
func (b *Bridge) AutoPilot() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.autoPilot
}

// SetAutoPilot toggles automatic rejection of catastrophic threats.
func (b *Bridge) SetAutoPilot(enabled bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.autoPilot = enabled
}

// ManualOverride reports whether an operator has taken manual control of
// parameter governance.
func (b *Bridge) ManualOverride() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.manualOverride
}

// SetManualOverride records that an operator has taken or released manual
// control. No automated path consults the flag yet.
func (b *Bridge) SetManualOverride(enabled bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.manualOverride = enabled
}

// QuarantineStatus reports the release height of a quarantined transaction.
func (b *Bridge) QuarantineStatus(txID ids.ID) (uint64, bool) {
	return b.quarantined.Get(txID)
}

// AuditRecords returns every persisted optimization record in height order.
func (b *Bridge) AuditRecords() ([]OptimizationRecord, error) {
	return b.audit.records()
}

// AuditRecordsAt returns the optimization records applied at one height.
func (b *Bridge) AuditRecordsAt(height uint64) ([]OptimizationRecord, error) {
	return b.audit.recordsAt(height)
}
