// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package manifest defines the immutable protocol invariants of the chain and
// the pure predicates that verify values against them. Every bound in this
// package is a compile-time constant: no configuration surface, upgrade path,
// or adaptive subsystem can loosen these limits at runtime. Callers that
// mutate consensus parameters must route the proposed values through the
// Verify* predicates before applying them.
package manifest

import (
	"errors"
	"fmt"

	"github.com/luxfi/governance/utils/math"
)

// Verification errors
var (
	ErrSupplyCapExceeded  = errors.New("supply cap exceeded")
	ErrInvalidBlockReward = errors.New("invalid block reward")
	ErrBlockTimeViolation = errors.New("block time outside allowed deviation")
	ErrProposalRejected   = errors.New("parameter proposal rejected")
	ErrFeeTooLow          = errors.New("transaction fee below minimum")
	ErrBlockTooLarge      = errors.New("block size exceeds maximum")
)

// -----------------------------------------------------------------------------
// Monetary Invariants
// -----------------------------------------------------------------------------

// baseUnits is the number of indivisible units per coin (8 decimal places).
const baseUnits uint64 = 100_000_000

const (
	// MaxTotalSupply is the hard cap on coins that can ever exist, in base
	// units: 124 million coins.
	MaxTotalSupply uint64 = 124_000_000 * baseUnits

	// GenesisPremine is the amount minted at genesis. Zero: every coin in
	// circulation was earned through block rewards.
	GenesisPremine uint64 = 0

	// InitialBlockReward is the era-zero block subsidy, in base units.
	InitialBlockReward uint64 = 50 * baseUnits

	// HalvingInterval is the number of blocks per reward era. The subsidy
	// halves each time the chain height crosses a multiple of this interval.
	HalvingInterval uint64 = 1_240_000
)

// -----------------------------------------------------------------------------
// Timing and Consensus Invariants
// -----------------------------------------------------------------------------

const (
	// TargetBlockTimeSecs is the block interval the difficulty adjustment
	// steers toward: 30 minutes.
	TargetBlockTimeSecs uint64 = 1_800

	// MaxBlockTimeDeviationSecs bounds how far an individual block's observed
	// interval may stray from target before it is rejected outright.
	MaxBlockTimeDeviationSecs uint64 = 300

	// MinimumVDFIterations is the floor on sequential VDF work per block.
	// Adjustments may never propose fewer iterations than this.
	MinimumVDFIterations uint64 = 1_000_000

	// UpgradeVotingPeriodBlocks is the minimum window, in blocks, that a
	// protocol upgrade proposal must remain open for validator votes.
	UpgradeVotingPeriodBlocks uint64 = 48

	// MinPeersForConsensus is the minimum connected peer count required
	// before the node treats its view of the chain as authoritative.
	MinPeersForConsensus = 4

	// GenesisValidators is the size of the genesis validator set.
	GenesisValidators = 4

	// GenesisBFTThreshold is the number of genesis validators that must
	// agree for a decision: 3 of 4 tolerates one faulty validator.
	GenesisBFTThreshold = 3
)

// -----------------------------------------------------------------------------
// Adjustment Bounds
// -----------------------------------------------------------------------------

// Maximum per-adjustment swing for each governed parameter, expressed as a
// percentage. A proposal moving a parameter by more than this fraction of its
// current value is rejected regardless of who or what proposed it.
const (
	MaxDifficultySwingPercent = 5.0
	MaxGasSwingPercent        = 10.0
	MaxVDFSwingPercent        = 2.0
)

// -----------------------------------------------------------------------------
// Transaction and Block Limits
// -----------------------------------------------------------------------------

const (
	// MaxBlockSizeBytes caps the serialized size of a block.
	MaxBlockSizeBytes uint64 = 1_000_000

	// MinTransactionFee is the smallest acceptable fee, in base units.
	MinTransactionFee uint64 = 1_000
)

// -----------------------------------------------------------------------------
// Verification Predicates
// -----------------------------------------------------------------------------

// VerifyBlockTime checks an observed block interval against the allowed
// deviation from target.
func VerifyBlockTime(blockTimeSecs uint64) error {
	deviation := math.AbsDiff(blockTimeSecs, TargetBlockTimeSecs)
	if deviation > MaxBlockTimeDeviationSecs {
		return fmt.Errorf("%w: %ds deviates %ds from %ds target (max %ds)",
			ErrBlockTimeViolation, blockTimeSecs, deviation, TargetBlockTimeSecs, MaxBlockTimeDeviationSecs)
	}
	return nil
}

// VerifyDifficultyProposal checks a proposed difficulty against the
// per-adjustment swing bound.
func VerifyDifficultyProposal(current, proposed uint64) error {
	return verifySwing("difficulty", current, proposed, MaxDifficultySwingPercent)
}

// VerifyGasProposal checks a proposed minimum gas price against the
// per-adjustment swing bound.
func VerifyGasProposal(current, proposed uint64) error {
	return verifySwing("min gas price", current, proposed, MaxGasSwingPercent)
}

// VerifyVDFProposal checks a proposed VDF iteration count. The absolute floor
// is enforced before the swing bound, so a below-minimum proposal is rejected
// even when it is within swing range of the current value.
func VerifyVDFProposal(current, proposed uint64) error {
	if proposed < MinimumVDFIterations {
		return fmt.Errorf("%w: vdf iterations %d below minimum %d",
			ErrProposalRejected, proposed, MinimumVDFIterations)
	}
	return verifySwing("vdf iterations", current, proposed, MaxVDFSwingPercent)
}

// VerifyTransactionFee checks a fee against the protocol minimum.
func VerifyTransactionFee(fee uint64) error {
	if fee < MinTransactionFee {
		return fmt.Errorf("%w: fee %d < %d", ErrFeeTooLow, fee, MinTransactionFee)
	}
	return nil
}

// VerifyBlockSize checks a serialized block size against the protocol cap.
func VerifyBlockSize(sizeBytes uint64) error {
	if sizeBytes > MaxBlockSizeBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrBlockTooLarge, sizeBytes, MaxBlockSizeBytes)
	}
	return nil
}

// verifySwing rejects a proposal whose ratio to the current value exceeds the
// allowed percentage in either direction. Zero values are rejected: a governed
// parameter is always positive, and a zero would let any change through.
func verifySwing(name string, current, proposed uint64, maxSwingPercent float64) error {
	if current == 0 || proposed == 0 {
		return fmt.Errorf("%w: %s must be positive (current %d, proposed %d)",
			ErrProposalRejected, name, current, proposed)
	}
	ratio := float64(max(current, proposed)) / float64(min(current, proposed))
	if ratio > 1+maxSwingPercent/100 {
		return fmt.Errorf("%w: %s change %d -> %d exceeds %.0f%% swing limit",
			ErrProposalRejected, name, current, proposed, maxSwingPercent)
	}
	return nil
}
