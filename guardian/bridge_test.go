// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/governance/adaptive"
	"github.com/luxfi/governance/manifest"
	"github.com/luxfi/governance/risk"
	"github.com/luxfi/governance/risk/risktest"
)

var errTest = errors.New("test error")

func newTestBridge(t *testing.T, engine risk.Engine) *Bridge {
	return newTestBridgeWithDB(t, engine, memdb.New())
}

func newTestBridgeWithDB(t *testing.T, engine risk.Engine, db database.Database) *Bridge {
	b, err := New(DefaultConfig(), engine, db, metric.NewRegistry(), log.NoLog{})
	require.NoError(t, err)
	return b
}

func cleanProfile() risk.TxProfile {
	return risk.TxProfile{
		TxID:      ids.GenerateTestID(),
		Amount:    5 * 100_000_000,
		GasPrice:  manifest.MinTransactionFee,
		SizeBytes: 250,
	}
}

// slowBlocks returns [n] blocks arriving at three times the target rate, the
// simplest history that drives the difficulty loop to its +5% bound.
func slowBlocks(n int) []adaptive.BlockMetrics {
	blocks := make([]adaptive.BlockMetrics, n)
	for i := range blocks {
		blocks[i] = adaptive.BlockMetrics{
			Height:           uint64(i + 1),
			Timestamp:        uint64(i) * 5_400,
			BlockTime:        5_400,
			HashrateEstimate: 1e12,
		}
	}
	return blocks
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Controller.InitialDifficulty = 0

	_, err := New(config, &risktest.Engine{}, memdb.New(), metric.NewRegistry(), log.NoLog{})
	require.ErrorIs(t, err, adaptive.ErrDifficultyTooLow)
}

func TestValidateCleanTransaction(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	decision, err := b.ValidateTransaction(cleanProfile(), 100)
	require.NoError(err)
	require.True(decision.Approved)
	require.Equal(ActionAccept, decision.Action.Kind)

	stats := b.Stats()
	require.True(stats.AIEnabled)
	require.Equal(uint64(1), stats.TotalDecisions)
	require.Zero(stats.Vetoes)
	require.Zero(stats.VetoRate)
}

func TestValidateWithoutEngine(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, nil)
	decision, err := b.ValidateTransaction(cleanProfile(), 100)
	require.NoError(err)
	require.True(decision.Approved)
	require.Equal(ActionAccept, decision.Action.Kind)
	require.False(b.Stats().AIEnabled)

	// Manifest floors still apply without an engine.
	lowFee := cleanProfile()
	lowFee.GasPrice = manifest.MinTransactionFee - 1
	decision, err = b.ValidateTransaction(lowFee, 100)
	require.NoError(err)
	require.False(decision.Approved)
}

func TestValidateFeeVeto(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	profile := cleanProfile()
	profile.GasPrice = manifest.MinTransactionFee - 1

	decision, err := b.ValidateTransaction(profile, 100)
	require.NoError(err)
	require.False(decision.Approved)
	require.Equal(ActionReject, decision.Action.Kind)
	require.NotEmpty(decision.VetoReason)

	stats := b.Stats()
	require.Equal(uint64(1), stats.TotalDecisions)
	require.Equal(uint64(1), stats.Vetoes)
	require.Equal(float64(100), stats.VetoRate)
	require.Equal(decision.VetoReason, stats.LastVetoReason)
}

func TestValidateSupplyCapFailsWithoutDecision(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	profile := cleanProfile()
	profile.Amount = manifest.MaxTotalSupply + 1

	_, err := b.ValidateTransaction(profile, 100)
	require.ErrorIs(err, manifest.ErrSupplyCapExceeded)

	// Failed validations are not decisions.
	require.Zero(b.Stats().TotalDecisions)
}

func TestValidateEngineError(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{Err: errTest})
	_, err := b.ValidateTransaction(cleanProfile(), 100)
	require.ErrorIs(err, errTest)
	require.Zero(b.Stats().TotalDecisions)
}

func TestValidateBlockedByBreaker(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	b.ActivateCircuitBreaker(900, "manual halt")

	_, err := b.ValidateTransaction(cleanProfile(), 901)
	require.ErrorIs(err, ErrBreakerActive)
	require.Zero(b.Stats().TotalDecisions)
}

func TestAutopilotRejectsCatastrophic(t *testing.T) {
	require := require.New(t)

	profile := cleanProfile()
	engine := &risktest.Engine{
		Scripted: map[ids.ID]risk.Assessment{
			profile.TxID: {
				ThreatScore:              0.99,
				Level:                    risk.Catastrophic,
				Recommended:              risk.Action{Kind: risk.ActionAccept},
				GuardianOverrideRequired: true,
			},
		},
	}

	config := DefaultConfig()
	config.AutoPilot = true
	b, err := New(config, engine, memdb.New(), metric.NewRegistry(), log.NoLog{})
	require.NoError(err)

	decision, err := b.ValidateTransaction(profile, 100)
	require.NoError(err)
	require.False(decision.Approved)
	require.Equal(ActionAutoReject, decision.Action.Kind)

	// With autopilot off the same assessment falls through to its
	// recommendation.
	b.SetAutoPilot(false)
	decision, err = b.ValidateTransaction(profile, 101)
	require.NoError(err)
	require.True(decision.Approved)
	require.Equal(ActionAccept, decision.Action.Kind)

	stats := b.Stats()
	require.Equal(uint64(2), stats.TotalDecisions)
	require.Equal(uint64(1), stats.Vetoes)
}

func TestValidateQuarantineClamped(t *testing.T) {
	require := require.New(t)

	profile := cleanProfile()
	engine := &risktest.Engine{
		Scripted: map[ids.ID]risk.Assessment{
			profile.TxID: {
				Level: risk.Medium,
				Recommended: risk.Action{
					Kind:             risk.ActionQuarantine,
					QuarantineBlocks: 10_000,
				},
			},
		},
	}

	b := newTestBridge(t, engine)
	decision, err := b.ValidateTransaction(profile, 500)
	require.NoError(err)
	require.True(decision.Approved)
	require.Equal(ActionQuarantine, decision.Action.Kind)
	require.Equal(MaxQuarantineBlocks, decision.Action.QuarantineBlocks)

	release, held := b.QuarantineStatus(profile.TxID)
	require.True(held)
	require.Equal(500+MaxQuarantineBlocks, release)

	_, held = b.QuarantineStatus(ids.GenerateTestID())
	require.False(held)
}

func TestValidateEscalationRequiresReview(t *testing.T) {
	require := require.New(t)

	profile := cleanProfile()
	engine := &risktest.Engine{
		Scripted: map[ids.ID]risk.Assessment{
			profile.TxID: {
				Level: risk.High,
				Recommended: risk.Action{
					Kind:        risk.ActionEscalateToGuardian,
					ThreatLevel: risk.High,
				},
			},
		},
	}

	b := newTestBridge(t, engine)
	decision, err := b.ValidateTransaction(profile, 100)
	require.NoError(err)
	require.True(decision.Approved)
	require.Equal(ActionRequireManualReview, decision.Action.Kind)
	require.Equal(risk.High, decision.Action.ReviewLevel)
}

func TestValidateHaltChain(t *testing.T) {
	tests := []struct {
		name           string
		emergencyLevel uint8
		wantHalt       bool
	}{
		{
			name:           "below emergency threshold",
			emergencyLevel: 8,
			wantHalt:       false,
		},
		{
			name:           "at emergency threshold",
			emergencyLevel: 9,
			wantHalt:       true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			profile := cleanProfile()
			engine := &risktest.Engine{
				Scripted: map[ids.ID]risk.Assessment{
					profile.TxID: {
						Level: risk.Catastrophic,
						Recommended: risk.Action{
							Kind:           risk.ActionHaltChain,
							Reason:         "consensus attack detected",
							EmergencyLevel: tt.emergencyLevel,
						},
					},
				},
			}

			b := newTestBridge(t, engine)
			decision, err := b.ValidateTransaction(profile, 777)
			require.NoError(err)

			status := b.BreakerStatus()
			if !tt.wantHalt {
				require.True(decision.Approved)
				require.Equal(ActionRequireManualReview, decision.Action.Kind)
				require.Equal(risk.Critical, decision.Action.ReviewLevel)
				require.False(status.Active)
				return
			}

			require.False(decision.Approved)
			require.Equal(ActionChainHalt, decision.Action.Kind)
			require.True(status.Active)
			require.Equal(uint64(777), status.ActivationBlock)
			require.Equal("consensus attack detected", status.Reason)
			require.Equal(uint64(777+RecoveryDelayBlocks), status.AutoRecoveryBlock)

			// The halt takes effect immediately.
			_, err = b.ValidateTransaction(cleanProfile(), 778)
			require.ErrorIs(err, ErrBreakerActive)
		})
	}
}

func TestValidateUnknownRecommendationFailsClosed(t *testing.T) {
	require := require.New(t)

	profile := cleanProfile()
	engine := &risktest.Engine{
		Scripted: map[ids.ID]risk.Assessment{
			profile.TxID: {
				Recommended: risk.Action{Kind: risk.ActionKind(99)},
			},
		},
	}

	b := newTestBridge(t, engine)
	decision, err := b.ValidateTransaction(profile, 100)
	require.NoError(err)
	require.False(decision.Approved)
	require.Equal(ActionReject, decision.Action.Kind)
}

func TestGenerateRequiresHistory(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	blocks := slowBlocks(minHistoryForOptimization)

	_, err := b.GenerateOptimization(7_000, blocks[:minHistoryForOptimization-1])
	require.ErrorIs(err, ErrInsufficientHistory)

	// The gate is per call: a short call fails even though earlier calls
	// could have seeded the windows.
	_, err = b.GenerateOptimization(7_001, blocks[:1])
	require.ErrorIs(err, ErrInsufficientHistory)

	_, err = b.GenerateOptimization(7_002, nil)
	require.ErrorIs(err, ErrInsufficientHistory)

	_, err = b.GenerateOptimization(7_003, blocks)
	require.NoError(err)
}

func TestGenerateShortCallLeavesControllerUntouched(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})

	_, err := b.GenerateOptimization(7_000, slowBlocks(minHistoryForOptimization-1))
	require.ErrorIs(err, ErrInsufficientHistory)
	require.Zero(b.controller.SampleCount())
}

func TestGenerateProposal(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	b.clock.Set(time.Unix(99_000, 0))

	proposal, err := b.GenerateOptimization(7_777, slowBlocks(minHistoryForOptimization))
	require.NoError(err)

	require.Equal(proposalID(7_777, 99_000), proposal.ID)
	require.Equal(uint64(7_777), proposal.Height)
	require.Equal(uint64(99_000), proposal.Timestamp)

	// Slow blocks drive difficulty to its +5% bound; the VDF and gas loops
	// sit at their floors.
	require.Equal(uint64(1_000), proposal.CurrentDifficulty)
	require.Equal(uint64(1_050), proposal.ProposedDifficulty)
	require.Equal(float64(5), proposal.DifficultyChangePercent)
	require.Equal(uint64(1_000_000), proposal.CurrentVDF)
	require.Equal(uint64(1_000_000), proposal.ProposedVDF)
	require.Zero(proposal.VDFChangePercent)
	require.Equal(uint64(1_000), proposal.CurrentMinGas)
	require.Equal(uint64(1_000), proposal.ProposedMinGas)
	require.Zero(proposal.GasChangePercent)

	require.Equal(float64(5_400), proposal.AvgBlockTime)
	require.Zero(proposal.HashrateTrend)
	require.Zero(proposal.MempoolCongestion)
	require.Equal(0.5, proposal.NetworkHealth)
	require.Equal((float64(minHistoryForOptimization)/1_000+0.5)/2, proposal.Confidence)
	require.Equal(float64(20), proposal.ExpectedImprovement)

	require.True(proposal.PreApproved)
	require.False(proposal.RequiresVoting)
}

func TestApplyOptimization(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	proposal, err := b.GenerateOptimization(7_777, slowBlocks(minHistoryForOptimization))
	require.NoError(err)

	require.NoError(b.ApplyOptimization(proposal))

	params := b.Parameters()
	require.Equal(proposal.ProposedDifficulty, params.Difficulty)
	require.Equal(proposal.ProposedVDF, params.VDFIterations)
	require.Equal(proposal.ProposedMinGas, params.MinGasPrice)

	records, err := b.AuditRecordsAt(7_777)
	require.NoError(err)
	require.Len(records, 3)

	byParameter := make(map[string]OptimizationRecord, len(records))
	for _, rec := range records {
		require.Equal(uint64(7_777), rec.Height)
		require.Equal(proposal.Timestamp, rec.Timestamp)
		require.Equal(uint64(proposal.ExpectedImprovement*100), rec.PredictedImprovementBps)
		require.Equal(uint64(proposal.Confidence*10_000), rec.ConfidenceBps)
		byParameter[rec.Parameter] = rec
	}

	difficulty, ok := byParameter[paramDifficulty]
	require.True(ok)
	require.Equal(uint64(1_000), difficulty.OldValue)
	require.Equal(uint64(1_050), difficulty.NewValue)

	vdf, ok := byParameter[paramVDF]
	require.True(ok)
	require.Equal(uint64(1_000_000), vdf.OldValue)
	require.Equal(uint64(1_000_000), vdf.NewValue)

	gas, ok := byParameter[paramMinGas]
	require.True(ok)
	require.Equal(uint64(1_000), gas.OldValue)
	require.Equal(uint64(1_000), gas.NewValue)
}

func TestApplyRejectsUnapproved(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	before := b.Parameters()

	err := b.ApplyOptimization(&Proposal{
		ProposedDifficulty: 2_000,
		ProposedVDF:        2_000_000,
		ProposedMinGas:     2_000,
	})
	require.ErrorIs(err, ErrNotPreApproved)
	require.Equal(before, b.Parameters())
}

func TestApplyConfidenceGate(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	before := b.Parameters()

	proposal := &Proposal{
		PreApproved:        true,
		RequiresVoting:     true,
		Confidence:         0.5,
		ProposedDifficulty: before.Difficulty,
		ProposedVDF:        before.VDFIterations,
		ProposedMinGas:     before.MinGasPrice,
	}
	require.ErrorIs(b.ApplyOptimization(proposal), ErrConfidenceTooLow)

	// High confidence clears the voting requirement.
	proposal.Confidence = 0.9
	require.NoError(b.ApplyOptimization(proposal))
}

func TestStatsEmpty(t *testing.T) {
	require := require.New(t)

	stats := newTestBridge(t, &risktest.Engine{}).Stats()
	require.Zero(stats.TotalDecisions)
	require.Zero(stats.Vetoes)
	require.Zero(stats.VetoRate)
	require.Empty(stats.LastVetoReason)
}

func TestManualOverride(t *testing.T) {
	require := require.New(t)

	b := newTestBridge(t, &risktest.Engine{})
	require.False(b.ManualOverride())

	b.SetManualOverride(true)
	require.True(b.ManualOverride())

	// The flag is informational; validation proceeds as usual.
	decision, err := b.ValidateTransaction(cleanProfile(), 100)
	require.NoError(err)
	require.True(decision.Approved)

	b.SetManualOverride(false)
	require.False(b.ManualOverride())
}

func TestConcurrentValidation(t *testing.T) {
	require := require.New(t)

	const workers = 32

	b := newTestBridge(t, &risktest.Engine{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.ValidateTransaction(cleanProfile(), 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(err)
	}
	require.Equal(uint64(workers), b.Stats().TotalDecisions)
}
