// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package adaptive implements the consensus parameter controller: three PID
// control loops over sliding windows of chain observations, producing bounded
// per-call adjustments to mining difficulty, VDF iteration count, and minimum
// gas price. The controller enforces only per-call step bounds; the guardian
// layers the protocol swing predicates on top before any value computed here
// is committed.
package adaptive

import (
	"errors"
	"fmt"
	"math"

	"github.com/luxfi/governance/manifest"
	"github.com/luxfi/governance/pid"
	safemath "github.com/luxfi/governance/utils/math"
)

// Configuration errors
var (
	ErrDifficultyTooLow = errors.New("initial difficulty below floor")
	ErrVDFTooLow        = errors.New("initial vdf iterations below protocol minimum")
	ErrGasTooLow        = errors.New("initial min gas price below protocol minimum")
)

const (
	// historyLimit bounds each observation window.
	historyLimit = 1000

	// minDifficulty is the absolute floor for any difficulty adjustment.
	minDifficulty = 100

	// baselineHashrate normalizes hashrate observations; at exactly this
	// rate the vdf error term is zero.
	baselineHashrate = 1e12

	// targetMempoolSize is the queue depth the gas loop steers toward.
	targetMempoolSize = 500

	// Per-call step bounds. These are tighter than or equal to the protocol
	// swing limits, so a single adjustment can never need more room than the
	// guardian's verification allows.
	maxDifficultyStep = 0.05
	maxVDFStep        = 0.02
	maxGasStep        = 0.10
)

// PID gains are fixed. They are tuned against the step bounds above and are
// deliberately not configurable: loosening them is a protocol change, not an
// operational knob.
const (
	difficultyKp, difficultyKi, difficultyKd = 0.5, 0.1, 0.05
	difficultyOutMin, difficultyOutMax       = 0.95, 1.05

	gasKp, gasKi, gasKd  = 0.3, 0.05, 0.02
	gasOutMin, gasOutMax = 0.90, 1.10

	vdfKp, vdfKi, vdfKd  = 0.2, 0.03, 0.01
	vdfOutMin, vdfOutMax = 0.98, 1.02
)

// BlockMetrics carries the per-block observations the controller learns from.
// HashrateEstimate is the reporter's best guess in hashes per second and is
// expected to be positive.
type BlockMetrics struct {
	Height           uint64  `json:"height"`
	Timestamp        uint64  `json:"timestamp"`
	BlockTime        uint64  `json:"blockTime"`
	HashrateEstimate float64 `json:"hashrateEstimate"`
}

// Config holds the initial parameter values the controller starts from.
type Config struct {
	InitialDifficulty    uint64 `json:"initialDifficulty"`
	InitialVDFIterations uint64 `json:"initialVdfIterations"`
	InitialMinGasPrice   uint64 `json:"initialMinGasPrice"`
}

// DefaultConfig returns the genesis parameter values.
func DefaultConfig() Config {
	return Config{
		InitialDifficulty:    1_000,
		InitialVDFIterations: manifest.MinimumVDFIterations,
		InitialMinGasPrice:   1_000,
	}
}

// Validate checks that the initial values respect the protocol floors.
func (c Config) Validate() error {
	if c.InitialDifficulty < minDifficulty {
		return fmt.Errorf("%w: %d < %d", ErrDifficultyTooLow, c.InitialDifficulty, minDifficulty)
	}
	if c.InitialVDFIterations < manifest.MinimumVDFIterations {
		return fmt.Errorf("%w: %d < %d", ErrVDFTooLow, c.InitialVDFIterations, manifest.MinimumVDFIterations)
	}
	if c.InitialMinGasPrice < manifest.MinTransactionFee {
		return fmt.Errorf("%w: %d < %d", ErrGasTooLow, c.InitialMinGasPrice, manifest.MinTransactionFee)
	}
	return nil
}

// Controller owns the current authoritative parameter values and the
// observation windows feeding the three control loops.
//
// A Controller is not safe for concurrent use. The guardian bridge serializes
// access behind its consensus lock; standalone users must do the same.
type Controller struct {
	difficulty    uint64
	vdfIterations uint64
	minGasPrice   uint64

	difficultyPID *pid.Controller
	vdfPID        *pid.Controller
	gasPID        *pid.Controller

	blockTimes *Window[uint64]
	hashrates  *Window[float64]
	mempool    *Window[int]
}

// New returns a controller seeded with the configured initial values.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	difficultyPID, err := pid.New(difficultyKp, difficultyKi, difficultyKd, difficultyOutMin, difficultyOutMax)
	if err != nil {
		return nil, err
	}
	vdfPID, err := pid.New(vdfKp, vdfKi, vdfKd, vdfOutMin, vdfOutMax)
	if err != nil {
		return nil, err
	}
	gasPID, err := pid.New(gasKp, gasKi, gasKd, gasOutMin, gasOutMax)
	if err != nil {
		return nil, err
	}

	return &Controller{
		difficulty:    config.InitialDifficulty,
		vdfIterations: config.InitialVDFIterations,
		minGasPrice:   config.InitialMinGasPrice,
		difficultyPID: difficultyPID,
		vdfPID:        vdfPID,
		gasPID:        gasPID,
		blockTimes:    NewWindow[uint64](historyLimit),
		hashrates:     NewWindow[float64](historyLimit),
		mempool:       NewWindow[int](historyLimit),
	}, nil
}

// UpdateMetrics feeds per-block observations into the block-time and hashrate
// windows, evicting the oldest entries beyond the window limit.
func (c *Controller) UpdateMetrics(blocks []BlockMetrics) {
	for _, b := range blocks {
		c.blockTimes.Append(b.BlockTime)
		c.hashrates.Append(b.HashrateEstimate)
	}
}

// RecordMempoolSize feeds a mempool depth observation into the gas loop's
// window. Negative sizes are ignored.
func (c *Controller) RecordMempoolSize(size int) {
	if size < 0 {
		return
	}
	c.mempool.Append(size)
}

// DifficultyAdjustment runs one step of the difficulty loop and returns the
// bounded proposed value. With no block-time samples the current value is
// returned unchanged and the loop does not step.
func (c *Controller) DifficultyAdjustment() uint64 {
	if c.blockTimes.Len() == 0 {
		return c.difficulty
	}

	target := float64(manifest.TargetBlockTimeSecs)
	avgTime := meanUint64(c.blockTimes.Values())

	e := (avgTime - target) / target
	out := c.difficultyPID.Update(e, 1)

	bounded := boundedStep(c.difficulty, out, maxDifficultyStep)
	return max(bounded, minDifficulty)
}

// VDFAdjustment runs one step of the VDF loop and returns the bounded
// proposed iteration count, never below the protocol minimum. An empty
// hashrate window is treated as exactly baseline.
func (c *Controller) VDFAdjustment() uint64 {
	avgHashrate := baselineHashrate
	if c.hashrates.Len() > 0 {
		avgHashrate = meanFloat64(c.hashrates.Values())
	}

	e := math.Log(avgHashrate/baselineHashrate) * 0.1
	out := c.vdfPID.Update(e, 1)

	bounded := boundedStep(c.vdfIterations, out, maxVDFStep)
	return max(bounded, manifest.MinimumVDFIterations)
}

// GasAdjustment runs one step of the gas loop and returns the bounded
// proposed minimum gas price, never below the protocol minimum fee. An empty
// mempool window is treated as exactly the target depth.
func (c *Controller) GasAdjustment() uint64 {
	avgMempool := float64(targetMempoolSize)
	if c.mempool.Len() > 0 {
		avgMempool = meanInt(c.mempool.Values())
	}

	e := (avgMempool - targetMempoolSize) / targetMempoolSize
	out := c.gasPID.Update(e, 1)

	bounded := boundedStep(c.minGasPrice, out, maxGasStep)
	return max(bounded, manifest.MinTransactionFee)
}

// SetParameters overwrites the current authoritative values. Callers must
// have verified the values against the manifest swing predicates first; the
// guardian's ApplyOptimization is the only expected caller.
func (c *Controller) SetParameters(difficulty, vdfIterations, minGasPrice uint64) {
	c.difficulty = difficulty
	c.vdfIterations = vdfIterations
	c.minGasPrice = minGasPrice
}

func (c *Controller) Difficulty() uint64 {
	return c.difficulty
}

func (c *Controller) VDFIterations() uint64 {
	return c.vdfIterations
}

func (c *Controller) MinGasPrice() uint64 {
	return c.minGasPrice
}

// SampleCount reports how many block-time observations the controller holds.
func (c *Controller) SampleCount() int {
	return c.blockTimes.Len()
}

// boundedStep applies the PID multiplier to [current] and clamps the result
// to at most [step] fraction of change in either direction.
func boundedStep(current uint64, multiplier, step float64) uint64 {
	proposed := saturatingUint64(float64(current) * multiplier)
	maxChange := saturatingUint64(float64(current) * step)

	if proposed > current {
		return min(safemath.SaturatingAdd(current, maxChange), proposed)
	}
	return max(current-min(current, maxChange), proposed)
}

// saturatingUint64 converts a float to uint64, clamping NaN and negative
// values to zero and out-of-range values to the maximum.
func saturatingUint64(f float64) uint64 {
	switch {
	case f != f || f <= 0:
		return 0
	case f >= float64(math.MaxUint64):
		return math.MaxUint64
	default:
		return uint64(f)
	}
}
