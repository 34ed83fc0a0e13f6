// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adaptive

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/luxfi/governance/manifest"
)

// confidenceSampleFloor is the number of block-time samples below which the
// controller reports the neutral 0.5 confidence instead of a derived one.
const confidenceSampleFloor = 144

// HashrateTrend reports the relative hashrate change across the window,
// (newest - oldest) / oldest. Fewer than two samples report zero.
func (c *Controller) HashrateTrend() float64 {
	if c.hashrates.Len() < 2 {
		return 0
	}
	first, _ := c.hashrates.First()
	last, _ := c.hashrates.Last()
	return (last - first) / first
}

// MempoolCongestion reports average mempool depth normalized to [0, 1],
// saturating at twice the target depth. An empty window reports zero.
func (c *Controller) MempoolCongestion() float64 {
	if c.mempool.Len() == 0 {
		return 0
	}
	avg := meanInt(c.mempool.Values())
	return math.Min(avg/1_000, 1)
}

// NetworkHealth reports the mean of block-time stability and hashrate
// stability, each in [0, 1].
func (c *Controller) NetworkHealth() float64 {
	return (c.blockTimeStability() + c.hashrateStability()) / 2
}

// Confidence reports how much the controller trusts its own proposals: the
// mean of data sufficiency (window fill fraction, capped at 1) and network
// health. Below the sample floor it reports a flat 0.5.
func (c *Controller) Confidence() float64 {
	if c.blockTimes.Len() < confidenceSampleFloor {
		return 0.5
	}
	dataQuality := math.Min(float64(c.blockTimes.Len())/float64(historyLimit), 1)
	return (dataQuality + c.NetworkHealth()) / 2
}

// ExpectedImprovement estimates, in percent, how much closer to target the
// average block time could move, capped at 20. An empty window reports zero.
func (c *Controller) ExpectedImprovement() float64 {
	if c.blockTimes.Len() == 0 {
		return 0
	}
	target := float64(manifest.TargetBlockTimeSecs)
	avg := meanUint64(c.blockTimes.Values())
	deviation := math.Abs((avg - target) / target)
	return math.Min(deviation*50, 20)
}

// blockTimeStability is 1 when the average block time sits on target,
// decaying linearly to 0 as the deviation reaches the target itself. An
// empty window reports the neutral 0.5.
func (c *Controller) blockTimeStability() float64 {
	if c.blockTimes.Len() == 0 {
		return 0.5
	}
	target := float64(manifest.TargetBlockTimeSecs)
	avg := meanUint64(c.blockTimes.Values())
	deviation := math.Abs((avg - target) / target)
	return clamp01(1 - deviation)
}

// hashrateStability is 1 minus the window's coefficient of variation,
// clamped to [0, 1]. Fewer than two samples report the neutral 0.5.
func (c *Controller) hashrateStability() float64 {
	if c.hashrates.Len() < 2 {
		return 0.5
	}
	values := c.hashrates.Values()
	mean := stat.Mean(values, nil)
	cv := stat.PopStdDev(values, nil) / mean
	return clamp01(1 - cv)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(x, 1))
}

func meanUint64(xs []uint64) float64 {
	values := make([]float64, len(xs))
	for i, x := range xs {
		values[i] = float64(x)
	}
	return stat.Mean(values, nil)
}

func meanFloat64(xs []float64) float64 {
	return stat.Mean(xs, nil)
}

func meanInt(xs []int) float64 {
	values := make([]float64, len(xs))
	for i, x := range xs {
		values[i] = float64(x)
	}
	return stat.Mean(values, nil)
}
