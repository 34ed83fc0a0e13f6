// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"errors"

	"github.com/luxfi/metric"
)

type guardianMetrics struct {
	decisions          metric.Counter
	vetoes             metric.Counter
	breakerActivations metric.Counter
	optimizations      metric.Counter

	difficulty    metric.Gauge
	vdfIterations metric.Gauge
	minGasPrice   metric.Gauge
	confidence    metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*guardianMetrics, error) {
	m := &guardianMetrics{
		decisions: metric.NewCounter(metric.CounterOpts{
			Name: "guardian_decisions",
			Help: "Number of transaction decisions issued",
		}),
		vetoes: metric.NewCounter(metric.CounterOpts{
			Name: "guardian_vetoes",
			Help: "Number of transactions vetoed",
		}),
		breakerActivations: metric.NewCounter(metric.CounterOpts{
			Name: "guardian_breaker_activations",
			Help: "Number of circuit breaker activations",
		}),
		optimizations: metric.NewCounter(metric.CounterOpts{
			Name: "guardian_optimizations_applied",
			Help: "Number of parameter optimizations applied",
		}),
		difficulty: metric.NewGauge(metric.GaugeOpts{
			Name: "guardian_difficulty",
			Help: "Current mining difficulty target",
		}),
		vdfIterations: metric.NewGauge(metric.GaugeOpts{
			Name: "guardian_vdf_iterations",
			Help: "Current VDF iteration requirement",
		}),
		minGasPrice: metric.NewGauge(metric.GaugeOpts{
			Name: "guardian_min_gas_price",
			Help: "Current minimum gas price",
		}),
		confidence: metric.NewGauge(metric.GaugeOpts{
			Name: "guardian_confidence",
			Help: "Confidence of the last generated optimization",
		}),
	}

	err := errors.Join(
		registerer.Register(metric.AsCollector(m.decisions)),
		registerer.Register(metric.AsCollector(m.vetoes)),
		registerer.Register(metric.AsCollector(m.breakerActivations)),
		registerer.Register(metric.AsCollector(m.optimizations)),
		registerer.Register(metric.AsCollector(m.difficulty)),
		registerer.Register(metric.AsCollector(m.vdfIterations)),
		registerer.Register(metric.AsCollector(m.minGasPrice)),
		registerer.Register(metric.AsCollector(m.confidence)),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *guardianMetrics) setParameters(difficulty, vdfIterations, minGasPrice uint64) {
	m.difficulty.Set(float64(difficulty))
	m.vdfIterations.Set(float64(vdfIterations))
	m.minGasPrice.Set(float64(minGasPrice))
}
