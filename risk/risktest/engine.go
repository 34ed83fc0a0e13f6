// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package risktest provides a scripted risk engine for tests.
package risktest

import (
	"sync/atomic"

	"github.com/luxfi/ids"

	"github.com/luxfi/governance/risk"
)

var _ risk.Engine = (*Engine)(nil)

// Engine returns scripted assessments keyed by transaction ID, falling back
// to Default for unknown transactions. The zero value accepts everything
// with a zero threat score. Script fields must not be mutated once the
// engine is in use.
type Engine struct {
	Default  risk.Assessment
	Scripted map[ids.ID]risk.Assessment

	// Err, when set, is returned for every assessment.
	Err error

	calls atomic.Int64
}

func (e *Engine) AssessTransaction(profile risk.TxProfile, _ uint64) (risk.Assessment, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return risk.Assessment{}, e.Err
	}
	if assessment, ok := e.Scripted[profile.TxID]; ok {
		return assessment, nil
	}
	return e.Default, nil
}

// Calls reports how many assessments have been served.
func (e *Engine) Calls() int64 {
	return e.calls.Load()
}
