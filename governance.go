// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package governance assembles the chain's self-governance core: the
// guardian bridge that validates transactions and bounds consensus parameter
// changes, and the sentinel that keeps invariant verification alive when the
// chain goes quiet.
package governance

import (
	"context"

	"github.com/luxfi/database"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/version"

	"github.com/luxfi/governance/guardian"
	"github.com/luxfi/governance/risk"
	"github.com/luxfi/governance/sentinel"
)

var Version = &version.Semantic{
	Major: 1,
	Minor: 0,
	Patch: 0,
}

// Core wires the guardian bridge to its sentinel. Both components remain
// directly usable; the Core adds the glue between them.
type Core struct {
	Bridge   *guardian.Bridge
	Sentinel *sentinel.Sentinel
}

// New assembles a governance core. [engine] and [reader] may each be nil;
// see guardian.New and sentinel.New for the degraded behavior.
func New(
	config guardian.Config,
	engine risk.Engine,
	reader sentinel.ChainReader,
	db database.Database,
	registerer metric.Registerer,
	logger log.Logger,
) (*Core, error) {
	bridge, err := guardian.New(config, engine, db, registerer, logger)
	if err != nil {
		return nil, err
	}
	return &Core{
		Bridge:   bridge,
		Sentinel: sentinel.New(reader, logger),
	}, nil
}

// ValidateTransaction forwards to the bridge and marks the chain active so
// the sentinel's idle tracking reflects real traffic. Prefer this entry
// point over calling the bridge directly.
func (c *Core) ValidateTransaction(profile risk.TxProfile, height uint64) (guardian.Decision, error) {
	c.Sentinel.RecordActivity()
	return c.Bridge.ValidateTransaction(profile, height)
}

// Run drives the sentinel until shutdown or verification failure.
func (c *Core) Run(ctx context.Context) error {
	return c.Sentinel.Run(ctx)
}

// Shutdown asks the sentinel to stop. Run returns once the request is
// observed.
func (c *Core) Shutdown() {
	c.Sentinel.TriggerShutdown()
}
