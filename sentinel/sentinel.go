// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sentinel keeps protocol verification alive through periods with no
// transaction traffic. A single long-lived task heartbeats while the chain is
// active and drops into an hourly deep-sleep cadence when it goes quiet,
// re-verifying the supply schedule and, when a chain reader is attached, the
// live circulating supply on every deep-sleep pass.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/governance/manifest"
	"github.com/luxfi/governance/utils/timer/mockable"
)

var (
	ErrShutdown           = errors.New("sentinel already shut down")
	ErrVerificationFailed = errors.New("sovereign verification failed")
	ErrChainIntegrity     = errors.New("chain integrity violation")
)

const (
	defaultHeartbeatInterval  = 60 * time.Second
	defaultDeepSleepThreshold = time.Hour

	// shutdownPollInterval bounds how long a shutdown request can go
	// unobserved.
	shutdownPollInterval = 100 * time.Millisecond

	// flushDelay is the pause on shutdown that lets asynchronous log sinks
	// drain before the caller exits.
	flushDelay = 500 * time.Millisecond
)

// Mode is the sentinel's operating cadence.
type Mode uint8

const (
	// Active monitoring with per-minute heartbeats.
	Active Mode = iota

	// DeepSleep monitoring with hourly verification passes.
	DeepSleep

	// Emergency is reserved for constant monitoring under attack. No
	// transition reaches it yet.
	Emergency
)

func (m Mode) String() string {
	switch m {
	case Active:
		return "active"
	case DeepSleep:
		return "deep_sleep"
	case Emergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ChainReader exposes the live chain state the sentinel verifies during deep
// sleep. Implementations must be safe for concurrent use.
type ChainReader interface {
	Height() uint64
	CirculatingSupply() uint64
}

// scheduleSpotHeights samples the emission schedule across eras, including
// heights far past the last nonzero reward.
var scheduleSpotHeights = []uint64{
	0,
	manifest.HalvingInterval,
	10 * manifest.HalvingInterval,
	40 * manifest.HalvingInterval,
}

// Sentinel is the perpetual monitor. Construct with New, drive with Run, and
// stop with TriggerShutdown or context cancellation; a Sentinel runs at most
// once.
type Sentinel struct {
	log    log.Logger
	reader ChainReader
	clock  mockable.Clock

	heartbeatInterval  time.Duration
	deepSleepThreshold time.Duration

	started  atomic.Bool
	shutdown atomic.Bool

	mu           sync.RWMutex
	mode         Mode
	lastActivity time.Time

	sessionStart time.Time
}

// New returns a sentinel in active mode. A nil [reader] limits deep-sleep
// verification to the emission schedule's own invariants.
func New(reader ChainReader, logger log.Logger) *Sentinel {
	s := &Sentinel{
		log:                logger,
		reader:             reader,
		heartbeatInterval:  defaultHeartbeatInterval,
		deepSleepThreshold: defaultDeepSleepThreshold,
		mode:               Active,
	}
	now := s.clock.Time()
	s.lastActivity = now
	s.sessionStart = now
	return s
}

// Run blocks until shutdown is requested or a verification pass fails. A
// clean shutdown, whether via TriggerShutdown or [ctx], returns nil. Only the
// first call runs; every later call returns ErrShutdown.
func (s *Sentinel) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrShutdown
	}

	s.log.Info("sentinel active",
		log.Duration("heartbeat", s.heartbeatInterval),
		log.Duration("deepSleepThreshold", s.deepSleepThreshold),
	)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()
	deepSleep := time.NewTicker(s.deepSleepThreshold)
	defer deepSleep.Stop()
	poll := time.NewTicker(shutdownPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-heartbeat.C:
			s.heartbeatTick()

		case <-deepSleep.C:
			if err := s.deepSleepTick(); err != nil {
				return err
			}

		case <-poll.C:
			if s.shutdown.Load() {
				return s.gracefulShutdown()
			}

		case <-ctx.Done():
			s.shutdown.Store(true)
			return s.gracefulShutdown()
		}
	}
}

// heartbeatTick reassesses the operating mode. Idle time below the threshold
// keeps the sentinel active and heartbeating; beyond it the sentinel goes
// quiet until the deep-sleep pass picks it up.
func (s *Sentinel) heartbeatTick() {
	idle := s.idle()

	s.mu.Lock()
	if idle < s.deepSleepThreshold {
		s.mode = Active
	} else {
		s.mode = DeepSleep
	}
	mode := s.mode
	s.mu.Unlock()

	if mode != Active {
		return
	}
	s.log.Info("sentinel heartbeat",
		log.Duration("idle", idle),
		log.Stringer("mode", mode),
	)
	s.healthCheck()
}

// healthCheck is the lightweight per-heartbeat probe.
func (s *Sentinel) healthCheck() {
	if s.reader == nil {
		s.log.Debug("health check ok")
		return
	}
	s.log.Debug("health check ok",
		log.Uint64("height", s.reader.Height()),
	)
}

// deepSleepTick runs the hourly verification pass when the chain has been
// quiet for at least the threshold.
func (s *Sentinel) deepSleepTick() error {
	idle := s.idle()
	if idle < s.deepSleepThreshold {
		return nil
	}

	s.log.Info("sentinel deep sleep verification",
		log.Duration("idle", idle),
		log.Duration("sessionUptime", s.SessionDuration()),
	)
	if err := s.verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return nil
}

// verify re-checks the invariants that must hold no matter how long the
// chain has been silent: the emission schedule never crosses the supply cap,
// and the live chain, when readable, stays under both the cap and the
// schedule's ceiling for its height.
func (s *Sentinel) verify() error {
	for _, height := range scheduleSpotHeights {
		if err := manifest.VerifySupply(manifest.SupplyAtHeight(height)); err != nil {
			return fmt.Errorf("emission schedule breaks supply cap at height %d: %w", height, err)
		}
	}

	if s.reader == nil {
		return nil
	}

	height := s.reader.Height()
	supply := s.reader.CirculatingSupply()
	if err := manifest.VerifySupply(supply); err != nil {
		return fmt.Errorf("%w: %w", ErrChainIntegrity, err)
	}
	if ceiling := manifest.SupplyAtHeight(height); supply > ceiling {
		return fmt.Errorf("%w: circulating supply %d exceeds schedule ceiling %d at height %d",
			ErrChainIntegrity, supply, ceiling, height)
	}

	s.log.Info("sovereign verification passed",
		log.Uint64("height", height),
		log.Uint64("circulatingSupply", supply),
	)
	return nil
}

func (s *Sentinel) gracefulShutdown() error {
	s.log.Info("sentinel shutting down",
		log.Duration("sessionDuration", s.SessionDuration()),
		log.Stringer("finalMode", s.Mode()),
	)
	time.Sleep(flushDelay)
	s.log.Info("sentinel shutdown complete")
	return nil
}

// TriggerShutdown requests a graceful stop. Run observes the request within
// the shutdown poll interval.
func (s *Sentinel) TriggerShutdown() {
	s.shutdown.Store(true)
}

// RecordActivity resets the idle timer. Call it whenever the chain shows
// signs of life.
func (s *Sentinel) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.clock.Time()
}

// Mode reports the current operating cadence.
func (s *Sentinel) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SessionDuration reports how long this sentinel has been alive.
func (s *Sentinel) SessionDuration() time.Duration {
	return s.clock.Time().Sub(s.sessionStart)
}

func (s *Sentinel) idle() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Time().Sub(s.lastActivity)
}
