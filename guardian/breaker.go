// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"errors"

	"github.com/luxfi/database"
)

// RecoveryDelayBlocks is the number of blocks after a circuit breaker
// activation at which the breaker becomes eligible for recovery. The breaker
// never deactivates on its own; an operator or an external watcher calls
// DeactivateCircuitBreaker once the recovery height has passed.
const RecoveryDelayBlocks = 144

var breakerKey = []byte("circuit_breaker")

// circuitBreaker halts all transaction validation while active. The caller
// synchronizes access.
type circuitBreaker struct {
	active          bool
	activationBlock uint64
	reason          string
	autoRecovery    uint64
}

// activate trips the breaker at the given height. Re-activating an already
// active breaker keeps the original activation state. Reports whether the
// state changed.
func (b *circuitBreaker) activate(height uint64, reason string) bool {
	if b.active {
		return false
	}
	b.active = true
	b.activationBlock = height
	b.reason = reason
	b.autoRecovery = height + RecoveryDelayBlocks
	return true
}

// deactivate resets the breaker. Reports whether the state changed.
func (b *circuitBreaker) deactivate() bool {
	if !b.active {
		return false
	}
	*b = circuitBreaker{}
	return true
}

func (b *circuitBreaker) status() BreakerStatus {
	return BreakerStatus{
		Active:            b.active,
		ActivationBlock:   b.activationBlock,
		Reason:            b.reason,
		AutoRecoveryBlock: b.autoRecovery,
	}
}

// BreakerStatus is a point-in-time view of the circuit breaker.
type BreakerStatus struct {
	Active            bool   `json:"active"`
	ActivationBlock   uint64 `json:"activationBlock"`
	Reason            string `json:"reason"`
	AutoRecoveryBlock uint64 `json:"autoRecoveryBlock"`
}

// breakerSnapshot is the persisted form of the breaker, written on every
// state change so an active halt survives a restart.
type breakerSnapshot struct {
	Active            bool   `serialize:"true"`
	ActivationBlock   uint64 `serialize:"true"`
	Reason            string `serialize:"true"`
	AutoRecoveryBlock uint64 `serialize:"true"`
}

func (b *circuitBreaker) persist(db database.KeyValueWriter) error {
	bytes, err := Codec.Marshal(codecVersion, &breakerSnapshot{
		Active:            b.active,
		ActivationBlock:   b.activationBlock,
		Reason:            b.reason,
		AutoRecoveryBlock: b.autoRecovery,
	})
	if err != nil {
		return err
	}
	return db.Put(breakerKey, bytes)
}

func loadBreaker(db database.KeyValueReader) (circuitBreaker, error) {
	bytes, err := db.Get(breakerKey)
	if errors.Is(err, database.ErrNotFound) {
		return circuitBreaker{}, nil
	}
	if err != nil {
		return circuitBreaker{}, err
	}

	var snapshot breakerSnapshot
	if _, err := Codec.Unmarshal(bytes, &snapshot); err != nil {
		return circuitBreaker{}, err
	}
	return circuitBreaker{
		active:          snapshot.Active,
		activationBlock: snapshot.ActivationBlock,
		reason:          snapshot.Reason,
		autoRecovery:    snapshot.AutoRecoveryBlock,
	}, nil
}
