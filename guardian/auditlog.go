// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
	"github.com/luxfi/database"
)

const codecVersion = 0

// Codec serializes the guardian's persisted records.
var Codec codec.Manager

func init() {
	Codec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&OptimizationRecord{}),
		lc.RegisterType(&breakerSnapshot{}),
		Codec.RegisterCodec(codecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}

// Audited parameter names.
const (
	paramDifficulty = "difficulty"
	paramVDF        = "vdf_iterations"
	paramMinGas     = "min_gas_price"
)

// OptimizationRecord is the audit entry for one applied parameter change.
// Improvement and confidence are stored in basis points to keep the record
// integer-encoded.
type OptimizationRecord struct {
	Height    uint64 `serialize:"true" json:"height"`
	Timestamp uint64 `serialize:"true" json:"timestamp"`
	Parameter string `serialize:"true" json:"parameter"`
	OldValue  uint64 `serialize:"true" json:"oldValue"`
	NewValue  uint64 `serialize:"true" json:"newValue"`

	PredictedImprovementBps uint64 `serialize:"true" json:"predictedImprovementBps"`
	ConfidenceBps           uint64 `serialize:"true" json:"confidenceBps"`
}

// auditLog is the append-only store of applied optimizations. Keys are the
// big-endian height followed by the parameter name, so iteration yields
// records in height order.
type auditLog struct {
	db database.Database
}

func newAuditLog(db database.Database) *auditLog {
	return &auditLog{db: db}
}

func (l *auditLog) record(records []OptimizationRecord) error {
	for _, rec := range records {
		bytes, err := Codec.Marshal(codecVersion, &rec)
		if err != nil {
			return err
		}
		key := append(database.PackUInt64(rec.Height), []byte(rec.Parameter)...)
		if err := l.db.Put(key, bytes); err != nil {
			return err
		}
	}
	return nil
}

func (l *auditLog) recordsAt(height uint64) ([]OptimizationRecord, error) {
	return l.collect(l.db.NewIteratorWithPrefix(database.PackUInt64(height)))
}

func (l *auditLog) records() ([]OptimizationRecord, error) {
	return l.collect(l.db.NewIterator())
}

func (l *auditLog) collect(iter database.Iterator) ([]OptimizationRecord, error) {
	defer iter.Release()

	var out []OptimizationRecord
	for iter.Next() {
		var rec OptimizationRecord
		if _, err := Codec.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}
