// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
)

func TestAuditLogRoundTrip(t *testing.T) {
	require := require.New(t)

	audit := newAuditLog(memdb.New())

	early := []OptimizationRecord{
		{
			Height:                  10,
			Timestamp:               1_000,
			Parameter:               paramDifficulty,
			OldValue:                1_000,
			NewValue:                1_050,
			PredictedImprovementBps: 2_000,
			ConfidenceBps:           8_000,
		},
		{
			Height:                  10,
			Timestamp:               1_000,
			Parameter:               paramVDF,
			OldValue:                1_000_000,
			NewValue:                1_020_000,
			PredictedImprovementBps: 2_000,
			ConfidenceBps:           8_000,
		},
		{
			Height:                  10,
			Timestamp:               1_000,
			Parameter:               paramMinGas,
			OldValue:                1_000,
			NewValue:                1_100,
			PredictedImprovementBps: 2_000,
			ConfidenceBps:           8_000,
		},
	}
	late := []OptimizationRecord{
		{
			Height:        11,
			Timestamp:     2_800,
			Parameter:     paramDifficulty,
			OldValue:      1_050,
			NewValue:      1_100,
			ConfidenceBps: 9_000,
		},
	}
	require.NoError(audit.record(early))
	require.NoError(audit.record(late))

	// Iteration is keyed on big-endian height then parameter name, so
	// records come back in height order with a fixed order per height.
	atTen, err := audit.recordsAt(10)
	require.NoError(err)
	require.Equal([]OptimizationRecord{early[0], early[2], early[1]}, atTen)

	atEleven, err := audit.recordsAt(11)
	require.NoError(err)
	require.Equal(late, atEleven)

	all, err := audit.records()
	require.NoError(err)
	require.Equal([]OptimizationRecord{early[0], early[2], early[1], late[0]}, all)

	missing, err := audit.recordsAt(12)
	require.NoError(err)
	require.Empty(missing)
}

func TestAuditLogOverwritesSameHeightParameter(t *testing.T) {
	require := require.New(t)

	audit := newAuditLog(memdb.New())
	rec := OptimizationRecord{
		Height:    10,
		Parameter: paramDifficulty,
		OldValue:  1_000,
		NewValue:  1_050,
	}
	require.NoError(audit.record([]OptimizationRecord{rec}))

	rec.NewValue = 1_040
	require.NoError(audit.record([]OptimizationRecord{rec}))

	got, err := audit.recordsAt(10)
	require.NoError(err)
	require.Equal([]OptimizationRecord{rec}, got)
}
