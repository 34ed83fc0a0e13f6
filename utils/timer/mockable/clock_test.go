// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockSet(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	fakedTime := time.Unix(1_000_000, 0)
	clock.Set(fakedTime)
	require.Equal(fakedTime, clock.Time())
	require.Equal(uint64(1_000_000), clock.Unix())
}

func TestClockAdvance(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	clock.Set(time.Unix(1_000_000, 0))
	clock.Advance(90 * time.Minute)
	require.Equal(time.Unix(1_005_400, 0), clock.Time())
}

func TestClockSync(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	clock.Set(time.Unix(0, 0))
	clock.Sync()
	require.WithinDuration(time.Now(), clock.Time(), time.Minute)
}

func TestClockUnixNegative(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	clock.Set(time.Unix(-5, 0))
	require.Zero(clock.Unix())
}
