// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	require := require.New(t)

	sum, err := Add(uint64(0), 0)
	require.NoError(err)
	require.Zero(sum)

	sum, err = Add(uint64(1), 2)
	require.NoError(err)
	require.Equal(uint64(3), sum)

	sum, err = Add(uint64(math.MaxUint64), 0)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), sum)

	_, err = Add(uint64(math.MaxUint64), 1)
	require.ErrorIs(err, ErrOverflow)

	_, err = Add(uint64(math.MaxUint64), math.MaxUint64)
	require.ErrorIs(err, ErrOverflow)
}

func TestSub(t *testing.T) {
	require := require.New(t)

	got, err := Sub(uint64(2), 1)
	require.NoError(err)
	require.Equal(uint64(1), got)

	got, err = Sub(uint64(2), 2)
	require.NoError(err)
	require.Zero(got)

	_, err = Sub(uint64(1), 2)
	require.ErrorIs(err, ErrUnderflow)
}

func TestMul(t *testing.T) {
	require := require.New(t)

	prod, err := Mul(uint64(math.MaxUint64), 0)
	require.NoError(err)
	require.Zero(prod)

	prod, err = Mul(uint64(math.MaxUint64), 1)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), prod)

	_, err = Mul(uint64(math.MaxUint64), 2)
	require.ErrorIs(err, ErrOverflow)
}

func TestSaturating(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(3), SaturatingAdd(uint64(1), 2))
	require.Equal(uint64(math.MaxUint64), SaturatingAdd(uint64(math.MaxUint64), 1))

	require.Equal(uint64(6), SaturatingMul(uint64(2), 3))
	require.Equal(uint64(math.MaxUint64), SaturatingMul(uint64(math.MaxUint64), 2))
}

func TestAbsDiff(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(0), AbsDiff(uint64(1), 1))
	require.Equal(uint64(2), AbsDiff(uint64(1), 3))
	require.Equal(uint64(2), AbsDiff(uint64(3), 1))
	require.Equal(uint64(math.MaxUint64), AbsDiff(uint64(math.MaxUint64), 0))
}
