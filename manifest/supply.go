// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manifest

import (
	"fmt"

	"github.com/luxfi/governance/utils/math"
)

// VerifySupply checks a circulating supply figure against the hard cap.
func VerifySupply(circulatingSupply uint64) error {
	if circulatingSupply > MaxTotalSupply {
		return fmt.Errorf("%w: %d > %d", ErrSupplyCapExceeded, circulatingSupply, MaxTotalSupply)
	}
	return nil
}

// ExpectedReward returns the protocol block subsidy at [height]. The subsidy
// starts at InitialBlockReward and halves every HalvingInterval blocks; after
// 63 halvings it is zero forever.
func ExpectedReward(height uint64) uint64 {
	era := height / HalvingInterval
	return InitialBlockReward >> min(era, 63)
}

// VerifyBlockReward checks that a block claims exactly the scheduled subsidy
// for its height. Any other amount, higher or lower, is invalid.
func VerifyBlockReward(height, reward uint64) error {
	if expected := ExpectedReward(height); reward != expected {
		return fmt.Errorf("%w: height %d expects %d, got %d",
			ErrInvalidBlockReward, height, expected, reward)
	}
	return nil
}

// SupplyAtHeight returns the total subsidy issued by the first [height]
// blocks, summed era by era and clamped to the supply cap. Arithmetic
// saturates rather than wrapping, so a pathological height can never report
// less supply than a smaller one.
func SupplyAtHeight(height uint64) uint64 {
	var total uint64
	for era := uint64(0); era*HalvingInterval < height; era++ {
		blocksInEra := HalvingInterval
		if (era+1)*HalvingInterval > height {
			blocksInEra = height - era*HalvingInterval
		}

		reward := InitialBlockReward >> min(era, 63)
		if reward == 0 {
			break
		}
		total = math.SaturatingAdd(total, math.SaturatingMul(blocksInEra, reward))
	}
	return min(total, MaxTotalSupply)
}
