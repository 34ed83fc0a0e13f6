// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/luxfi/ids"
)

// Proposal is an immutable snapshot of one consensus optimization: the three
// parameter changes the controller wants, the chain metrics that justified
// them, and the guardian's approval flags. A proposal is generated, applied
// at most once, then discarded; it is never retained as controller state.
type Proposal struct {
	ID        ids.ID `json:"id"`
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`

	CurrentDifficulty       uint64  `json:"currentDifficulty"`
	ProposedDifficulty      uint64  `json:"proposedDifficulty"`
	DifficultyChangePercent float64 `json:"difficultyChangePercent"`

	CurrentVDF       uint64  `json:"currentVdf"`
	ProposedVDF      uint64  `json:"proposedVdf"`
	VDFChangePercent float64 `json:"vdfChangePercent"`

	CurrentMinGas    uint64  `json:"currentMinGas"`
	ProposedMinGas   uint64  `json:"proposedMinGas"`
	GasChangePercent float64 `json:"gasChangePercent"`

	AvgBlockTime      float64 `json:"avgBlockTime"`
	HashrateTrend     float64 `json:"hashrateTrend"`
	MempoolCongestion float64 `json:"mempoolCongestion"`
	NetworkHealth     float64 `json:"networkHealth"`

	Confidence          float64 `json:"confidence"`
	ExpectedImprovement float64 `json:"expectedImprovement"`

	PreApproved    bool `json:"preApproved"`
	RequiresVoting bool `json:"requiresVoting"`
}

// proposalID derives a stable identifier from the proposal's height and
// generation time.
func proposalID(height, timestamp uint64) ids.ID {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], height)
	binary.BigEndian.PutUint64(buf[8:], timestamp)
	return ids.ID(sha256.Sum256(buf[:]))
}

// changePercent reports the relative change from [before] to [after] in
// percent, zero when [before] is zero.
func changePercent(before, after uint64) float64 {
	if before == 0 {
		return 0
	}
	return (float64(after) - float64(before)) / float64(before) * 100
}
