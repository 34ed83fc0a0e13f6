// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActionKindString(t *testing.T) {
	require := require.New(t)

	require.Equal("accept", ActionAccept.String())
	require.Equal("accept_monitored", ActionAcceptMonitored.String())
	require.Equal("quarantine", ActionQuarantine.String())
	require.Equal("reject", ActionReject.String())
	require.Equal("auto_reject", ActionAutoReject.String())
	require.Equal("require_manual_review", ActionRequireManualReview.String())
	require.Equal("chain_halt", ActionChainHalt.String())
	require.Equal("unknown", ActionKind(99).String())
}
