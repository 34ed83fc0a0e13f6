// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guardian

import (
	"github.com/luxfi/governance/adaptive"
)

// Config configures a Bridge.
type Config struct {
	// AutoPilot lets the guardian reject catastrophic-severity transactions
	// without operator involvement when the engine requests an override.
	// Off by default: a human stays in the loop.
	AutoPilot bool `json:"autoPilot"`

	// Controller seeds the adaptive controller's initial parameter values.
	Controller adaptive.Config `json:"controller"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AutoPilot:  false,
		Controller: adaptive.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return c.Controller.Validate()
}
