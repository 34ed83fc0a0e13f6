// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pid implements a discrete PID controller with a clamped output.
package pid

import (
	"errors"
	"fmt"
)

var ErrInvalidBounds = errors.New("output bounds must satisfy min < max")

// Controller accumulates error over successive Update calls and produces a
// correction factor bounded to [outMin, outMax].
//
// The integral term is unbounded: a long run of one-sided error grows it
// without limit, and recovery then takes a symmetric run on the other side
// even though the output stays clamped the whole time. Reset clears the
// accumulated state when an operator needs to re-center the controller.
//
// A Controller is not safe for concurrent use; callers serialize access.
type Controller struct {
	kp, ki, kd float64

	outMin, outMax float64

	integral float64
	prevErr  float64
}

// New returns a controller with the given gains and output bounds.
func New(kp, ki, kd, outMin, outMax float64) (*Controller, error) {
	if outMin >= outMax {
		return nil, fmt.Errorf("%w: [%f, %f]", ErrInvalidBounds, outMin, outMax)
	}
	return &Controller{
		kp:     kp,
		ki:     ki,
		kd:     kd,
		outMin: outMin,
		outMax: outMax,
	}, nil
}

// Update advances the controller by one step of [dt] seconds with the
// measured error [e] and returns the clamped correction. A non-positive dt is
// treated as one second.
func (c *Controller) Update(e, dt float64) float64 {
	if dt <= 0 {
		dt = 1
	}

	c.integral += e * dt
	derivative := (e - c.prevErr) / dt
	c.prevErr = e

	out := c.kp*e + c.ki*c.integral + c.kd*derivative
	switch {
	case out < c.outMin:
		return c.outMin
	case out > c.outMax:
		return c.outMax
	default:
		return out
	}
}

// Reset clears the accumulated integral and derivative state. Gains and
// bounds are untouched.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevErr = 0
}
