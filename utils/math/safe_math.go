// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"
)

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

var (
	ErrOverflow  = errors.New("overflow")
	ErrUnderflow = errors.New("underflow")
)

// MaxUint returns the maximum value of an unsigned integer of type T.
func MaxUint[T Unsigned]() T {
	return ^T(0)
}

// Add returns:
// 1) a + b
// 2) If there is overflow, an error
func Add[T Unsigned](a, b T) (T, error) {
	if a > MaxUint[T]()-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns:
// 1) a - b
// 2) If there is underflow, an error
func Sub[T Unsigned](a, b T) (T, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns:
// 1) a * b
// 2) If there is overflow, an error
func Mul[T Unsigned](a, b T) (T, error) {
	if b != 0 && a > MaxUint[T]()/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// SaturatingAdd returns a + b, or the maximum value of T on overflow.
func SaturatingAdd[T Unsigned](a, b T) T {
	sum, err := Add(a, b)
	if err != nil {
		return MaxUint[T]()
	}
	return sum
}

// SaturatingMul returns a * b, or the maximum value of T on overflow.
func SaturatingMul[T Unsigned](a, b T) T {
	product, err := Mul(a, b)
	if err != nil {
		return MaxUint[T]()
	}
	return product
}

func AbsDiff[T Unsigned](a, b T) T {
	return max(a, b) - min(a, b)
}
