/*
This file contains common utility functions for converting between native
integer units and display values, with precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrOverflow         = errors.New("value overflows native units")
)

// NativeToDisplay converts a native-unit amount to a display float given the
// token precision (decimal places).
func NativeToDisplay(amount uint64, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	result := float64(amount) / math.Pow10(precision)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// DisplayToNative converts a display float to native units, truncating any
// fraction below one native unit.
func DisplayToNative(amount float64, precision int) (uint64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return 0, ErrAmountNegative
	}
	scaled := amount * math.Pow10(precision)
	if scaled >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %f at precision %d", ErrOverflow, amount, precision)
	}
	return uint64(scaled), nil
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// MinUint64 returns the smaller of a and b.
func MinUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
