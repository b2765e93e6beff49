/*
This file contains the fixed point primitives used by the share accounting and
valuation code: full precision multiply/divide with an explicit rounding
direction, and rescaling between token decimal bases.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("result exceeds 256 bits")
)

// maxUint256 is the "unlimited" sentinel used for infinite allowances and
// unbounded deposit limits.
var maxUint256 = func() sdkmath.Int {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return sdkmath.NewIntFromBigInt(max)
}()

func MaxUint256() sdkmath.Int {
	return maxUint256
}

// IsMaxUint256 reports whether amount is the unlimited sentinel.
func IsMaxUint256(amount sdkmath.Int) bool {
	return !amount.IsNil() && amount.Equal(maxUint256)
}

func validateMulDiv(a, b, denominator sdkmath.Int) error {
	if a.IsNil() || b.IsNil() || denominator.IsNil() {
		return ErrAmountNil
	}
	if a.IsNegative() || b.IsNegative() || denominator.IsNegative() {
		return ErrAmountNegative
	}
	if denominator.IsZero() {
		return ErrDivisionByZero
	}
	return nil
}

// MulDivDown returns a * b / denominator with the intermediate product kept at
// full precision, rounding the quotient toward zero.
func MulDivDown(a, b, denominator sdkmath.Int) (sdkmath.Int, error) {
	if err := validateMulDiv(a, b, denominator); err != nil {
		return sdkmath.ZeroInt(), err
	}

	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quotient := product.Quo(product, denominator.BigInt())
	if quotient.BitLen() > 256 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s * %s / %s", ErrOverflow, a, b, denominator)
	}

	return sdkmath.NewIntFromBigInt(quotient), nil
}

// MulDivUp returns a * b / denominator with the intermediate product kept at
// full precision, rounding the quotient away from zero.
func MulDivUp(a, b, denominator sdkmath.Int) (sdkmath.Int, error) {
	if err := validateMulDiv(a, b, denominator); err != nil {
		return sdkmath.ZeroInt(), err
	}

	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quotient, remainder := new(big.Int).QuoRem(product, denominator.BigInt(), new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	if quotient.BitLen() > 256 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s * %s / %s", ErrOverflow, a, b, denominator)
	}

	return sdkmath.NewIntFromBigInt(quotient), nil
}

// ChangeDecimals rescales amount from one decimal base to another. Scaling up
// is exact; scaling down divides by a power of ten and rounds per roundUp.
func ChangeDecimals(amount sdkmath.Int, fromDecimals, toDecimals uint8, roundUp bool) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	if fromDecimals == toDecimals {
		return amount, nil
	}

	if toDecimals > fromDecimals {
		factor := pow10(toDecimals - fromDecimals)
		return MulDivDown(amount, factor, sdkmath.OneInt())
	}

	factor := pow10(fromDecimals - toDecimals)
	if roundUp {
		return MulDivUp(amount, sdkmath.OneInt(), factor)
	}
	return MulDivDown(amount, sdkmath.OneInt(), factor)
}

func pow10(exp uint8) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
}
