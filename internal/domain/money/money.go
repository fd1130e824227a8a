package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrSubMinorPrecision = errors.New("amount has more precision than the currency minor unit")
	ErrAmountOverflow    = errors.New("amount is too large")
)

// 小数点以下を持たない通貨（Stripeの zero-decimal currencies）
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true,
	"jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// 通貨コードは小文字で扱う
func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

// 最小単位までの桁数
func MinorUnitExponent(currency string) int32 {
	if zeroDecimalCurrencies[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// 200.00 RON -> 20000。丸めずにエラーにする
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	shifted := amount.Shift(MinorUnitExponent(currency))
	if !shifted.IsInteger() {
		return 0, ErrSubMinorPrecision
	}
	if !shifted.BigInt().IsInt64() {
		return 0, ErrAmountOverflow
	}
	return shifted.IntPart(), nil
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent(currency))
}
