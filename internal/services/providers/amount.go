package providers

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal currencies have no minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// MinorUnitExponent returns the number of decimals of currency.
func MinorUnitExponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FormatMajor renders a minor-unit amount as a major-unit decimal string,
// e.g. 1999 EUR -> "19.99".
func FormatMajor(amount int64, currency string) string {
	exp := MinorUnitExponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}
