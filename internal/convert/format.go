// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// formatter renders one cell value.
type formatter func(v float64) string

// formatterFor picks the cell format for a numpy dtype descriptor. Float
// columns use the shortest round-trip representation at the array's
// precision; integer columns print as integers.
func formatterFor(dtype string) formatter {
	kind, size := byte('f'), byte('8')
	if n := len(dtype); n >= 2 {
		kind, size = dtype[n-2], dtype[n-1]
	}
	switch {
	case kind == 'i' || kind == 'u':
		return formatInt
	case size == '8':
		return func(v float64) string { return formatFloat(v, 64) }
	case size == '2':
		return func(v float64) string { return formatFloat(v, 16) }
	default:
		return func(v float64) string { return formatFloat(v, 32) }
	}
}

func formatInt(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

// formatFloat writes v the way Python's float repr does: shortest digits,
// fixed notation with a trailing ".0" for integral values when
// 1e-4 <= |v| < 1e16, scientific notation with a two-digit exponent
// otherwise. NaN becomes an empty field. bitSize 16 gives the shortest
// digits that round-trip through half precision.
func formatFloat(v float64, bitSize int) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	var s string
	if bitSize == 16 {
		s = shortestHalf(v)
	} else {
		s = strconv.FormatFloat(v, 'e', -1, bitSize)
	}
	mant, expStr, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expStr)

	sign := ""
	if strings.HasPrefix(mant, "-") {
		sign, mant = "-", mant[1:]
	}
	digits := strings.Replace(mant, ".", "", 1)

	switch {
	case exp < -4 || exp >= 16:
		m := digits[:1]
		if len(digits) > 1 {
			m += "." + digits[1:]
		}
		return fmt.Sprintf("%s%se%+03d", sign, m, exp)
	case exp >= 0:
		if len(digits) <= exp+1 {
			return sign + digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
		}
		return sign + digits[:exp+1] + "." + digits[exp+1:]
	default:
		return sign + "0." + strings.Repeat("0", -exp-1) + digits
	}
}

// shortestHalf returns v in 'e' format with the fewest significant digits
// that parse back to the same float16.
func shortestHalf(v float64) string {
	want := float16.Fromfloat32(float32(v)).Bits()
	for prec := 0; prec < 16; prec++ {
		s := strconv.FormatFloat(v, 'e', prec, 64)
		back, err := strconv.ParseFloat(s, 64)
		if err == nil && float16.Fromfloat32(float32(back)).Bits() == want {
			return s
		}
	}
	return strconv.FormatFloat(v, 'e', -1, 64)
}
