package pricing

import (
	"math"
	"strconv"
	"strings"
)

// Clamp bounds a requested quantity by an optional stock ceiling.
//
// Non-finite and negative requests normalise to 0 and fractional values are
// floored. A nil maxStock leaves the quantity unbounded. The result is never
// negative; callers remove line items whose clamped quantity is 0.
func Clamp(requested float64, maxStock *int) int {
	q := 0
	if !math.IsNaN(requested) && !math.IsInf(requested, 0) && requested > 0 {
		if requested >= math.MaxInt32 {
			q = math.MaxInt32
		} else {
			q = int(math.Floor(requested))
		}
	}

	if maxStock == nil {
		return q
	}
	return min(q, max(0, *maxStock))
}

// ClampInt is Clamp for integer requests.
func ClampInt(requested int, maxStock *int) int {
	return Clamp(float64(requested), maxStock)
}

// ParseQuantity reads a loosely formatted quantity ("3", " 2.7 ", "abc").
// Anything that is not a finite number reads as 0.
func ParseQuantity(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Limit returns a pointer to n, for building optional stock ceilings.
func Limit(n int) *int {
	return &n
}
