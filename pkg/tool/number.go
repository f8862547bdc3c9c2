package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a JSON number that keeps its literal text. Integral literals are
// combined exactly; anything with a fraction or exponent uses float64.
type Number struct {
	lit json.Number
}

// ParseNumber validates a JSON number literal.
func ParseNumber(lit string) (Number, error) {
	if lit == "" || !(lit[0] == '-' || (lit[0] >= '0' && lit[0] <= '9')) || !json.Valid([]byte(lit)) {
		return Number{}, fmt.Errorf("invalid number %q", lit)
	}
	return Number{lit: json.Number(lit)}, nil
}

// IntNumber wraps an int64.
func IntNumber(i int64) Number { return Number{lit: json.Number(strconv.FormatInt(i, 10))} }

// FloatNumber wraps a finite float64.
func FloatNumber(f float64) (Number, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Number{}, fmt.Errorf("number %v is not representable in JSON", f)
	}
	return Number{lit: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}, nil
}

// String returns the literal.
func (n Number) String() string {
	if n.lit == "" {
		return "0"
	}
	return string(n.lit)
}

// IsIntegral reports whether the literal is written as an integer.
func (n Number) IsIntegral() bool { return isIntegralLiteral(n.String()) }

// Float64 converts to float64.
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(n.String(), 64)
	return f
}

// IsFinite reports whether the number fits in a float64. Integral literals
// are exact and always finite.
func (n Number) IsFinite() bool {
	return n.IsIntegral() || !math.IsInf(n.Float64(), 0)
}

// Int64 returns the integer value when the number is integral and fits.
func (n Number) Int64() (int64, bool) {
	if !n.IsIntegral() {
		return 0, false
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	return i, err == nil
}

// Add returns n + o.
func (n Number) Add(o Number) (Number, error) {
	if n.IsIntegral() && o.IsIntegral() {
		return fromDecimal(n.decimal().Add(o.decimal())), nil
	}
	return FloatNumber(n.Float64() + o.Float64())
}

// Sub returns n - o.
func (n Number) Sub(o Number) (Number, error) {
	if n.IsIntegral() && o.IsIntegral() {
		return fromDecimal(n.decimal().Sub(o.decimal())), nil
	}
	return FloatNumber(n.Float64() - o.Float64())
}

// Mul returns n * o.
func (n Number) Mul(o Number) (Number, error) {
	if n.IsIntegral() && o.IsIntegral() {
		return fromDecimal(n.decimal().Mul(o.decimal())), nil
	}
	return FloatNumber(n.Float64() * o.Float64())
}

// MarshalJSON writes the literal unchanged.
func (n Number) MarshalJSON() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalJSON accepts a JSON number.
func (n *Number) UnmarshalJSON(b []byte) error {
	parsed, err := ParseNumber(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// decimal must only be called on integral literals.
func (n Number) decimal() decimal.Decimal { return decimal.RequireFromString(n.String()) }

func fromDecimal(d decimal.Decimal) Number { return Number{lit: json.Number(d.String())} }

func isIntegralLiteral(lit string) bool {
	if lit == "" {
		return false
	}
	s := strings.TrimPrefix(lit, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
