// Package valuation holds the deviation check and the per-channel valuation
// adjustment formulas. Everything here is exact fixed-point math; results
// that leave the int64 range are reported, never wrapped.
package valuation

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrOutOfRange reports an asset value that would not fit in int64.
var ErrOutOfRange = errors.New("valuation: asset value out of int64 range")

var (
	minValue = decimal.NewFromInt(math.MinInt64)
	maxValue = decimal.NewFromInt(math.MaxInt64)
)

// Direction says which way an adjustment moves the asset value.
type Direction int

const (
	// Decrease lowers the value by the adjustment regardless of the reading's sign.
	Decrease Direction = iota
	// FollowReading raises the value when the reading is above its baseline
	// and lowers it when below.
	FollowReading
)

// Rule converts a deviation magnitude into a valuation adjustment:
// trunc(deviation * Multiplier / Divisor).
type Rule struct {
	Name       string
	Multiplier int64
	Divisor    int64
	Direction  Direction
}

// DefaultRule applies to channels without an impact rule.
var DefaultRule = Rule{Name: "", Multiplier: 1, Divisor: 1, Direction: Decrease}

var rules = map[string]Rule{
	"temperature":  {Name: "temperature", Multiplier: 200, Divisor: 5, Direction: Decrease},
	"humidity":     {Name: "humidity", Multiplier: 100, Divisor: 5, Direction: Decrease},
	"mileage":      {Name: "mileage", Multiplier: 1, Divisor: 10, Direction: Decrease},
	"soil_quality": {Name: "soil_quality", Multiplier: 50, Divisor: 5, Direction: FollowReading},
}

// Lookup returns the rule registered under name. The empty name resolves to
// DefaultRule; unknown names report ok=false.
func Lookup(name string) (Rule, bool) {
	if name == "" {
		return DefaultRule, true
	}
	r, ok := rules[name]
	return r, ok
}

// IsKnownRule reports whether name is empty or a registered rule.
func IsKnownRule(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// RuleNames lists the registered rule names in sorted order.
func RuleNames() []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Magnitude returns the unsigned size of the adjustment for a deviation.
func (r Rule) Magnitude(deviation decimal.Decimal) decimal.Decimal {
	divisor := r.Divisor
	if divisor <= 0 {
		divisor = 1
	}
	q, _ := deviation.Abs().Mul(decimal.NewFromInt(r.Multiplier)).QuoRem(decimal.NewFromInt(divisor), 0)
	return q
}

// Adjust returns the signed change to apply to the asset value for a reading
// judged against baseline.
func (r Rule) Adjust(value, baseline int64) decimal.Decimal {
	delta := decimal.NewFromInt(value).Sub(decimal.NewFromInt(baseline))
	magnitude := r.Magnitude(delta)
	if r.Direction == FollowReading && delta.IsPositive() {
		return magnitude
	}
	return magnitude.Neg()
}

// Apply returns current moved by the adjustment for value judged against
// baseline, or ErrOutOfRange when the result does not fit in int64.
func (r Rule) Apply(current, value, baseline int64) (int64, error) {
	next := decimal.NewFromInt(current).Add(r.Adjust(value, baseline))
	if next.LessThan(minValue) || next.GreaterThan(maxValue) {
		return 0, ErrOutOfRange
	}
	return next.IntPart(), nil
}
