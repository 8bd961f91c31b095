package valuation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BasisPoints is the scale deviation ratios and thresholds are expressed in.
const BasisPoints = 10000

var basisPoints = decimal.NewFromInt(BasisPoints)

// Mode selects where the comparison baseline of a reading comes from.
type Mode string

const (
	// ModeIdealValue compares against the channel's ideal value.
	ModeIdealValue Mode = "ideal"
	// ModePreviousValue compares against the channel's most recent reading.
	ModePreviousValue Mode = "previous"
)

// ParseMode parses a configured baseline mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeIdealValue:
		return ModeIdealValue, nil
	case ModePreviousValue, "":
		return ModePreviousValue, nil
	}
	return "", fmt.Errorf("unknown baseline mode %q (use ideal or previous)", s)
}

// Decision is the outcome of the deviation check for one reading.
// Deviation and RatioBps are exact; a gap between two int64 readings can
// exceed the int64 range.
type Decision struct {
	Baseline      int64
	Deviation     decimal.Decimal
	RatioBps      decimal.Decimal
	NeedsApproval bool
}

// Checker applies the deviation threshold.
type Checker struct {
	thresholdBps decimal.Decimal
}

// NewChecker creates a Checker for a positive threshold in basis points.
func NewChecker(thresholdBps int64) (*Checker, error) {
	if thresholdBps <= 0 {
		return nil, fmt.Errorf("deviation threshold must be positive, got %d", thresholdBps)
	}
	return &Checker{thresholdBps: decimal.NewFromInt(thresholdBps)}, nil
}

// ThresholdBps returns the configured threshold.
func (c *Checker) ThresholdBps() int64 {
	return c.thresholdBps.IntPart()
}

// Check judges value against baseline. A ratio at or above the threshold
// requires approval. The ratio denominator is |baseline|, floored at 1 so a
// zero baseline measures deviation in absolute units.
func (c *Checker) Check(value, baseline int64) Decision {
	deviation := decimal.NewFromInt(value).Sub(decimal.NewFromInt(baseline)).Abs()

	denominator := decimal.NewFromInt(baseline).Abs()
	if denominator.IsZero() {
		denominator = decimal.NewFromInt(1)
	}

	scaled := deviation.Mul(basisPoints)
	return Decision{
		Baseline:  baseline,
		Deviation: deviation,
		RatioBps:  scaled.Div(denominator),
		// Compared without division so rounding never moves a reading across the threshold.
		NeedsApproval: scaled.GreaterThanOrEqual(c.thresholdBps.Mul(denominator)),
	}
}

// Accept is the decision for a reading with no baseline to compare against.
func Accept(value int64) Decision {
	return Decision{Baseline: value, Deviation: decimal.Zero, RatioBps: decimal.Zero}
}
