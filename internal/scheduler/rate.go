package scheduler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/idlecore/internal/simerr"
)

// Relative speed bounds applied by NewRateProfile.
const (
	MinRelativeSpeed = 0.05
	MaxRelativeSpeed = 20.0
)

// RateProfile describes how frequently a consumer executes relative to the
// scheduler's baseline tick. Immutable once constructed.
type RateProfile struct {
	relativeSpeed float64
	label         string
}

// NormalRate fires exactly once per scheduler tick.
var NormalRate = RateProfile{relativeSpeed: 1, label: "Normal"}

// NewRateProfile creates a profile with relativeSpeed clamped to
// [MinRelativeSpeed, MaxRelativeSpeed].
//
// NaN and infinite speeds are rejected. An empty label defaults to
// "x<speed>" (e.g. "x0.5", "x2.25").
func NewRateProfile(relativeSpeed float64, label string) (RateProfile, error) {
	if math.IsNaN(relativeSpeed) || math.IsInf(relativeSpeed, 0) {
		return RateProfile{}, simerr.InvalidArgument("NewRateProfile", "relative speed must be finite")
	}

	clamped := math.Min(math.Max(relativeSpeed, MinRelativeSpeed), MaxRelativeSpeed)
	if strings.TrimSpace(label) == "" {
		label = "x" + formatSpeed(clamped)
	}
	return RateProfile{relativeSpeed: clamped, label: label}, nil
}

// MustRateProfile is like NewRateProfile but panics on invalid input.
// Intended for constant speeds known at compile time.
func MustRateProfile(relativeSpeed float64, label string) RateProfile {
	p, err := NewRateProfile(relativeSpeed, label)
	if err != nil {
		panic(err)
	}
	return p
}

// RelativeSpeed returns the multiplier against the baseline tick (1 == normal).
func (p RateProfile) RelativeSpeed() float64 {
	return p.relativeSpeed
}

// Label returns the descriptive label.
func (p RateProfile) Label() string {
	return p.label
}

// String implements fmt.Stringer.
func (p RateProfile) String() string {
	return fmt.Sprintf("RateProfile(%s)", p.label)
}

// formatSpeed renders up to two decimals without trailing zeros.
func formatSpeed(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
