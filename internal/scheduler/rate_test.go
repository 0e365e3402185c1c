package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlecore/internal/simerr"
)

func TestNewRateProfile_Clamps(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  float64
	}{
		{"normal", 1, 1},
		{"below minimum", 0.001, MinRelativeSpeed},
		{"zero", 0, MinRelativeSpeed},
		{"negative", -3, MinRelativeSpeed},
		{"above maximum", 100, MaxRelativeSpeed},
		{"at maximum", 20, 20},
		{"fractional", 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRateProfile(tt.speed, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.RelativeSpeed())
		})
	}
}

func TestNewRateProfile_RejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewRateProfile(v, "bad")
		require.Error(t, err)
		assert.True(t, simerr.IsInvalidArgument(err), "got %v", err)
	}
}

func TestNewRateProfile_DefaultLabel(t *testing.T) {
	tests := []struct {
		speed float64
		label string
	}{
		{1, "x1"},
		{0.5, "x0.5"},
		{2.25, "x2.25"},
		{1.234, "x1.23"},
		{10, "x10"},
		{100, "x20"},
		{0, "x0.05"},
	}

	for _, tt := range tests {
		p, err := NewRateProfile(tt.speed, "  ")
		require.NoError(t, err)
		assert.Equal(t, tt.label, p.Label(), "speed %v", tt.speed)
	}
}

func TestRateProfile_String(t *testing.T) {
	p := MustRateProfile(2, "Fast")
	assert.Equal(t, "RateProfile(Fast)", p.String())
	assert.Equal(t, "RateProfile(Normal)", NormalRate.String())
	assert.Equal(t, 1.0, NormalRate.RelativeSpeed())
}

func TestMustRateProfile_PanicsOnNaN(t *testing.T) {
	assert.Panics(t, func() { MustRateProfile(math.NaN(), "") })
}

func TestEffectiveDuration(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, effectiveDuration(100*time.Millisecond, 2))
	assert.Equal(t, 400*time.Millisecond, effectiveDuration(100*time.Millisecond, 0.25))
	assert.Equal(t, 33333333*time.Nanosecond, effectiveDuration(100*time.Millisecond, 3))
	assert.Equal(t, 66666667*time.Nanosecond, effectiveDuration(200*time.Millisecond, 3))
	assert.Equal(t, time.Duration(1), effectiveDuration(time.Nanosecond, 20), "never below 1ns")
}
