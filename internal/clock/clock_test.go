package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministic_AdvancesFromOrigin(t *testing.T) {
	origin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDeterministic(origin)

	first := c.Now()
	time.Sleep(10 * time.Millisecond)
	second := c.Now()

	assert.True(t, second.After(first), "clock should advance")
	assert.False(t, first.Before(origin), "clock should never precede origin")
	assert.Equal(t, origin, c.Origin())
}

func TestDeterministic_ZeroOriginDefaultsToEpoch(t *testing.T) {
	c := NewDeterministic(time.Time{})
	assert.Equal(t, time.Unix(0, 0).UTC(), c.Origin())
	assert.Less(t, c.Now().Sub(c.Origin()), time.Minute)
}

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	assert.False(t, got.Before(before))
}
