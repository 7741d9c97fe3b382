package globaltime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockAndAdvance(t *testing.T) {
	t.Cleanup(ResetTime)
	at := time.Date(2026, 1, 2, 3, 4, 5, 678_901_234, time.FixedZone("x", 7200))

	SetMockTime(at)
	assert.True(t, Now().Equal(at))

	got := StoreUTC()
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 678_000_000, got.Nanosecond())

	Advance(time.Hour)
	assert.True(t, Now().Equal(at.Add(time.Hour)))
}

func TestAdvanceIsNoopOnRealClock(t *testing.T) {
	ResetTime()
	before := time.Now()
	Advance(24 * time.Hour)
	assert.Less(t, Now().Sub(before), time.Hour)
}
