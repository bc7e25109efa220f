package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)

	// Early morning local time is still the previous day in UTC.
	now := time.Date(2026, 3, 15, 2, 30, 0, 0, loc)
	got := localMidnight(now)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())

	// Late evening stays within the same local day.
	got = localMidnight(time.Date(2026, 3, 15, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), got)
}
