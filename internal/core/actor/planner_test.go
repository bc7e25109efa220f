package actor

import (
	"testing"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestClockSlot(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(0, clockSlot(""))
	assert.Equal(0, clockSlot("00:00"))
	assert.Equal(1, clockSlot("00:37"))
	assert.Equal(9, clockSlot("04:30"))
	assert.Equal(47, clockSlot("23:59"))
	assert.Equal(0, clockSlot("not a clock"))
}

func TestSoCSeriesCSV(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("", socSeriesCSV(nil))
	assert.Equal("45.0", socSeriesCSV([]domain.SoCPoint{{Slot: 0, SoC: 45}}))
	assert.Equal("45.0,47.5,100.0", socSeriesCSV([]domain.SoCPoint{
		{Slot: 0, SoC: 45},
		{Slot: 1, SoC: 47.5},
		{Slot: 2, SoC: 100},
	}))
}
