package events

import (
	"testing"

	"github.com/sunsoc/sunsoc/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestChargeTargetToUpdateEvent(t *testing.T) {

	event := ChargeTargetToUpdateEvent(72)

	inputNumber, ok := event.(domain.InputNumberSensorUpdateEvent)
	assert.True(t, ok)
	assert.Equal(t, domain.INPUT_NUMBER_ID_CHARGE_TARGET_SOC, inputNumber.Id)
	assert.Equal(t, 72.0, inputNumber.Value)
	assert.Equal(t, uint(0), inputNumber.Decimals)
}
