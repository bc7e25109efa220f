package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskResult struct {
	value string
	err   error
}

func TestBackgroundTaskSuccessValue(t *testing.T) {
	task := NewBackgroundTask(nil, func() (*taskResult, error) {
		return &taskResult{value: "ok"}, nil
	})

	result := task.run()
	require.NotNil(t, result)
	assert.Equal(t, "ok", result.value)
}

func TestBackgroundTaskRecoverValueIsDelivered(t *testing.T) {
	boom := errors.New("collaborator down")
	task := NewBackgroundTask(nil, func() (*taskResult, error) {
		return nil, boom
	}).Recover(func(err error) taskResult {
		return taskResult{err: err}
	})

	result := task.run()
	require.NotNil(t, result)
	assert.ErrorIs(t, result.err, boom)
}

func TestBackgroundTaskErrorWithoutRecoverDeliversNothing(t *testing.T) {
	task := NewBackgroundTask(nil, func() (*taskResult, error) {
		return nil, errors.New("collaborator down")
	})

	assert.Nil(t, task.run())
}

func TestBackgroundTaskTimeoutRecovers(t *testing.T) {
	task := NewBackgroundTask(nil, func() (*taskResult, error) {
		time.Sleep(200 * time.Millisecond)
		return &taskResult{value: "late"}, nil
	}).WithTimeout(20 * time.Millisecond).Recover(func(err error) taskResult {
		return taskResult{err: err}
	})

	result := task.run()
	require.NotNil(t, result)
	assert.Error(t, result.err)
}

func TestMapBackgroundTaskKeepsErrorChannel(t *testing.T) {
	boom := errors.New("collaborator down")
	inner := NewBackgroundTask(nil, func() (*taskResult, error) {
		return nil, boom
	})
	mapped := MapBackgroundTask(inner, func(r *taskResult) *string {
		return &r.value
	}).Recover(func(err error) string {
		return "recovered"
	})

	result := mapped.run()
	require.NotNil(t, result)
	assert.Equal(t, "recovered", *result)
}
