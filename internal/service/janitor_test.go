package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storeMocks "docvault/internal/storage/mocks"
)

func TestJanitor_SweepRemovesAllPaths(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{})
	require.NoError(t, err)

	mStore.On("Delete", mock.Anything, "uploads/a/1.pdf").Return(nil)
	mStore.On("Delete", mock.Anything, "uploads/a/2.pdf").Return(nil)

	j.Start(context.Background())
	j.Enqueue([]string{"uploads/a/1.pdf", "uploads/a/2.pdf"})
	j.Stop()

	mStore.AssertExpectations(t)
	assert.Equal(t, 0.0, testutil.ToFloat64(j.failures))
}

func TestJanitor_RetriesTransientFailure(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{MaxRetries: 3})
	require.NoError(t, err)

	mStore.On("Delete", mock.Anything, "uploads/a/1.pdf").Return(errors.New("transient")).Twice()
	mStore.On("Delete", mock.Anything, "uploads/a/1.pdf").Return(nil).Once()

	err = j.sweep(context.Background(), []string{"uploads/a/1.pdf"})
	assert.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(j.failures))
	mStore.AssertExpectations(t)
}

func TestJanitor_PermanentFailureIsCounted(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{MaxRetries: 2})
	require.NoError(t, err)

	mStore.On("Delete", mock.Anything, "uploads/a/1.pdf").Return(errors.New("permission denied"))
	mStore.On("Delete", mock.Anything, "uploads/a/2.pdf").Return(nil)

	err = j.sweep(context.Background(), []string{"uploads/a/1.pdf", "uploads/a/2.pdf"})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(j.failures))
	mStore.AssertExpectations(t)
}

func TestJanitor_EnqueueEmptyBatchIsNoop(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{})
	require.NoError(t, err)

	j.Enqueue(nil)
	j.Enqueue([]string{})

	j.Start(context.Background())
	j.Stop()
	mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestJanitor_FullQueueDropsBatch(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{QueueSize: 1})
	require.NoError(t, err)

	// Worker not started, so the second batch has nowhere to go.
	j.Enqueue([]string{"uploads/a/1.pdf"})
	j.Enqueue([]string{"uploads/a/2.pdf", "uploads/a/3.pdf"})

	assert.Equal(t, 2.0, testutil.ToFloat64(j.failures))
}

func TestJanitor_RegistersFailureCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	mStore := new(storeMocks.MockStorage)
	_, err := NewJanitor(mStore, nil, reg, JanitorConfig{})
	require.NoError(t, err)

	// A second janitor on the same registry collides on the metric name.
	_, err = NewJanitor(mStore, nil, reg, JanitorConfig{})
	assert.Error(t, err)
}

func TestJanitor_StopDrainsPendingBatches(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	j, err := NewJanitor(mStore, nil, nil, JanitorConfig{QueueSize: 8})
	require.NoError(t, err)

	done := make(chan struct{}, 3)
	for _, p := range []string{"uploads/a/1.pdf", "uploads/a/2.pdf", "uploads/a/3.pdf"} {
		p := p
		mStore.On("Delete", mock.Anything, p).
			Return(nil).
			Run(func(mock.Arguments) { done <- struct{}{} })
		j.Enqueue([]string{p})
	}

	j.Start(context.Background())
	j.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("batch was not drained before Stop returned")
		}
	}
	mStore.AssertExpectations(t)
}
