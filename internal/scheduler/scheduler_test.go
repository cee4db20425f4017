package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	due   atomic.Int64
	err   error
	calls atomic.Int64
}

func (f *fakeCounter) DueCount(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return int(f.due.Load()), nil
}

func TestCheckDue_RecordsCount(t *testing.T) {
	counter := &fakeCounter{}
	counter.due.Store(7)
	s := New(counter, time.Minute)

	s.CheckDue()
	assert.Equal(t, 7, s.LastDue())
	assert.Equal(t, 1, s.Runs())

	counter.due.Store(0)
	s.CheckDue()
	assert.Zero(t, s.LastDue())
	assert.Equal(t, 2, s.Runs())
}

func TestCheckDue_KeepsLastCountOnError(t *testing.T) {
	counter := &fakeCounter{}
	counter.due.Store(3)
	s := New(counter, time.Minute)
	s.CheckDue()

	counter.err = errors.New("store offline")
	s.CheckDue()
	assert.Equal(t, 3, s.LastDue())
	assert.Equal(t, 2, s.Runs())
}

func TestNew_DefaultsInterval(t *testing.T) {
	s := New(&fakeCounter{}, 0)
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestRun_ChecksImmediatelyAndStops(t *testing.T) {
	counter := &fakeCounter{}
	counter.due.Store(5)
	s := New(counter, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.LastDue() == 5 }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, counter.calls.Load(), int64(1))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
