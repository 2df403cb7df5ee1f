package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunPass(context.Context) (*model.ScrapeRun, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &model.ScrapeRun{ID: "run-1", Status: model.RunStatusCompleted}, nil
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	r := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewScheduler(r, 10*time.Millisecond).Run(ctx) }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestScheduler_SkipsWhenPassInProgress(t *testing.T) {
	for _, err := range []error{store.ErrRunInProgress, errors.New("boom")} {
		r := &countingRunner{err: err}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- NewScheduler(r, 10*time.Millisecond).Run(ctx) }()

		assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	}
}
