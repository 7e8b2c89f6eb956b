package connector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := newPool(context.Background(), 3)
	defer p.close()

	var n int32
	waiters := make([]<-chan error, 10)
	for i := range waiters {
		waiters[i] = p.submit(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
	}
	for _, done := range waiters {
		if err := <-done; err != nil {
			t.Fatalf("task error: %v", err)
		}
	}
	if atomic.LoadInt32(&n) != 10 {
		t.Errorf("ran %d tasks, want 10", n)
	}
}

func TestPool_PropagatesTaskError(t *testing.T) {
	p := newPool(context.Background(), 2)
	defer p.close()

	wantErr := errors.New("boom")
	done := p.submit(func(ctx context.Context) error { return wantErr })
	if err := <-done; err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestPool_OfOneStillRunsEveryTask(t *testing.T) {
	p := newPool(context.Background(), 1)
	defer p.close()

	var n int32
	waiters := make([]<-chan error, 5)
	for i := range waiters {
		waiters[i] = p.submit(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
	}
	for _, done := range waiters {
		<-done
	}
	if atomic.LoadInt32(&n) != 5 {
		t.Errorf("ran %d tasks, want 5", n)
	}
}

func TestPool_CloseIsIdempotentAndBlocksUntilDrained(t *testing.T) {
	p := newPool(context.Background(), 2)

	done := p.submit(func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	<-done

	p.close()
	p.close() // must not panic or deadlock
}
