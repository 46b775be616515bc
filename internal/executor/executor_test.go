package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_RunsTasksInPostOrder(t *testing.T) {
	l := NewLoop(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Sync(ctx, func() {}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task order = %v, want ascending", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("ran %d tasks, want 5", len(got))
	}
}

func TestLoop_RecoversFromPanickingTask(t *testing.T) {
	l := NewLoop(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	var ran atomic.Bool
	if err := l.Sync(ctx, func() { ran.Store(true) }); err != nil {
		t.Fatalf("sync after panic: %v", err)
	}
	if !ran.Load() {
		t.Fatalf("loop did not survive a panicking task")
	}
}

func TestLoop_SyncAfterStopReturnsErrStopped(t *testing.T) {
	l := NewLoop(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := l.Sync(context.Background(), func() {})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestLoop_PostDelayed(t *testing.T) {
	l := NewLoop(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{})
	l.PostDelayed(func() { close(fired) }, 5*time.Millisecond)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("delayed task never ran")
	}
}

func TestManual_RunPendingIncludesNestedPosts(t *testing.T) {
	var m Manual
	var order []string
	m.Post(func() {
		order = append(order, "a")
		m.Post(func() { order = append(order, "c") })
	})
	m.PostDelayed(func() { order = append(order, "b") }, time.Hour)

	if n := m.RunPending(); n != 3 {
		t.Fatalf("RunPending ran %d tasks, want 3", n)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v, want [a b c]", order)
	}
	if m.Len() != 0 {
		t.Fatalf("queue not drained")
	}
}
