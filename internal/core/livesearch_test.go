package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLiveSearch_NewerRunCancelsOlder(t *testing.T) {
	live := NewLiveSearch()
	started := make(chan struct{})

	staleErr := make(chan error, 1)
	go func() {
		_, err := live.Run(context.Background(), "s1", func(ctx context.Context) ([]Record, error) {
			close(started)
			<-ctx.Done()
			// A slow store may still hand back rows after cancellation.
			return []Record{{ID: 1}}, nil
		})
		staleErr <- err
	}()

	<-started
	recs, err := live.Run(context.Background(), "s1", func(context.Context) ([]Record, error) {
		return []Record{{ID: 2}}, nil
	})
	if err != nil {
		t.Fatalf("newer run: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != 2 {
		t.Errorf("newer run = %v, want record 2", recs)
	}

	select {
	case err := <-staleErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("stale run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale run was not cancelled")
	}

	if got := live.Active(); got != 0 {
		t.Errorf("Active = %d after both runs, want 0", got)
	}
}

func TestLiveSearch_SessionsAreIndependent(t *testing.T) {
	live := NewLiveSearch()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := live.Run(context.Background(), "a", func(ctx context.Context) ([]Record, error) {
			close(started)
			select {
			case <-release:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		done <- err
	}()

	<-started
	if _, err := live.Run(context.Background(), "b", func(context.Context) ([]Record, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("session b: %v", err)
	}
	if got := live.Active(); got != 1 {
		t.Errorf("Active = %d, want 1 (session a still running)", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("session a was disturbed by session b: %v", err)
	}
}

func TestLiveSearch_PassesThroughErrors(t *testing.T) {
	live := NewLiveSearch()
	boom := errors.New("boom")

	if _, err := live.Run(context.Background(), "s", func(context.Context) ([]Record, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want boom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := live.Run(ctx, "s", func(ctx context.Context) ([]Record, error) {
		return nil, ctx.Err()
	}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled parent = %v, want context.Canceled", err)
	}
}
