package core

import (
	"context"
	"sync"
)

// LiveSearch serializes search-as-you-type per session: starting a run
// cancels the run still in flight for the same session, so a stale keystroke
// never overwrites a newer result.
type LiveSearch struct {
	mu       sync.Mutex
	inflight map[string]*liveRun
}

type liveRun struct {
	cancel context.CancelFunc
}

// NewLiveSearch creates an empty session tracker.
func NewLiveSearch() *LiveSearch {
	return &LiveSearch{inflight: make(map[string]*liveRun)}
}

// Run executes fn under a context that is cancelled when ctx ends or when a
// newer Run for session starts. If fn finishes after being superseded, its
// result is discarded and context.Canceled is returned.
func (l *LiveSearch) Run(ctx context.Context, session string, fn func(context.Context) ([]Record, error)) ([]Record, error) {
	runCtx, cancel := context.WithCancel(ctx)
	run := &liveRun{cancel: cancel}

	l.mu.Lock()
	if prev, ok := l.inflight[session]; ok {
		prev.cancel()
	}
	l.inflight[session] = run
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.inflight[session] == run {
			delete(l.inflight, session)
		}
		l.mu.Unlock()
		cancel()
	}()

	recs, err := fn(runCtx)
	if runCtx.Err() != nil && ctx.Err() == nil {
		return nil, context.Canceled
	}
	return recs, err
}

// Active returns the number of sessions with a run in flight.
func (l *LiveSearch) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
