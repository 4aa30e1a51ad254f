package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// Backgrounder asks the host to keep the process alive while work that must
// not be cut short (a recording being finalized) is in progress.
type Backgrounder interface {
	Begin(name string) Task
}

// Task is a background continuation token. End may be called more than
// once; only the first call counts.
type Task interface {
	End()
}

// ProcessBackgrounder tracks tokens so shutdown can wait for them.
type ProcessBackgrounder struct {
	wg     sync.WaitGroup
	active atomic.Int64
	ended  atomic.Int64
}

// NewProcessBackgrounder returns an empty backgrounder.
func NewProcessBackgrounder() *ProcessBackgrounder {
	return &ProcessBackgrounder{}
}

func (b *ProcessBackgrounder) Begin(name string) Task {
	b.wg.Add(1)
	n := b.active.Add(1)
	debug.Verbose("background task %q started (%d active)", name, n)
	return &processTask{b: b, name: name}
}

// Active returns the number of tokens not yet ended.
func (b *ProcessBackgrounder) Active() int { return int(b.active.Load()) }

// Ended returns the number of tokens ended so far.
func (b *ProcessBackgrounder) Ended() int { return int(b.ended.Load()) }

// Wait blocks until every token has ended or ctx is done.
func (b *ProcessBackgrounder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type processTask struct {
	b    *ProcessBackgrounder
	name string
	once sync.Once
}

func (t *processTask) End() {
	t.once.Do(func() {
		t.b.active.Add(-1)
		t.b.ended.Add(1)
		t.b.wg.Done()
		debug.Verbose("background task %q ended", t.name)
	})
}
