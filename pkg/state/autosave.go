package state

import (
	"context"
	"sync"
	"time"

	draft "github.com/goliatone/go-draft"
)

type pendingWrite struct {
	ctx   context.Context
	key   string
	seq   uint64
	draft draft.Draft
}

// autosaver writes draft snapshots to a DraftStore. With a zero delay every
// snapshot is written synchronously; otherwise snapshots coalesce and only
// the latest is written once the delay elapses. A write is dropped when the
// target key changed before it started or a newer snapshot already landed.
type autosaver struct {
	store  *DraftStore
	delay  time.Duration
	report func(w pendingWrite, err error, dropped bool)

	mu        sync.Mutex
	idle      *sync.Cond
	key       string
	seq       uint64
	committed uint64
	pending   *pendingWrite
	timer     *time.Timer
	inflight  int
	closed    bool

	writeMu sync.Mutex
}

func newAutosaver(store *DraftStore, delay time.Duration, key string, report func(pendingWrite, error, bool)) *autosaver {
	a := &autosaver{
		store:  store,
		delay:  delay,
		report: report,
		key:    key,
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// retarget points the saver at key, dropping a pending snapshot that belongs
// to another key. Writes already executing finish on their own key before it
// returns, so a lookup that follows sees them.
func (a *autosaver) retarget(key string) {
	a.mu.Lock()
	a.key = key
	var stale *pendingWrite
	if a.pending != nil && a.pending.key != key {
		stale = a.pending
		a.pending = nil
		a.stopTimer()
	}
	a.mu.Unlock()
	if stale != nil {
		a.report(*stale, nil, true)
	}
	a.wait()
}

func (a *autosaver) schedule(ctx context.Context, key string, d draft.Draft) {
	if ctx == nil {
		ctx = context.Background()
	}
	a.mu.Lock()
	a.seq++
	w := pendingWrite{ctx: ctx, key: key, seq: a.seq, draft: d}
	if a.delay <= 0 || a.closed {
		a.inflight++
		a.mu.Unlock()
		a.run(w)
		return
	}
	w.ctx = context.WithoutCancel(ctx)
	a.pending = &w
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, a.fire)
	} else {
		a.timer.Reset(a.delay)
	}
	a.mu.Unlock()
}

func (a *autosaver) fire() {
	a.mu.Lock()
	w := a.pending
	a.pending = nil
	if w == nil {
		a.mu.Unlock()
		return
	}
	a.inflight++
	a.mu.Unlock()
	a.run(*w)
}

// flush writes the pending snapshot now and waits for every write in flight.
func (a *autosaver) flush() {
	a.mu.Lock()
	w := a.pending
	a.pending = nil
	a.stopTimer()
	if w != nil {
		a.inflight++
	}
	a.mu.Unlock()

	if w != nil {
		a.run(*w)
	}
	a.wait()
}

// discard drops the pending snapshot and waits for writes in flight.
func (a *autosaver) discard() {
	a.mu.Lock()
	w := a.pending
	a.pending = nil
	a.stopTimer()
	a.mu.Unlock()
	if w != nil {
		a.report(*w, nil, true)
	}
	a.wait()
}

func (a *autosaver) close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.flush()
}

func (a *autosaver) wait() {
	a.mu.Lock()
	for a.inflight > 0 {
		a.idle.Wait()
	}
	a.mu.Unlock()
}

func (a *autosaver) run(w pendingWrite) {
	defer func() {
		a.mu.Lock()
		a.inflight--
		if a.inflight == 0 {
			a.idle.Broadcast()
		}
		a.mu.Unlock()
	}()
	a.commit(w)
}

func (a *autosaver) commit(w pendingWrite) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	stale := w.key != a.key || w.seq <= a.committed
	if !stale {
		a.committed = w.seq
	}
	a.mu.Unlock()

	if stale {
		a.report(w, nil, true)
		return
	}
	err := a.store.save(w.ctx, w.key, w.draft)
	a.report(w, err, false)
}

// stopTimer must be called with mu held.
func (a *autosaver) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
	}
}
