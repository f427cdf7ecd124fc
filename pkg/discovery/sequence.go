package discovery

import (
    "context"
    "sync"
)

// Sequence is a lazy, unbounded stream of discovery events. It ends only when
// stopped (or overrun); call Service.Scan again for a fresh one.
type Sequence struct {
    svc *Service
    ch  chan Event

    mu      sync.Mutex
    stopped bool
    overrun bool
}

// Next blocks for the next event.
func (q *Sequence) Next(ctx context.Context) (Event, error) {
    q.mu.Lock()
    if q.stopped { q.mu.Unlock(); return Event{}, ErrSequenceStopped }
    q.mu.Unlock()
    select {
    case ev, ok := <-q.ch:
        if !ok {
            q.mu.Lock(); defer q.mu.Unlock()
            if q.overrun { return Event{}, ErrSequenceOverrun }
            return Event{}, ErrSequenceStopped
        }
        return ev, nil
    case <-ctx.Done():
        return Event{}, ctx.Err()
    }
}

// Stop ends the sequence. Safe to call more than once.
func (q *Sequence) Stop() {
    q.mu.Lock()
    q.stopped = true
    q.mu.Unlock()
    q.svc.unsubscribe(q)
}

func (q *Sequence) markOverrun() {
    q.mu.Lock(); q.overrun = true; q.mu.Unlock()
}
