package discovery

import (
    "context"
    "time"

    "netinf/pkg/transport"
)

// ManualScanner reports peers that are announced programmatically. Events
// posted before Scan runs are queued.
type ManualScanner struct {
    ch chan Event
}

func NewManualScanner() *ManualScanner { return &ManualScanner{ch: make(chan Event, 64)} }

// Appear announces p as reachable.
func (m *ManualScanner) Appear(p Peer) {
    if p.LastSeen.IsZero() { p.LastSeen = time.Now() }
    m.ch <- Event{Kind: Appeared, Peer: p}
}

// Disappear reports the peer as gone.
func (m *ManualScanner) Disappear(id transport.PeerID) {
    m.ch <- Event{Kind: Disappeared, Peer: Peer{ID: id}}
}

func (m *ManualScanner) Scan(ctx context.Context, _ time.Duration, emit func(Event)) error {
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case ev := <-m.ch:
            emit(ev)
        }
    }
}
