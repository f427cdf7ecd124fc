package provider

import (
    "sort"
    "sync"
    "time"

    "netinf/pkg/protocol"
    "netinf/pkg/transport"
)

// PendingExchange is one in-flight request awaiting its response.
type PendingExchange struct {
    Token    [16]byte
    Request  protocol.Request
    Peer     transport.PeerID
    Started  time.Time
    Deadline time.Time
}

// pendingTable holds every in-flight exchange keyed by its correlation token.
type pendingTable struct {
    mu sync.RWMutex
    m  map[[16]byte]*PendingExchange
}

func newPendingTable() *pendingTable { return &pendingTable{m: make(map[[16]byte]*PendingExchange)} }

func (t *pendingTable) add(pe *PendingExchange) {
    t.mu.Lock(); t.m[pe.Token] = pe; t.mu.Unlock()
}

func (t *pendingTable) bind(token [16]byte, peer transport.PeerID) {
    t.mu.Lock(); defer t.mu.Unlock()
    if pe := t.m[token]; pe != nil { pe.Peer = peer }
}

func (t *pendingTable) remove(token [16]byte) {
    t.mu.Lock(); delete(t.m, token); t.mu.Unlock()
}

func (t *pendingTable) len() int {
    t.mu.RLock(); defer t.mu.RUnlock()
    return len(t.m)
}

// snapshot returns copies of the in-flight exchanges, oldest first.
func (t *pendingTable) snapshot() []PendingExchange {
    t.mu.RLock()
    out := make([]PendingExchange, 0, len(t.m))
    for _, pe := range t.m { out = append(out, *pe) }
    t.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
    return out
}
