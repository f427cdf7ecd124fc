package transport

import (
    "sort"
    "sync"
    "sync/atomic"
)

// Manager keeps track of every open Session per peer. It never hands a
// session to a second owner; it only records that the link exists so leaked
// links can be found and force-closed.
type Manager struct {
    mu    sync.RWMutex
    peers map[PeerID]map[*trackedSession]struct{}

    opened atomic.Uint64
    closed atomic.Uint64
}

func NewManager() *Manager { return &Manager{peers: make(map[PeerID]map[*trackedSession]struct{})} }

// Track registers s and returns a Session whose Close also unregisters it.
func (m *Manager) Track(s Session) Session {
    ts := &trackedSession{Session: s, m: m, id: s.Peer().ID}
    m.mu.Lock()
    set := m.peers[ts.id]
    if set == nil {
        set = make(map[*trackedSession]struct{})
        m.peers[ts.id] = set
    }
    set[ts] = struct{}{}
    m.mu.Unlock()
    m.opened.Add(1)
    return ts
}

// Open returns the number of tracked sessions that are still open.
func (m *Manager) Open() int {
    m.mu.RLock(); defer m.mu.RUnlock()
    n := 0
    for _, set := range m.peers { n += len(set) }
    return n
}

// OpenFor returns the number of open sessions to one peer.
func (m *Manager) OpenFor(id PeerID) int {
    m.mu.RLock(); defer m.mu.RUnlock()
    return len(m.peers[id])
}

// Stats returns lifetime counters of tracked and released sessions.
func (m *Manager) Stats() (opened, closed uint64) { return m.opened.Load(), m.closed.Load() }

// ListPeers returns the peers that currently have an open session.
func (m *Manager) ListPeers() []PeerID {
    m.mu.RLock(); defer m.mu.RUnlock()
    out := make([]PeerID, 0, len(m.peers))
    for id := range m.peers { out = append(out, id) }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

// ClosePeer closes every open session to a peer.
func (m *Manager) ClosePeer(id PeerID) {
    m.mu.RLock()
    victims := make([]*trackedSession, 0, len(m.peers[id]))
    for ts := range m.peers[id] { victims = append(victims, ts) }
    m.mu.RUnlock()
    for _, ts := range victims { _ = ts.Close() }
}

// CloseAll closes every tracked session.
func (m *Manager) CloseAll() {
    for _, id := range m.ListPeers() { m.ClosePeer(id) }
}

func (m *Manager) untrack(ts *trackedSession) {
    m.mu.Lock()
    if set := m.peers[ts.id]; set != nil {
        delete(set, ts)
        if len(set) == 0 { delete(m.peers, ts.id) }
    }
    m.mu.Unlock()
    m.closed.Add(1)
}

type trackedSession struct {
    Session
    m    *Manager
    id   PeerID
    once sync.Once
}

func (ts *trackedSession) Close() error {
    err := ts.Session.Close()
    ts.once.Do(func() { ts.m.untrack(ts) })
    return err
}
