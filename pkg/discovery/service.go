package discovery

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "go.uber.org/zap"

    "netinf/pkg/transport"
)

// Options tunes a Service.
type Options struct {
    // Window is the scan inquiry period handed to the Scanner.
    Window time.Duration
    // Buffer is the per-Sequence event buffer.
    Buffer int
}

func (o Options) withDefaults() Options {
    if o.Window <= 0 { o.Window = 2 * time.Second }
    if o.Buffer <= 0 { o.Buffer = 64 }
    return o
}

type updateKind int

const (
    updScan updateKind = iota
    updConnecting
    updConnected
    updReleased
)

type update struct {
    kind updateKind
    ev   Event
    id   transport.PeerID
}

type entry struct {
    peer   Peer
    active int // sessions handed out or being dialed
}

// Service owns the peer set and the discovery task.
type Service struct {
    scanner  Scanner
    tr       transport.Transport
    sessions *transport.Manager
    opts     Options

    mu    sync.RWMutex
    peers map[transport.PeerID]*entry

    subMu sync.Mutex
    subs  map[*Sequence]struct{}

    updates chan update

    runMu  sync.Mutex
    cancel context.CancelFunc
    done   chan struct{}
}

// New returns a Service. sessions may be nil, in which case handed-out
// sessions are not tracked.
func New(scanner Scanner, tr transport.Transport, sessions *transport.Manager, opts Options) *Service {
    return &Service{
        scanner:  scanner,
        tr:       tr,
        sessions: sessions,
        opts:     opts.withDefaults(),
        peers:    make(map[transport.PeerID]*entry),
        subs:     make(map[*Sequence]struct{}),
        updates:  make(chan update, 256),
    }
}

// Start launches the discovery task. It is a no-op when already running.
func (s *Service) Start(ctx context.Context) error {
    s.runMu.Lock(); defer s.runMu.Unlock()
    if s.done != nil { return nil }
    ctx, cancel := context.WithCancel(ctx)
    s.cancel = cancel
    done := make(chan struct{})
    s.done = done

    go func() {
        err := s.scanner.Scan(ctx, s.opts.Window, func(ev Event) {
            select {
            case s.updates <- update{kind: updScan, ev: ev}:
            case <-ctx.Done():
            }
        })
        if err != nil && ctx.Err() == nil {
            zap.L().Warn("discovery scan stopped", zap.Error(err))
        }
    }()
    go func() {
        defer close(done)
        s.loop(ctx)
    }()
    zap.L().Info("discovery started", zap.Duration("window", s.opts.Window))
    return nil
}

// Close stops the discovery task. The peer set is kept; Start or Scan
// restarts the task.
func (s *Service) Close() {
    s.runMu.Lock()
    cancel, done := s.cancel, s.done
    s.cancel, s.done = nil, nil
    s.runMu.Unlock()
    if cancel == nil { return }
    cancel()
    <-done
    zap.L().Info("discovery stopped")
}

// Running reports whether the discovery task is active.
func (s *Service) Running() bool {
    s.runMu.Lock(); defer s.runMu.Unlock()
    return s.done != nil
}

func (s *Service) doneCh() chan struct{} {
    s.runMu.Lock(); defer s.runMu.Unlock()
    return s.done
}

func (s *Service) loop(ctx context.Context) {
    for {
        select {
        case <-ctx.Done():
            return
        case u := <-s.updates:
            if ev, changed := s.apply(u); changed { s.fanout(ev) }
        }
    }
}

// apply mutates the peer set. It is only called from the discovery task.
func (s *Service) apply(u update) (Event, bool) {
    s.mu.Lock(); defer s.mu.Unlock()
    switch u.kind {
    case updScan:
        id := u.ev.Peer.ID
        e := s.peers[id]
        switch u.ev.Kind {
        case Appeared:
            if e == nil {
                e = &entry{}
                s.peers[id] = e
            }
            was := e.peer.State
            e.peer.ID = id
            if u.ev.Peer.Label != "" { e.peer.Label = u.ev.Peer.Label }
            moved := u.ev.Peer.Address != "" && u.ev.Peer.Address != e.peer.Address
            if u.ev.Peer.Address != "" { e.peer.Address = u.ev.Peer.Address }
            e.peer.LastSeen = u.ev.Peer.LastSeen
            if e.peer.LastSeen.IsZero() { e.peer.LastSeen = time.Now() }
            if e.active > 0 {
                e.peer.State = StateConnected
            } else {
                e.peer.State = StateDiscovered
            }
            if was == StateUnknown || was == StateLost || moved {
                zap.L().Debug("peer appeared", zap.String("peer", string(id)), zap.String("addr", e.peer.Address))
                return Event{Kind: Appeared, Peer: e.peer}, true
            }
        case Disappeared:
            if e == nil || e.peer.State == StateLost { return Event{}, false }
            e.peer.State = StateLost
            zap.L().Debug("peer lost", zap.String("peer", string(id)))
            return Event{Kind: Disappeared, Peer: e.peer}, true
        }
    case updConnecting:
        if e := s.peers[u.id]; e != nil {
            e.active++
            if e.peer.State == StateDiscovered { e.peer.State = StateConnecting }
        }
    case updConnected:
        if e := s.peers[u.id]; e != nil && e.peer.State != StateLost {
            e.peer.State = StateConnected
        }
    case updReleased:
        if e := s.peers[u.id]; e != nil {
            if e.active > 0 { e.active-- }
            if e.active == 0 && e.peer.State != StateLost { e.peer.State = StateDiscovered }
        }
    }
    return Event{}, false
}

func (s *Service) fanout(ev Event) {
    s.subMu.Lock(); defer s.subMu.Unlock()
    for q := range s.subs {
        select {
        case q.ch <- ev:
        default:
            // never block the discovery task on a slow consumer
            q.markOverrun()
            delete(s.subs, q)
            close(q.ch)
            zap.L().Warn("discovery sequence overrun; dropped")
        }
    }
}

// Scan returns a new Sequence. It first replays every usable known peer as
// Appeared, then delivers live events. The discovery task is started with
// window as inquiry period if it is not running yet.
func (s *Service) Scan(window time.Duration) *Sequence {
    s.runMu.Lock()
    if s.done == nil && window > 0 { s.opts.Window = window }
    s.runMu.Unlock()
    _ = s.Start(context.Background())
    s.subMu.Lock(); defer s.subMu.Unlock()
    s.mu.RLock()
    known := make([]Peer, 0, len(s.peers))
    for _, e := range s.peers {
        if e.peer.Usable() { known = append(known, e.peer) }
    }
    s.mu.RUnlock()
    q := &Sequence{svc: s, ch: make(chan Event, len(known)+s.opts.Buffer)}
    for _, p := range known { q.ch <- Event{Kind: Appeared, Peer: p} }
    s.subs[q] = struct{}{}
    return q
}

func (s *Service) unsubscribe(q *Sequence) {
    s.subMu.Lock(); defer s.subMu.Unlock()
    if _, ok := s.subs[q]; ok {
        delete(s.subs, q)
        close(q.ch)
    }
}

// Snapshot returns all known peers, most recently seen first.
func (s *Service) Snapshot() []Peer {
    s.mu.RLock()
    out := make([]Peer, 0, len(s.peers))
    for _, e := range s.peers { out = append(out, e.peer) }
    s.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool {
        if !out[i].LastSeen.Equal(out[j].LastSeen) { return out[i].LastSeen.After(out[j].LastSeen) }
        return out[i].ID < out[j].ID
    })
    return out
}

// Lookup returns one peer by identity.
func (s *Service) Lookup(id transport.PeerID) (Peer, bool) {
    s.mu.RLock(); defer s.mu.RUnlock()
    e := s.peers[id]
    if e == nil { return Peer{}, false }
    return e.peer, true
}

// post hands a connection-state update to the discovery task.
func (s *Service) post(u update) {
    done := s.doneCh()
    if done == nil { return }
    select {
    case s.updates <- u:
    case <-done:
    }
}

// Connect opens a session to a known peer. The ctx deadline bounds the dial.
// If the peer is unknown, lost, or vanishes while the dial is in flight, it
// fails with ErrPeerUnreachable and no session is left open.
func (s *Service) Connect(ctx context.Context, id transport.PeerID) (transport.Session, error) {
    if !s.Running() { return nil, fmt.Errorf("%w: %w", transport.ErrPeerUnreachable, ErrNotRunning) }
    p, ok := s.Lookup(id)
    if !ok { return nil, fmt.Errorf("%w: %s not discovered", transport.ErrPeerUnreachable, id) }
    if !p.Usable() { return nil, fmt.Errorf("%w: %s is %s", transport.ErrPeerUnreachable, id, p.State) }

    s.post(update{kind: updConnecting, id: id})
    sess, err := s.tr.Dial(ctx, p.Address, p.Info())
    if err != nil {
        s.post(update{kind: updReleased, id: id})
        zap.L().Debug("connect failed", zap.String("peer", string(id)), zap.String("addr", p.Address), zap.Error(err))
        return nil, transport.DialError(ctx, err)
    }
    if cur, ok := s.Lookup(id); !ok || cur.State == StateLost {
        _ = sess.Close()
        s.post(update{kind: updReleased, id: id})
        return nil, fmt.Errorf("%w: %s vanished during connect", transport.ErrPeerUnreachable, id)
    }
    s.post(update{kind: updConnected, id: id})
    if s.sessions != nil { sess = s.sessions.Track(sess) }
    zap.L().Debug("connected", zap.String("peer", string(id)), zap.String("kind", sess.TransportKind().String()))
    return &peerSession{Session: sess, release: func() { s.post(update{kind: updReleased, id: id}) }}, nil
}

// peerSession reports its release to the discovery task exactly once.
type peerSession struct {
    transport.Session
    once    sync.Once
    release func()
}

func (ps *peerSession) Close() error {
    err := ps.Session.Close()
    ps.once.Do(ps.release)
    return err
}
