package discovery

import (
    "context"
    "sync"
    "time"

    "go.uber.org/zap"

    "netinf/pkg/transport"
)

// StaticScanner reports a fixed set of peers. With a Probe transport it dials
// every address once per window and reports reachability changes; without
// one every peer is reported once and never disappears.
type StaticScanner struct {
    Peers []Peer
    Probe transport.Transport
    // ProbeTimeout bounds one probe dial. Defaults to a quarter of the window.
    ProbeTimeout time.Duration
}

func (s *StaticScanner) Scan(ctx context.Context, window time.Duration, emit func(Event)) error {
    if s.Probe == nil {
        for _, p := range s.Peers {
            p.LastSeen = time.Now()
            emit(Event{Kind: Appeared, Peer: p})
        }
        <-ctx.Done()
        return ctx.Err()
    }
    if window <= 0 { window = 2 * time.Second }
    up := make(map[transport.PeerID]bool, len(s.Peers))
    t := time.NewTicker(window)
    defer t.Stop()
    for {
        s.probeAll(ctx, window, up, emit)
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-t.C:
        }
    }
}

func (s *StaticScanner) probeAll(ctx context.Context, window time.Duration, up map[transport.PeerID]bool, emit func(Event)) {
    to := s.ProbeTimeout
    if to <= 0 { to = window / 4 }
    res := make([]bool, len(s.Peers))
    var wg sync.WaitGroup
    for i, p := range s.Peers {
        wg.Add(1)
        go func(i int, p Peer) {
            defer wg.Done()
            pctx, cancel := context.WithTimeout(ctx, to)
            defer cancel()
            sess, err := s.Probe.Dial(pctx, p.Address, p.Info())
            if err != nil {
                zap.L().Debug("static probe failed", zap.String("peer", string(p.ID)), zap.String("addr", p.Address), zap.Error(err))
                return
            }
            _ = sess.Close()
            res[i] = true
        }(i, p)
    }
    wg.Wait()
    if ctx.Err() != nil { return }
    for i, p := range s.Peers {
        switch {
        case res[i]:
            p.LastSeen = time.Now()
            emit(Event{Kind: Appeared, Peer: p})
            up[p.ID] = true
        case up[p.ID]:
            emit(Event{Kind: Disappeared, Peer: Peer{ID: p.ID}})
            up[p.ID] = false
        }
    }
}
