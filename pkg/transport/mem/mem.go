package mem

import (
    "context"
    "errors"
    "fmt"
    "net"
    "sync"
    "time"

    "netinf/pkg/transport"
)

// Transport is an in-process transport using net.Pipe. Useful for tests and
// as a stand-in for a radio link between co-located nodes.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*listener

    // DialDelay emulates link setup (pairing) time. A dial whose ctx ends
    // before the delay elapses fails with ErrConnectTimeout.
    DialDelay time.Duration
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock(); defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    l := &listener{name: name, newCh: make(chan transport.Session, 8), closeCh: make(chan struct{})}
    t.listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
        case <-l.closeCh:
        }
        _ = l.Close()
        t.mu.Lock()
        if t.listeners[name] == l { delete(t.listeners, name) }
        t.mu.Unlock()
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string, peer transport.PeerInfo) (transport.Session, error) {
    if t.DialDelay > 0 {
        timer := time.NewTimer(t.DialDelay)
        select {
        case <-ctx.Done():
            timer.Stop()
            return nil, transport.DialError(ctx, ctx.Err())
        case <-timer.C:
        }
    }
    t.mu.Lock(); l := t.listeners[name]; t.mu.Unlock()
    if l == nil { return nil, fmt.Errorf("%w: mem: no listener %q", transport.ErrPeerUnreachable, name) }
    c1, c2 := net.Pipe()
    srv := transport.NewConnSession(transport.PeerInfo{ID: transport.TempPeerID(transport.KindMem, memAddr("dialer")), Addr: "dialer"}, transport.KindMem, c1, memAddr(name), memAddr("dialer"))
    cli := transport.NewConnSession(peer, transport.KindMem, c2, memAddr("dialer"), memAddr(name))
    select {
    case l.newCh <- srv:
        return cli, nil
    case <-l.closeCh:
    case <-ctx.Done():
        _ = srv.Close(); _ = cli.Close()
        return nil, transport.DialError(ctx, ctx.Err())
    }
    _ = srv.Close(); _ = cli.Close()
    return nil, fmt.Errorf("%w: mem: listener %q closed", transport.ErrPeerUnreachable, name)
}

type listener struct {
    name    string
    newCh   chan transport.Session
    closeCh chan struct{}
    once    sync.Once
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("mem listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    l.once.Do(func() { close(l.closeCh) })
    return nil
}

type memAddr string
func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }
