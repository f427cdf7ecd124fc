package transport

import (
    "errors"
    "net"
    "testing"
    "time"
)

func pipeSessions() (Session, Session) {
    a, b := net.Pipe()
    return NewConnSession(PeerInfo{ID: "b"}, KindMem, a, nil, nil), NewConnSession(PeerInfo{ID: "a"}, KindMem, b, nil, nil)
}

func TestConnSessionSendReceive(t *testing.T) {
    a, b := pipeSessions()
    defer a.Close()
    defer b.Close()
    go func() { _ = a.Send([]byte("hello")) }()
    got, err := b.Receive(time.Now().Add(time.Second))
    if err != nil { t.Fatalf("receive: %v", err) }
    if string(got) != "hello" { t.Fatalf("got %q", got) }
}

func TestConnSessionReceiveTimeout(t *testing.T) {
    a, b := pipeSessions()
    defer a.Close()
    defer b.Close()
    start := time.Now()
    _, err := b.Receive(time.Now().Add(50 * time.Millisecond))
    if !errors.Is(err, ErrTimeout) { t.Fatalf("want ErrTimeout, got %v", err) }
    if time.Since(start) < 40*time.Millisecond { t.Fatalf("returned too early") }
}

func TestConnSessionRemoteCloseIsLinkBroken(t *testing.T) {
    a, b := pipeSessions()
    defer b.Close()
    _ = a.Close()
    if _, err := b.Receive(time.Now().Add(time.Second)); !errors.Is(err, ErrLinkBroken) {
        t.Fatalf("want ErrLinkBroken, got %v", err)
    }
    if err := b.Send([]byte("x")); !errors.Is(err, ErrLinkBroken) { t.Fatalf("send: want ErrLinkBroken, got %v", err) }
}

func TestConnSessionCloseIdempotent(t *testing.T) {
    a, b := pipeSessions()
    defer b.Close()
    _ = a.Close()
    _ = a.Close()
    if _, err := a.Receive(time.Time{}); !errors.Is(err, ErrLinkBroken) { t.Fatalf("receive after close: %v", err) }
}

func TestManagerTracksOpenSessions(t *testing.T) {
    m := NewManager()
    a, b := pipeSessions()
    ta := m.Track(a)
    tb := m.Track(b)
    if m.Open() != 2 || m.OpenFor("b") != 1 { t.Fatalf("open = %d, for b = %d", m.Open(), m.OpenFor("b")) }
    if peers := m.ListPeers(); len(peers) != 2 || peers[0] != "a" { t.Fatalf("peers = %v", peers) }
    _ = ta.Close()
    _ = ta.Close()
    if m.Open() != 1 { t.Fatalf("after close open = %d", m.Open()) }
    m.CloseAll()
    if m.Open() != 0 { t.Fatalf("after CloseAll open = %d", m.Open()) }
    if _, err := tb.Receive(time.Time{}); !errors.Is(err, ErrLinkBroken) { t.Fatalf("CloseAll did not close session: %v", err) }
    if opened, closed := m.Stats(); opened != 2 || closed != 2 { t.Fatalf("stats = %d/%d", opened, closed) }
}
