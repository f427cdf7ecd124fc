package transport

import (
    "fmt"
    "io"
    "net"
    "sync"
    "time"
)

// Conn is the byte stream a session runs over. net.Conn and quic streams satisfy it.
type Conn interface {
    io.Reader
    io.Writer
    io.Closer
    SetReadDeadline(t time.Time) error
}

const recvChunk = 32 << 10

// connSession adapts a Conn to Session.
type connSession struct {
    peer   PeerInfo
    kind   Kind
    c      Conn
    local  net.Addr
    remote net.Addr
    extra  []func() error

    wmu  sync.Mutex
    rmu  sync.Mutex
    buf  []byte

    closeOnce sync.Once
    closeErr  error
    closed    chan struct{}
}

// NewConnSession wraps c. extra closers run after c is closed (e.g. the quic
// connection under a stream).
func NewConnSession(peer PeerInfo, kind Kind, c Conn, local, remote net.Addr, extra ...func() error) Session {
    if nc, ok := c.(net.Conn); ok {
        if local == nil { local = nc.LocalAddr() }
        if remote == nil { remote = nc.RemoteAddr() }
    }
    return &connSession{peer: peer, kind: kind, c: c, local: local, remote: remote, extra: extra, buf: make([]byte, recvChunk), closed: make(chan struct{})}
}

func (s *connSession) Peer() PeerInfo       { return s.peer }
func (s *connSession) SetPeer(pi PeerInfo)  { s.peer = pi }
func (s *connSession) TransportKind() Kind  { return s.kind }
func (s *connSession) LocalAddr() net.Addr  { return s.local }
func (s *connSession) RemoteAddr() net.Addr { return s.remote }

func (s *connSession) Send(b []byte) error {
    s.wmu.Lock(); defer s.wmu.Unlock()
    if s.isClosed() { return fmt.Errorf("%w: session closed", ErrLinkBroken) }
    for len(b) > 0 {
        n, err := s.c.Write(b)
        if err != nil { return s.ioErr(err) }
        b = b[n:]
    }
    return nil
}

func (s *connSession) Receive(deadline time.Time) ([]byte, error) {
    s.rmu.Lock(); defer s.rmu.Unlock()
    if s.isClosed() { return nil, fmt.Errorf("%w: session closed", ErrLinkBroken) }
    if err := s.c.SetReadDeadline(deadline); err != nil { return nil, s.ioErr(err) }
    n, err := s.c.Read(s.buf)
    if n > 0 {
        // hand out what arrived; a trailing error resurfaces on the next call
        return append([]byte(nil), s.buf[:n]...), nil
    }
    if err == nil { return nil, fmt.Errorf("%w: empty read", ErrLinkBroken) }
    return nil, s.ioErr(err)
}

func (s *connSession) Close() error {
    s.closeOnce.Do(func() {
        close(s.closed)
        s.closeErr = s.c.Close()
        for _, f := range s.extra {
            if err := f(); err != nil && s.closeErr == nil { s.closeErr = err }
        }
    })
    return s.closeErr
}

func (s *connSession) isClosed() bool {
    select {
    case <-s.closed:
        return true
    default:
        return false
    }
}

func (s *connSession) ioErr(err error) error {
    if s.isClosed() || isBroken(err) { return fmt.Errorf("%w: %v", ErrLinkBroken, err) }
    return IOError(err)
}
