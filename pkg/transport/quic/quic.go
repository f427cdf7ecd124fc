package quic

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "errors"
    "math/big"
    "net"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "netinf/pkg/transport"
)

const alpn = "netinf-cl"

// linger bounds how long an accepted connection stays up after its stream is
// closed, waiting for the dialer to read the response and close first.
const linger = 5 * time.Second

// Transport implements QUIC-based sessions. Each session carries exactly one
// bidirectional stream, opened by the dialer and accepted by the listener.
type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
}

func New() *Transport {
    // Generate an ephemeral self-signed certificate for server side.
    cert, err := selfSignedCert()
    if err != nil { zap.L().Warn("quic: self-signed certificate", zap.Error(err)) }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    qconf := &quicgo.Config{KeepAlivePeriod: 5 * time.Second, MaxIdleTimeout: 30 * time.Second}
    return &Transport{tlsConf: tlsConf, quicConf: qconf}
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := &listener{l: l, newCh: make(chan transport.Session, 8), closeCh: make(chan struct{})}
    lctx, cancel := context.WithCancel(ctx)
    ql.cancel = cancel
    go ql.acceptLoop(lctx)
    go func() { <-lctx.Done(); _ = ql.Close() }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    // Peer identity is established by discovery beacons, not by TLS.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, transport.DialError(ctx, err) }
    st, err := c.OpenStreamSync(ctx)
    if err != nil {
        _ = c.CloseWithError(0, "")
        return nil, transport.DialError(ctx, err)
    }
    return newSession(peer, c, st, 0), nil
}

// newSession ties the connection's lifetime to st. The dialer tears the
// connection down on Close; an accepted connection lingers until the dialer
// closes it, so a response still in flight is not aborted.
func newSession(peer transport.PeerInfo, c quicgo.Connection, st quicgo.Stream, wait time.Duration) transport.Session {
    closeConn := func() error { return c.CloseWithError(0, "") }
    if wait > 0 {
        closeConn = func() error {
            go func() {
                t := time.NewTimer(wait)
                defer t.Stop()
                select {
                case <-c.Context().Done():
                    return
                case <-t.C:
                }
                _ = c.CloseWithError(0, "")
            }()
            return nil
        }
    }
    return transport.NewConnSession(peer, transport.KindQUIC, st, c.LocalAddr(), c.RemoteAddr(), closeConn)
}

// ---- Listener ----

type listener struct {
    l       *quicgo.Listener
    newCh   chan transport.Session
    closeCh chan struct{}
    cancel  context.CancelFunc
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("quic listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    select { case <-l.closeCh: return nil; default: close(l.closeCh) }
    l.cancel()
    return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
    for {
        c, err := l.l.Accept(ctx)
        if err != nil { return }
        go l.acceptStream(ctx, c)
    }
}

// acceptStream waits for the dialer's stream; it becomes visible once the
// dialer writes its first bytes.
func (l *listener) acceptStream(ctx context.Context, c quicgo.Connection) {
    st, err := c.AcceptStream(ctx)
    if err != nil {
        _ = c.CloseWithError(0, "")
        return
    }
    raddr := c.RemoteAddr()
    peer := transport.PeerInfo{ID: transport.TempPeerID(transport.KindQUIC, raddr), Addr: raddr.String()}
    s := newSession(peer, c, st, linger)
    select {
    case l.newCh <- s:
    case <-l.closeCh:
        _ = s.Close()
    }
}

// ---- Helpers ----

// selfSignedCert generates a short-lived self-signed TLS certificate for local QUIC use.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber: big.NewInt(time.Now().UnixNano()),
        NotBefore:    time.Now().Add(-time.Minute),
        NotAfter:     time.Now().Add(24 * time.Hour),
        KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:     []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
