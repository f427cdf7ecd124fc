package transport

import (
    "context"
    "net"
    "time"
)

// Kind identifies transport/link type.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindQUIC
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// PeerID is an opaque stable peer identity (e.g., node id or public key hash).
type PeerID string

// PeerInfo bundles peer identity and addressing hints.
type PeerInfo struct {
    ID    PeerID
    Label string // human-readable name, informational only
    Addr  string // transport-dependent address string
}

// Session is a bidirectional byte stream to one connected peer. It does not
// frame: Receive returns whatever bytes arrived, and reassembly is the
// caller's job. A Session has exactly one owner at a time.
type Session interface {
    Peer() PeerInfo
    TransportKind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // Send writes b entirely or fails with ErrLinkBroken.
    Send(b []byte) error
    // Receive waits until at least one byte arrives or the deadline passes.
    // A zero deadline waits indefinitely. Fails with ErrLinkBroken or ErrTimeout.
    Receive(deadline time.Time) ([]byte, error)
    // Close releases the underlying link. It is idempotent.
    Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for a specific link kind.
type Transport interface {
    Kind() Kind
    // Listen starts accepting inbound sessions on address (transport-specific format).
    Listen(ctx context.Context, address string) (Listener, error)
    // Dial creates an outbound session to a peer/address. The ctx deadline
    // bounds the attempt; failures are ErrPeerUnreachable or ErrConnectTimeout.
    Dial(ctx context.Context, address string, peer PeerInfo) (Session, error)
}
