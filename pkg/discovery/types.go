// Package discovery tracks reachable peers and hands out sessions to them.
//
// A single long-lived task owns the peer set: it applies events from the
// platform Scanner and connection-state changes reported by Connect, and fans
// appear/disappear events out to Sequences. Everyone else reads snapshots.
package discovery

import (
    "context"
    "errors"
    "time"

    "netinf/pkg/transport"
)

var (
    // ErrSequenceStopped is returned by Next after Stop.
    ErrSequenceStopped = errors.New("discovery: sequence stopped")
    // ErrSequenceOverrun is returned by Next when the consumer fell too far
    // behind and the sequence was dropped.
    ErrSequenceOverrun = errors.New("discovery: sequence overrun")
    // ErrNotRunning is wrapped with transport.ErrPeerUnreachable by Connect when
    // the discovery task is not running.
    ErrNotRunning = errors.New("discovery: not running")
)

// State is the connectivity state of a peer.
type State int

const (
    StateUnknown State = iota
    StateDiscovered
    StateConnecting
    StateConnected
    StateLost
)

func (s State) String() string {
    switch s {
    case StateDiscovered:
        return "discovered"
    case StateConnecting:
        return "connecting"
    case StateConnected:
        return "connected"
    case StateLost:
        return "lost"
    default:
        return "unknown"
    }
}

// Peer is a discovered node.
type Peer struct {
    ID       transport.PeerID
    Label    string
    Address  string
    State    State
    LastSeen time.Time
}

// Info returns the transport-level view of the peer.
func (p Peer) Info() transport.PeerInfo {
    return transport.PeerInfo{ID: p.ID, Label: p.Label, Addr: p.Address}
}

// Usable reports whether the peer may be dialed.
func (p Peer) Usable() bool { return p.State != StateLost && p.State != StateUnknown }

// EventKind distinguishes appear from disappear events.
type EventKind int

const (
    Appeared EventKind = iota + 1
    Disappeared
)

func (k EventKind) String() string {
    switch k {
    case Appeared:
        return "appeared"
    case Disappeared:
        return "disappeared"
    default:
        return "unknown"
    }
}

// Event reports a peer appearing or disappearing. For Disappeared only Peer.ID is meaningful.
type Event struct {
    Kind EventKind
    Peer Peer
}

// Scanner is the platform scan capability. Scan runs inquiries every window
// and reports what it sees through emit until ctx ends.
type Scanner interface {
    Scan(ctx context.Context, window time.Duration, emit func(Event)) error
}
