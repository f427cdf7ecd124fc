package discovery

import (
    "context"
    "crypto/ed25519"
    "errors"
    "net"
    "sync"
    "time"

    "github.com/fxamacker/cbor/v2"
    "go.uber.org/zap"

    "netinf/pkg/handshake"
    "netinf/pkg/transport"
)

const maxBeaconSize = 2048

// BeaconScanner discovers neighbours over UDP. Every window it sends a signed
// beacon advertising Advertise to Broadcast, and it reports every verified
// beacon it receives on Listen. Peers not heard from within TTL disappear.
type BeaconScanner struct {
    Listen    string
    Broadcast string
    Label     string
    Advertise string
    Key       ed25519.PrivateKey
    TTL       time.Duration
    MaxSkew   time.Duration

    mu    sync.Mutex
    local net.Addr
    ready chan struct{}
    once  sync.Once
}

// LocalAddr returns the bound UDP address once Scan is running, or nil.
func (b *BeaconScanner) LocalAddr() net.Addr {
    b.mu.Lock(); defer b.mu.Unlock()
    return b.local
}

// Ready is closed when the UDP socket is bound.
func (b *BeaconScanner) Ready() <-chan struct{} { return b.readyCh() }

func (b *BeaconScanner) readyCh() chan struct{} {
    b.once.Do(func() { b.ready = make(chan struct{}) })
    return b.ready
}

func (b *BeaconScanner) Scan(ctx context.Context, window time.Duration, emit func(Event)) error {
    if len(b.Key) != ed25519.PrivateKeySize { return errors.New("beacon: private key required") }
    if window <= 0 { window = 2 * time.Second }
    ttl := b.TTL
    if ttl <= 0 { ttl = 3 * window }

    pc, err := net.ListenPacket("udp", b.Listen)
    if err != nil { return err }
    defer pc.Close()
    b.mu.Lock(); b.local = pc.LocalAddr(); b.mu.Unlock()
    if ch := b.readyCh(); !isClosed(ch) { close(ch) }
    self := transport.CanonicalPeerIDFromPubKey("ed25519", b.Key.Public().(ed25519.PublicKey))
    zap.L().Info("beacon scanner listening", zap.String("addr", pc.LocalAddr().String()), zap.String("self", string(self)))

    var dst net.Addr
    if b.Broadcast != "" {
        dst, err = net.ResolveUDPAddr("udp", b.Broadcast)
        if err != nil { return err }
    }

    seen := make(chan sighting, 32)
    go func() {
        <-ctx.Done()
        _ = pc.Close()
    }()
    go b.receive(ctx, pc, self, seen)

    last := make(map[transport.PeerID]time.Time)
    known := make(map[transport.PeerID]string)
    t := time.NewTicker(window)
    defer t.Stop()
    b.send(pc, dst)
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case sg := <-seen:
            p := sg.peer
            // a host taken from the packet source is unsigned; it never moves a live peer
            if prev, ok := known[p.ID]; ok && sg.filled && prev != p.Address {
                zap.L().Debug("beacon address ignored", zap.String("peer", string(p.ID)), zap.String("addr", p.Address), zap.String("known", prev))
                p.Address = prev
            }
            known[p.ID] = p.Address
            last[p.ID] = p.LastSeen
            emit(Event{Kind: Appeared, Peer: p})
        case now := <-t.C:
            b.send(pc, dst)
            for id, ts := range last {
                if now.Sub(ts) > ttl {
                    delete(last, id)
                    delete(known, id)
                    emit(Event{Kind: Disappeared, Peer: Peer{ID: id}})
                }
            }
        }
    }
}

func (b *BeaconScanner) send(pc net.PacketConn, dst net.Addr) {
    if dst == nil { return }
    bc, _, err := handshake.BuildBeacon(b.Label, b.Advertise, b.Key)
    if err != nil { zap.L().Warn("beacon build failed", zap.Error(err)); return }
    raw, err := cbor.Marshal(bc)
    if err != nil { zap.L().Warn("beacon encode failed", zap.Error(err)); return }
    if _, err := pc.WriteTo(raw, dst); err != nil {
        zap.L().Debug("beacon send failed", zap.String("dst", dst.String()), zap.Error(err))
    }
}

// sighting is a verified beacon. filled marks an address whose host came from
// the packet source rather than the signed advert.
type sighting struct {
    peer   Peer
    filled bool
}

func (b *BeaconScanner) receive(ctx context.Context, pc net.PacketConn, self transport.PeerID, seen chan<- sighting) {
    buf := make([]byte, maxBeaconSize)
    for {
        n, from, err := pc.ReadFrom(buf)
        if err != nil {
            if ctx.Err() == nil { zap.L().Warn("beacon read failed", zap.Error(err)) }
            return
        }
        var bc handshake.Beacon
        if err := cbor.Unmarshal(buf[:n], &bc); err != nil {
            zap.L().Debug("beacon decode failed", zap.String("from", from.String()), zap.Error(err))
            continue
        }
        id, err := handshake.VerifyBeacon(bc, b.MaxSkew)
        if err != nil {
            zap.L().Debug("beacon rejected", zap.String("from", from.String()), zap.Error(err))
            continue
        }
        if id == self { continue }
        addr, filled := reachable(bc.Addr, from)
        select {
        case seen <- sighting{peer: Peer{ID: id, Label: bc.Label, Address: addr, State: StateDiscovered, LastSeen: time.Now()}, filled: filled}:
        case <-ctx.Done():
            return
        }
    }
}

func isClosed(ch chan struct{}) bool {
    select {
    case <-ch:
        return true
    default:
        return false
    }
}

// reachable fills in the sender's IP when a beacon advertises a wildcard
// host such as ":7420" or "0.0.0.0:7420", and reports whether it did.
func reachable(addr string, from net.Addr) (string, bool) {
    host, port, err := net.SplitHostPort(addr)
    if err != nil { return addr, false }
    if host != "" && !net.ParseIP(host).IsUnspecified() { return addr, false }
    ua, ok := from.(*net.UDPAddr)
    if !ok { return addr, false }
    return net.JoinHostPort(ua.IP.String(), port), true
}
