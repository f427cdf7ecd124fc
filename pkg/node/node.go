// Package node wires a netinf node together from configuration: identity,
// transport, discovery, the object store with its responder, and the
// request provider.
package node

import (
    "context"
    "crypto/ed25519"
    "errors"
    "fmt"
    "sync"

    "go.uber.org/zap"

    "netinf/pkg/config"
    "netinf/pkg/discovery"
    "netinf/pkg/identity"
    "netinf/pkg/object"
    "netinf/pkg/protocol"
    "netinf/pkg/protocol/codec"
    "netinf/pkg/provider"
    "netinf/pkg/store"
    "netinf/pkg/transport"
)

// Option customizes New.
type Option func(*Node)

// WithTransport uses tr instead of building one from transport.kind. Nodes
// sharing one mem transport can reach each other in-process.
func WithTransport(tr transport.Transport) Option { return func(n *Node) { n.tr = tr } }

// Node is one running convergence-layer endpoint.
type Node struct {
    cfg *config.Config
    id  transport.PeerID
    key ed25519.PrivateKey

    tr        transport.Transport
    sessions  *transport.Manager
    codec     *protocol.Codec
    store     *store.Store
    responder *provider.Responder
    provider  *provider.Provider
    disc      *discovery.Service
    manual    *discovery.ManualScanner
    beacon    *discovery.BeaconScanner

    mu       sync.Mutex
    listener transport.Listener
    cancel   context.CancelFunc
    wg       sync.WaitGroup
}

// New builds a node from cfg without starting it.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
    n := &Node{cfg: cfg, sessions: transport.NewManager(), store: store.New()}
    for _, o := range opts { o(n) }

    key, id, err := identity.LoadOrGenEd25519(cfg.Identity)
    if err != nil { return nil, fmt.Errorf("identity: %w", err) }
    n.key, n.id = key, id
    if cfg.NodeID != "" { n.id = transport.PeerID(cfg.NodeID) }

    if n.tr == nil {
        if n.tr, err = NewByKind(cfg.Transport.Kind); err != nil { return nil, err }
    }

    reg, err := codec.DefaultRegistry()
    if err != nil { return nil, err }
    f, err := object.ParseFormat(cfg.Provider.ObjectFormat)
    if err != nil { return nil, err }
    n.codec = protocol.NewCodec(object.NewEncoder(reg, f), cfg.Provider.MaxFrameBytes)

    n.responder = provider.NewResponder(n.store, n.codec)
    n.responder.ReadTimeout = cfg.Provider.ReadTimeout()
    return n, nil
}

// ID returns the node's peer id.
func (n *Node) ID() transport.PeerID { return n.id }

// Store returns the objects this node serves.
func (n *Node) Store() *store.Store { return n.store }

// Sessions returns the tracker of outbound sessions.
func (n *Node) Sessions() *transport.Manager { return n.sessions }

// Discovery returns the discovery service; nil before Start.
func (n *Node) Discovery() *discovery.Service { return n.disc }

// Manual returns the manual scanner when discovery.mode is manual.
func (n *Node) Manual() *discovery.ManualScanner { return n.manual }

// Provider returns the request provider; nil before Start.
func (n *Node) Provider() *provider.Provider { return n.provider }

// Addr returns the bound convergence-layer address; empty before Start.
func (n *Node) Addr() string {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.listener == nil { return "" }
    return n.listener.Addr().String()
}

// Start binds the listener, serves inbound exchanges and starts discovery.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock(); defer n.mu.Unlock()
    if n.cancel != nil { return errors.New("node already started") }
    ctx, cancel := context.WithCancel(ctx)

    l, err := n.tr.Listen(ctx, n.cfg.Transport.Listen)
    if err != nil {
        cancel()
        return fmt.Errorf("listen %s %s: %w", n.tr.Kind(), n.cfg.Transport.Listen, err)
    }
    n.listener = l
    zap.L().Info("listening", zap.String("kind", n.tr.Kind().String()), zap.String("addr", l.Addr().String()))

    scanner, err := n.scanner(l.Addr().String())
    if err != nil {
        cancel(); _ = l.Close()
        return err
    }
    n.disc = discovery.New(scanner, n.tr, n.sessions, discovery.Options{Window: n.cfg.Discovery.Window()})
    n.provider = provider.New(n.disc, provider.Options{
        ConnectShare: n.cfg.Provider.ConnectShare,
        Codec:        n.codec,
        ScanWindow:   n.cfg.Discovery.Window(),
    })
    if err := n.disc.Start(ctx); err != nil {
        cancel(); _ = l.Close()
        return err
    }

    n.cancel = cancel
    n.wg.Add(1)
    go func() {
        defer n.wg.Done()
        if err := n.responder.Serve(ctx, l); err != nil {
            zap.L().Error("responder stopped", zap.Error(err))
        }
    }()
    zap.L().Info("node started", zap.String("id", string(n.id)), zap.String("label", n.cfg.Label), zap.String("discovery", n.cfg.Discovery.Mode))
    return nil
}

func (n *Node) scanner(listenAddr string) (discovery.Scanner, error) {
    d := n.cfg.Discovery
    switch d.Mode {
    case "manual":
        n.manual = discovery.NewManualScanner()
        return n.manual, nil
    case "static":
        peers := make([]discovery.Peer, 0, len(d.Peers))
        for _, p := range d.Peers {
            peers = append(peers, discovery.Peer{ID: transport.PeerID(p.ID), Label: p.Label, Address: p.Address, State: discovery.StateDiscovered})
        }
        sc := &discovery.StaticScanner{Peers: peers}
        if d.Probe { sc.Probe = n.tr }
        return sc, nil
    case "beacon":
        adv := d.Beacon.Advertise
        if adv == "" { adv = listenAddr }
        n.beacon = &discovery.BeaconScanner{
            Listen:    d.Beacon.Listen,
            Broadcast: d.Beacon.Broadcast,
            Label:     n.cfg.Label,
            Advertise: adv,
            Key:       n.key,
            TTL:       d.PeerTTL(),
            MaxSkew:   d.Beacon.MaxSkew(),
        }
        return n.beacon, nil
    default:
        return nil, fmt.Errorf("unknown discovery mode %q", d.Mode)
    }
}

// Get retrieves id from peer, or from any discovered peer when peer is empty.
func (n *Node) Get(ctx context.Context, peer transport.PeerID, id string) (object.Object, error) {
    resp, err := n.request(ctx, peer, protocol.Get(id))
    if err != nil { return object.Object{}, err }
    return resp.Object, nil
}

// Put publishes o to peer, or to any discovered peer when peer is empty.
func (n *Node) Put(ctx context.Context, peer transport.PeerID, o object.Object) error {
    _, err := n.request(ctx, peer, protocol.Put(o))
    return err
}

func (n *Node) request(ctx context.Context, peer transport.PeerID, req protocol.Request) (protocol.Response, error) {
    n.mu.Lock(); p := n.provider; n.mu.Unlock()
    if p == nil { return protocol.Response{}, errors.New("node not started") }
    if peer == "" { return p.Request(ctx, req, n.cfg.Provider.Timeout()) }
    return p.RequestFrom(ctx, peer, req, n.cfg.Provider.Timeout())
}

// Close stops serving and discovery and closes any session still open.
func (n *Node) Close() {
    n.mu.Lock()
    cancel, l, disc := n.cancel, n.listener, n.disc
    n.cancel = nil
    n.mu.Unlock()
    if cancel == nil { return }
    cancel()
    _ = l.Close()
    disc.Close()
    n.wg.Wait()
    n.sessions.CloseAll()
    zap.L().Info("node stopped", zap.String("id", string(n.id)))
}
