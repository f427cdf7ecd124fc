// Package provider performs GET/PUT exchanges of information objects with
// discovered peers and answers the exchanges peers start.
//
// Every Request call runs against a single deadline. Waiting for a peer,
// connecting and awaiting the response each spend from that one budget, and
// the session is closed on every exit path before the call returns. A call
// makes exactly one attempt against one peer; retrying is the caller's policy.
package provider

import (
    "context"
    "errors"
    "fmt"
    "time"

    "go.uber.org/zap"

    "netinf/pkg/discovery"
    "netinf/pkg/object"
    "netinf/pkg/protocol"
    "netinf/pkg/transport"
)

// Discovery is what the provider needs from peer discovery.
type Discovery interface {
    Snapshot() []discovery.Peer
    Scan(window time.Duration) *discovery.Sequence
    Connect(ctx context.Context, id transport.PeerID) (transport.Session, error)
}

// Options tunes a Provider.
type Options struct {
    // ConnectShare is the fraction of the remaining budget a connect attempt
    // may use. Values outside (0,1] select 0.5.
    ConnectShare float64
    // Codec encodes frames; nil selects CBOR object bodies and the default
    // frame limit.
    Codec *protocol.Codec
    // ScanWindow is passed to discovery when the provider has to wait for peers.
    ScanWindow time.Duration
}

// Provider issues requests to peers.
type Provider struct {
    disc    Discovery
    codec   *protocol.Codec
    share   float64
    window  time.Duration
    pending *pendingTable
}

func New(disc Discovery, opts Options) *Provider {
    if opts.ConnectShare <= 0 || opts.ConnectShare > 1 { opts.ConnectShare = 0.5 }
    if opts.Codec == nil { opts.Codec = protocol.NewCodec(object.NewEncoder(nil, object.FormatCBOR), 0) }
    return &Provider{disc: disc, codec: opts.Codec, share: opts.ConnectShare, window: opts.ScanWindow, pending: newPendingTable()}
}

// InFlight returns the number of exchanges currently awaiting completion.
func (p *Provider) InFlight() int { return p.pending.len() }

// Pending returns the in-flight exchanges, oldest first.
func (p *Provider) Pending() []PendingExchange { return p.pending.snapshot() }

// Request sends req to the most recently seen usable peer, waiting for one to
// appear if none is known, and returns its response. timeout bounds the whole
// call; an earlier ctx deadline wins.
func (p *Provider) Request(ctx context.Context, req protocol.Request, timeout time.Duration) (protocol.Response, error) {
    return p.request(ctx, "", req, timeout)
}

// RequestFrom is Request against a pre-selected peer.
func (p *Provider) RequestFrom(ctx context.Context, peer transport.PeerID, req protocol.Request, timeout time.Duration) (protocol.Response, error) {
    if peer == "" { return protocol.Response{}, fmt.Errorf("%w: empty peer id", ErrPeerUnreachable) }
    return p.request(ctx, peer, req, timeout)
}

func (p *Provider) request(ctx context.Context, peer transport.PeerID, req protocol.Request, timeout time.Duration) (protocol.Response, error) {
    if err := req.Validate(); err != nil { return protocol.Response{}, err }
    frame, err := p.codec.EncodeRequest(req)
    if err != nil { return protocol.Response{}, err }

    deadline := time.Now().Add(timeout)
    if d, ok := ctx.Deadline(); ok && d.Before(deadline) { deadline = d }
    ctx, cancel := context.WithDeadline(ctx, deadline)
    defer cancel()

    token, err := protocol.NewCorrelation()
    if err != nil { return protocol.Response{}, err }
    p.pending.add(&PendingExchange{Token: token, Request: req, Peer: peer, Started: time.Now(), Deadline: deadline})
    defer p.pending.remove(token)

    if peer == "" {
        peer, err = p.pickPeer(ctx)
        if err != nil { return protocol.Response{}, err }
        p.pending.bind(token, peer)
    }

    resp, err := p.exchange(ctx, peer, req, frame, deadline)
    if err != nil {
        zap.L().Debug("exchange failed", zap.String("peer", string(peer)), zap.Stringer("method", req.Method), zap.String("id", req.ID), zap.Error(err))
        return protocol.Response{}, err
    }
    zap.L().Debug("exchange done", zap.String("peer", string(peer)), zap.Stringer("method", req.Method), zap.String("id", req.ID), zap.Int("bytes", resp.Object.Len()))
    return resp, nil
}

// pickPeer returns the freshest usable peer, or blocks on discovery until one
// appears or ctx ends.
func (p *Provider) pickPeer(ctx context.Context) (transport.PeerID, error) {
    for _, pr := range p.disc.Snapshot() {
        if pr.Usable() { return pr.ID, nil }
    }
    seq := p.disc.Scan(p.window)
    defer func() { seq.Stop() }()
    for {
        ev, err := seq.Next(ctx)
        if err != nil {
            if ctx.Err() != nil { return "", fmt.Errorf("%w: no peer discovered: %v", ErrPeerUnreachable, ctx.Err()) }
            // overrun: start over with a fresh sequence
            if errors.Is(err, discovery.ErrSequenceOverrun) {
                seq = p.disc.Scan(p.window)
                continue
            }
            return "", fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
        }
        if ev.Kind == discovery.Appeared && ev.Peer.Usable() { return ev.Peer.ID, nil }
    }
}

func (p *Provider) exchange(ctx context.Context, peer transport.PeerID, req protocol.Request, frame []byte, deadline time.Time) (protocol.Response, error) {
    remaining := time.Until(deadline)
    if remaining <= 0 { return protocol.Response{}, fmt.Errorf("connect %s: %w", peer, ErrConnectTimeout) }
    cctx, ccancel := context.WithDeadline(ctx, time.Now().Add(time.Duration(float64(remaining)*p.share)))
    sess, err := p.disc.Connect(cctx, peer)
    ccancel()
    if err != nil { return protocol.Response{}, fmt.Errorf("connect %s: %w", peer, err) }
    defer sess.Close()
    stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
    defer stop()

    if err := sess.Send(frame); err != nil { return protocol.Response{}, p.failure(ctx, "send", peer, err) }
    raw, err := protocol.NewFrameReader(sess, p.codec.MaxFrameSize()).ReadFrame(deadline)
    if err != nil { return protocol.Response{}, p.failure(ctx, "receive", peer, err) }
    resp, err := p.codec.DecodeResponse(raw, req.Method)
    if err != nil { return protocol.Response{}, fmt.Errorf("decode response from %s: %w", peer, err) }
    if req.Method == protocol.MethodGet && resp.Object.ID() != req.ID {
        return protocol.Response{}, fmt.Errorf("%w: asked %s for %q, got %q", ErrProtocolMismatch, peer, req.ID, resp.Object.ID())
    }
    return resp, nil
}

// failure reports a send/receive error. When the caller's context closed the
// session, by deadline or cancellation, the failure is a timeout carrying
// ctx.Err(), not a broken link.
func (p *Provider) failure(ctx context.Context, step string, peer transport.PeerID, err error) error {
    if cerr := ctx.Err(); cerr != nil && !errors.Is(err, ErrTimeout) {
        err = fmt.Errorf("%w: %w: %v", ErrTimeout, cerr, err)
    }
    return fmt.Errorf("%s %s: %w", step, peer, err)
}
