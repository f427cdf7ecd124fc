package provider

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "netinf/pkg/discovery"
    "netinf/pkg/object"
    "netinf/pkg/protocol"
    "netinf/pkg/store"
    "netinf/pkg/transport"
    "netinf/pkg/transport/mem"
)

type harness struct {
    ctx      context.Context
    tr       *mem.Transport
    sc       *discovery.ManualScanner
    disc     *discovery.Service
    sessions *transport.Manager
    codec    *protocol.Codec
    prov     *Provider
}

func newHarness(t *testing.T) *harness {
    t.Helper()
    ctx, cancel := context.WithCancel(context.Background())
    h := &harness{ctx: ctx, tr: mem.New(), sc: discovery.NewManualScanner(), sessions: transport.NewManager()}
    h.codec = protocol.NewCodec(object.NewEncoder(nil, object.FormatCBOR), 0)
    h.disc = discovery.New(h.sc, h.tr, h.sessions, discovery.Options{Window: 20 * time.Millisecond})
    if err := h.disc.Start(ctx); err != nil { t.Fatalf("start discovery: %v", err) }
    h.prov = New(h.disc, Options{Codec: h.codec})
    t.Cleanup(func() {
        cancel()
        h.disc.Close()
    })
    return h
}

// announce makes name discoverable and waits until discovery knows it.
func (h *harness) announce(t *testing.T, name string) {
    t.Helper()
    h.sc.Appear(discovery.Peer{ID: transport.PeerID(name), Label: name, Address: name})
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        if p, ok := h.disc.Lookup(transport.PeerID(name)); ok && p.Usable() { return }
        time.Sleep(2 * time.Millisecond)
    }
    t.Fatalf("peer %s never discovered", name)
}

func (h *harness) serveStore(t *testing.T, name string, st *store.Store) {
    t.Helper()
    l, err := h.tr.Listen(h.ctx, name)
    if err != nil { t.Fatalf("listen %s: %v", name, err) }
    r := NewResponder(st, h.codec)
    r.ReadTimeout = time.Second
    go func() { _ = r.Serve(h.ctx, l) }()
    h.announce(t, name)
}

// serveRaw runs fn on every inbound session after reading its request frame.
func (h *harness) serveRaw(t *testing.T, name string, fn func(transport.Session, protocol.Request)) {
    t.Helper()
    l, err := h.tr.Listen(h.ctx, name)
    if err != nil { t.Fatalf("listen %s: %v", name, err) }
    go func() {
        for {
            sess, err := l.Accept(h.ctx)
            if err != nil { return }
            go func() {
                defer sess.Close()
                raw, err := protocol.NewFrameReader(sess, h.codec.MaxFrameSize()).ReadFrame(time.Now().Add(time.Second))
                if err != nil { return }
                req, err := h.codec.DecodeRequest(raw)
                if err != nil { return }
                fn(sess, req)
            }()
        }
    }()
    h.announce(t, name)
}

func storeWith(t *testing.T, objs ...object.Object) *store.Store {
    t.Helper()
    st := store.New()
    for _, o := range objs {
        if err := st.Put(context.Background(), o); err != nil { t.Fatalf("put: %v", err) }
    }
    return st
}

func TestGetReturnsPeerResponse(t *testing.T) {
    h := newHarness(t)
    want := object.New("doc-1", []byte("hello"))
    h.serveStore(t, "p1", storeWith(t, want))

    resp, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if err != nil { t.Fatalf("request: %v", err) }
    if resp.Method != protocol.MethodGet || !object.Equal(resp.Object, want) { t.Fatalf("got %+v", resp) }
    if n := h.sessions.Open(); n != 0 { t.Fatalf("%d sessions left open", n) }
    if h.prov.InFlight() != 0 { t.Fatalf("exchange left pending") }
}

func TestPutStoresObjectAtPeer(t *testing.T) {
    h := newHarness(t)
    st := store.New()
    h.serveStore(t, "p1", st)
    o := object.New("doc-2", []byte("published"), object.WithMetadata(map[string]string{"k": "v"}))

    resp, err := h.prov.RequestFrom(context.Background(), "p1", protocol.Put(o), 2*time.Second)
    if err != nil { t.Fatalf("request: %v", err) }
    if resp.Method != protocol.MethodPut || resp.Object.ID() != "doc-2" { t.Fatalf("got %+v", resp) }
    got, err := st.Get(context.Background(), "doc-2")
    if err != nil || !object.Equal(got, o) { t.Fatalf("stored %v %v", got, err) }
}

func TestNoPeerFailsUnreachableAtDeadline(t *testing.T) {
    h := newHarness(t)
    const timeout = 2 * time.Second
    start := time.Now()
    _, err := h.prov.Request(context.Background(), protocol.Put(object.New("doc-2", []byte("x"))), timeout)
    elapsed := time.Since(start)
    if !errors.Is(err, ErrPeerUnreachable) { t.Fatalf("want ErrPeerUnreachable, got %v", err) }
    if elapsed < timeout || elapsed > timeout+time.Second { t.Fatalf("failed after %v", elapsed) }
    if h.sessions.Open() != 0 { t.Fatalf("session left open") }
}

func TestWaitsForPeerToAppear(t *testing.T) {
    h := newHarness(t)
    l, err := h.tr.Listen(h.ctx, "late")
    if err != nil { t.Fatalf("listen: %v", err) }
    r := NewResponder(storeWith(t, object.New("doc-1", []byte("hi"))), h.codec)
    go func() { _ = r.Serve(h.ctx, l) }()
    go func() {
        time.Sleep(50 * time.Millisecond)
        h.sc.Appear(discovery.Peer{ID: "late", Address: "late"})
    }()
    resp, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if err != nil { t.Fatalf("request: %v", err) }
    if string(resp.Object.Payload()) != "hi" { t.Fatalf("payload %q", resp.Object.Payload()) }
}

func TestPeerDisconnectMidResponseIsLinkBroken(t *testing.T) {
    h := newHarness(t)
    h.serveRaw(t, "p1", func(sess transport.Session, req protocol.Request) {
        _ = sess.Send([]byte{0, 0, 0, 40, byte(req.Method)})
    })
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if !errors.Is(err, ErrLinkBroken) || errors.Is(err, ErrTimeout) { t.Fatalf("want ErrLinkBroken, got %v", err) }
    if !IsTransportFailure(err) || IsProtocolFailure(err) { t.Fatalf("misclassified %v", err) }
    if h.sessions.Open() != 0 { t.Fatalf("session left open") }
}

func TestMethodEchoMismatch(t *testing.T) {
    h := newHarness(t)
    h.serveRaw(t, "p1", func(sess transport.Session, req protocol.Request) {
        out, err := h.codec.EncodeResponse(protocol.Response{Method: protocol.MethodPut, Object: object.New(req.ID, nil)})
        if err == nil { _ = sess.Send(out) }
    })
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if !errors.Is(err, ErrProtocolMismatch) { t.Fatalf("want ErrProtocolMismatch, got %v", err) }
    if !IsProtocolFailure(err) || IsTransportFailure(err) { t.Fatalf("misclassified %v", err) }
}

func TestMalformedResponse(t *testing.T) {
    h := newHarness(t)
    h.serveRaw(t, "p1", func(sess transport.Session, req protocol.Request) {
        _ = sess.Send([]byte{0, 0, 0, 2, byte(req.Method), 0xff})
    })
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if !errors.Is(err, ErrMalformedMessage) { t.Fatalf("want ErrMalformedMessage, got %v", err) }
}

func TestGetMissClosesWithoutResponse(t *testing.T) {
    h := newHarness(t)
    h.serveStore(t, "p1", store.New())
    _, err := h.prov.Request(context.Background(), protocol.Get("missing"), 2*time.Second)
    if !errors.Is(err, ErrLinkBroken) { t.Fatalf("want ErrLinkBroken, got %v", err) }
}

func TestSilentPeerTimesOut(t *testing.T) {
    h := newHarness(t)
    release := make(chan struct{})
    defer close(release)
    h.serveRaw(t, "p1", func(transport.Session, protocol.Request) { <-release })
    start := time.Now()
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 300*time.Millisecond)
    if !errors.Is(err, ErrTimeout) { t.Fatalf("want ErrTimeout, got %v", err) }
    if time.Since(start) > time.Second { t.Fatalf("timeout overran: %v", time.Since(start)) }
    if h.sessions.Open() != 0 { t.Fatalf("session left open") }
}

func TestCancelledCallIsNotLinkBroken(t *testing.T) {
    h := newHarness(t)
    release := make(chan struct{})
    defer close(release)
    h.serveRaw(t, "p1", func(transport.Session, protocol.Request) { <-release })
    ctx, cancel := context.WithCancel(context.Background())
    time.AfterFunc(100*time.Millisecond, cancel)
    _, err := h.prov.Request(ctx, protocol.Get("doc-1"), 2*time.Second)
    if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.Canceled) { t.Fatalf("want ErrTimeout wrapping context.Canceled, got %v", err) }
    if errors.Is(err, ErrLinkBroken) { t.Fatalf("cancellation reported as broken link: %v", err) }
    if h.sessions.Open() != 0 { t.Fatalf("session left open") }
}

func TestStoppedDiscoveryIsUnreachable(t *testing.T) {
    h := newHarness(t)
    h.serveStore(t, "p1", storeWith(t, object.New("doc-1", []byte("x"))))
    h.disc.Close()
    _, err := h.prov.RequestFrom(context.Background(), "p1", protocol.Get("doc-1"), time.Second)
    if !errors.Is(err, ErrPeerUnreachable) || !IsTransportFailure(err) { t.Fatalf("want ErrPeerUnreachable, got %v", err) }
}

func TestGetAnsweredWithOtherObject(t *testing.T) {
    h := newHarness(t)
    h.serveRaw(t, "p1", func(sess transport.Session, req protocol.Request) {
        out, err := h.codec.EncodeResponse(protocol.Response{Method: req.Method, Object: object.New("doc-2", []byte("x"))})
        if err == nil { _ = sess.Send(out) }
    })
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
    if !errors.Is(err, ErrProtocolMismatch) || !IsProtocolFailure(err) { t.Fatalf("want ErrProtocolMismatch, got %v", err) }
}

func TestConnectUsesShareOfBudget(t *testing.T) {
    h := newHarness(t)
    h.serveStore(t, "p1", store.New())
    h.tr.DialDelay = time.Second
    start := time.Now()
    _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 400*time.Millisecond)
    if !errors.Is(err, ErrConnectTimeout) { t.Fatalf("want ErrConnectTimeout, got %v", err) }
    if el := time.Since(start); el > 350*time.Millisecond { t.Fatalf("connect outlived its share: %v", el) }
}

func TestCallerDeadlineWins(t *testing.T) {
    h := newHarness(t)
    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
    defer cancel()
    start := time.Now()
    _, err := h.prov.Request(ctx, protocol.Get("doc-1"), time.Minute)
    if !errors.Is(err, ErrPeerUnreachable) { t.Fatalf("want ErrPeerUnreachable, got %v", err) }
    if time.Since(start) > time.Second { t.Fatalf("ignored ctx deadline") }
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
    h := newHarness(t)
    const n = 6
    for i := 0; i < n; i++ {
        name := fmt.Sprintf("p%d", i)
        h.serveStore(t, name, storeWith(t, object.New("doc", []byte(name))))
    }
    h.serveRaw(t, "broken", func(transport.Session, protocol.Request) {})

    var wg sync.WaitGroup
    errs := make([]error, n+1)
    got := make([]string, n+1)
    for i := 0; i <= n; i++ {
        peer := transport.PeerID(fmt.Sprintf("p%d", i))
        if i == n { peer = "broken" }
        wg.Add(1)
        go func(i int, peer transport.PeerID) {
            defer wg.Done()
            resp, err := h.prov.RequestFrom(context.Background(), peer, protocol.Get("doc"), 2*time.Second)
            errs[i] = err
            if err == nil { got[i] = string(resp.Object.Payload()) }
        }(i, peer)
    }
    wg.Wait()
    for i := 0; i < n; i++ {
        if errs[i] != nil || got[i] != fmt.Sprintf("p%d", i) { t.Fatalf("peer %d: %q %v", i, got[i], errs[i]) }
    }
    if !errors.Is(errs[n], ErrLinkBroken) { t.Fatalf("broken peer: want ErrLinkBroken, got %v", errs[n]) }
    if h.sessions.Open() != 0 { t.Fatalf("%d sessions left open", h.sessions.Open()) }
}

func TestPendingExchangeVisibleWhileInFlight(t *testing.T) {
    h := newHarness(t)
    release := make(chan struct{})
    h.serveRaw(t, "p1", func(sess transport.Session, req protocol.Request) {
        <-release
        out, _ := h.codec.EncodeResponse(protocol.Response{Method: req.Method, Object: object.New(req.ID, []byte("ok"))})
        _ = sess.Send(out)
    })
    done := make(chan error, 1)
    go func() {
        _, err := h.prov.Request(context.Background(), protocol.Get("doc-1"), 2*time.Second)
        done <- err
    }()
    deadline := time.Now().Add(time.Second)
    for h.prov.InFlight() == 0 && time.Now().Before(deadline) { time.Sleep(2 * time.Millisecond) }
    pend := h.prov.Pending()
    if len(pend) != 1 || pend[0].Request.ID != "doc-1" || pend[0].Token == ([16]byte{}) { t.Fatalf("pending = %+v", pend) }
    close(release)
    if err := <-done; err != nil { t.Fatalf("request: %v", err) }
    if h.prov.InFlight() != 0 { t.Fatalf("exchange not removed") }
}

func TestInvalidRequestOpensNothing(t *testing.T) {
    h := newHarness(t)
    h.serveStore(t, "p1", store.New())
    _, err := h.prov.Request(context.Background(), protocol.Request{Method: protocol.MethodGet}, time.Second)
    if !errors.Is(err, protocol.ErrInvalidRequest) { t.Fatalf("want ErrInvalidRequest, got %v", err) }
    if o, _ := h.sessions.Stats(); o != 0 { t.Fatalf("opened %d sessions", o) }
}
