package quic

import (
    "context"
    "errors"
    "testing"
    "time"

    "netinf/pkg/transport"
)

func TestLoopbackExchange(t *testing.T) {
    if testing.Short() { t.Skip("opens UDP sockets") }
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    cli, err := tr.Dial(ctx, l.Addr().String(), transport.PeerInfo{ID: "srv"})
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cli.Close()
    if err := cli.Send([]byte("ping")); err != nil { t.Fatalf("send: %v", err) }

    srv, err := l.Accept(ctx)
    if err != nil { t.Fatalf("accept: %v", err) }
    defer srv.Close()
    got, err := srv.Receive(time.Now().Add(5 * time.Second))
    if err != nil || string(got) != "ping" { t.Fatalf("receive: %q %v", got, err) }

    if _, err := cli.Receive(time.Now().Add(50 * time.Millisecond)); !errors.Is(err, transport.ErrTimeout) {
        t.Fatalf("want ErrTimeout, got %v", err)
    }
}

func TestDialNobodyListening(t *testing.T) {
    if testing.Short() { t.Skip("opens UDP sockets") }
    ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
    defer cancel()
    _, err := New().Dial(ctx, "127.0.0.1:1", transport.PeerInfo{ID: "none"})
    if !errors.Is(err, transport.ErrConnectTimeout) && !errors.Is(err, transport.ErrPeerUnreachable) {
        t.Fatalf("want a dial failure kind, got %v", err)
    }
}

func TestReplySurvivesServerClose(t *testing.T) {
    if testing.Short() { t.Skip("opens UDP sockets") }
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    reply := make([]byte, 256<<10)
    for i := range reply { reply[i] = byte(i) }
    go func() {
        srv, err := l.Accept(ctx)
        if err != nil { return }
        defer srv.Close()
        if _, err := srv.Receive(time.Now().Add(5 * time.Second)); err != nil { return }
        _ = srv.Send(reply)
    }()

    cli, err := tr.Dial(ctx, l.Addr().String(), transport.PeerInfo{ID: "srv"})
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cli.Close()
    if err := cli.Send([]byte("req")); err != nil { t.Fatalf("send: %v", err) }
    var got []byte
    for len(got) < len(reply) {
        b, err := cli.Receive(time.Now().Add(5 * time.Second))
        if err != nil { t.Fatalf("receive after %d bytes: %v", len(got), err) }
        got = append(got, b...)
    }
    if string(got) != string(reply) { t.Fatalf("reply corrupted") }
    if _, err := cli.Receive(time.Now().Add(time.Second)); !errors.Is(err, transport.ErrLinkBroken) {
        t.Fatalf("want ErrLinkBroken after server close, got %v", err)
    }
}
