package tcp

import (
    "context"
    "errors"
    "net"
    "testing"
    "time"

    "netinf/pkg/transport"
)

func TestLoopbackExchange(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    cli, err := tr.Dial(ctx, l.Addr().String(), transport.PeerInfo{ID: "srv"})
    if err != nil { t.Fatalf("dial: %v", err) }
    srv, err := l.Accept(ctx)
    if err != nil { t.Fatalf("accept: %v", err) }
    defer srv.Close()

    if err := cli.Send([]byte("hello")); err != nil { t.Fatalf("send: %v", err) }
    var got []byte
    for len(got) < 5 {
        b, err := srv.Receive(time.Now().Add(time.Second))
        if err != nil { t.Fatalf("receive: %v", err) }
        got = append(got, b...)
    }
    if string(got) != "hello" { t.Fatalf("got %q", got) }

    _ = cli.Close()
    if _, err := srv.Receive(time.Now().Add(time.Second)); !errors.Is(err, transport.ErrLinkBroken) {
        t.Fatalf("want ErrLinkBroken after peer close, got %v", err)
    }
}

func TestDialRefused(t *testing.T) {
    ln, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    addr := ln.Addr().String()
    _ = ln.Close()
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    if _, err := New().Dial(ctx, addr, transport.PeerInfo{}); !errors.Is(err, transport.ErrPeerUnreachable) {
        t.Fatalf("want ErrPeerUnreachable, got %v", err)
    }
}
