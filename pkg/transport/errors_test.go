package transport

import (
    "context"
    "errors"
    "io"
    "os"
    "testing"
    "time"
)

func TestDialErrorClassification(t *testing.T) {
    ctx := context.Background()
    if err := DialError(ctx, errors.New("connection refused")); !errors.Is(err, ErrPeerUnreachable) {
        t.Fatalf("refused: %v", err)
    }
    if err := DialError(ctx, os.ErrDeadlineExceeded); !errors.Is(err, ErrConnectTimeout) {
        t.Fatalf("deadline: %v", err)
    }
    expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
    defer cancel()
    if err := DialError(expired, errors.New("operation was canceled")); !errors.Is(err, ErrConnectTimeout) {
        t.Fatalf("expired ctx: %v", err)
    }
    if DialError(ctx, nil) != nil { t.Fatalf("nil should stay nil") }
}

func TestIOErrorClassification(t *testing.T) {
    if err := IOError(os.ErrDeadlineExceeded); !errors.Is(err, ErrTimeout) { t.Fatalf("deadline: %v", err) }
    if err := IOError(io.EOF); !errors.Is(err, ErrLinkBroken) { t.Fatalf("eof: %v", err) }
    if err := IOError(ErrTimeout); !errors.Is(err, ErrTimeout) || errors.Is(err, ErrLinkBroken) { t.Fatalf("passthrough: %v", err) }
}
