package transport

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "os"
    "syscall"
)

// Transport-layer failures.
var (
    ErrPeerUnreachable = errors.New("peer unreachable")
    ErrConnectTimeout  = errors.New("connect timeout")
    ErrLinkBroken      = errors.New("link broken")
    ErrTimeout         = errors.New("timeout")
)

// DialError classifies a failed dial attempt. A dial that ran out of time
// (ctx deadline or a net timeout) is ErrConnectTimeout; anything else means
// the peer could not be reached.
func DialError(ctx context.Context, err error) error {
    if err == nil { return nil }
    if errors.Is(err, ErrConnectTimeout) || errors.Is(err, ErrPeerUnreachable) { return err }
    if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
        return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
    }
    return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
}

// IOError classifies a failed read or write on an established link.
func IOError(err error) error {
    if err == nil { return nil }
    if errors.Is(err, ErrTimeout) || errors.Is(err, ErrLinkBroken) { return err }
    if isTimeout(err) { return fmt.Errorf("%w: %v", ErrTimeout, err) }
    return fmt.Errorf("%w: %v", ErrLinkBroken, err)
}

func isTimeout(err error) bool {
    if errors.Is(err, os.ErrDeadlineExceeded) { return true }
    var ne net.Error
    if errors.As(err, &ne) && ne.Timeout() { return true }
    return false
}

// isBroken reports errors that mean the remote end is gone.
func isBroken(err error) bool {
    return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) ||
        errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
