package protocol

import (
    "crypto/rand"
    "errors"
    "fmt"
    "io"

    "netinf/pkg/object"
)

// Protocol-layer failures. Transport-layer failures live in package transport.
var (
    // ErrMalformedMessage reports a frame that cannot be parsed.
    ErrMalformedMessage = errors.New("malformed message")
    // ErrProtocolMismatch reports a response whose echoed method differs from the request.
    ErrProtocolMismatch = errors.New("protocol mismatch")
    // ErrInvalidRequest reports a request or response that cannot be encoded.
    ErrInvalidRequest = errors.New("invalid request")
)

// Method is the request verb carried in the first byte after the frame length.
type Method uint8

const (
    MethodUnknown Method = iota
    MethodGet
    MethodPut
)

func (m Method) String() string {
    switch m {
    case MethodGet:
        return "GET"
    case MethodPut:
        return "PUT"
    default:
        return "UNKNOWN"
    }
}

// Valid reports whether m is GET or PUT.
func (m Method) Valid() bool { return m == MethodGet || m == MethodPut }

// Request asks a peer for (GET) or offers a peer (PUT) a named object.
type Request struct {
    Method Method
    ID     string
    // Object is the published object for PUT; nil for GET.
    Object *object.Object
}

// Get builds a retrieval request.
func Get(id string) Request { return Request{Method: MethodGet, ID: id} }

// Put builds a publish request for o.
func Put(o object.Object) Request { return Request{Method: MethodPut, ID: o.ID(), Object: &o} }

// Validate checks the request shape before it goes on the wire.
func (r Request) Validate() error {
    switch {
    case !r.Method.Valid():
        return fmt.Errorf("%w: unknown method", ErrInvalidRequest)
    case r.ID == "":
        return fmt.Errorf("%w: empty identifier", ErrInvalidRequest)
    case len(r.ID) > maxIDLen:
        return fmt.Errorf("%w: identifier too long", ErrInvalidRequest)
    case r.Method == MethodGet && r.Object != nil:
        return fmt.Errorf("%w: GET carries no object", ErrInvalidRequest)
    case r.Method == MethodPut && (r.Object == nil || r.Object.IsZero()):
        return fmt.Errorf("%w: PUT requires an object", ErrInvalidRequest)
    case r.Method == MethodPut && r.Object.ID() != r.ID:
        return fmt.Errorf("%w: PUT object id differs from request id", ErrInvalidRequest)
    }
    return nil
}

// Response carries the resolved object back to the requester. The method is
// echoed from the originating request. Failures are never expressed as an
// empty Response.
type Response struct {
    Method Method
    Object object.Object
}

// Validate checks the response shape before it goes on the wire.
func (r Response) Validate() error {
    if !r.Method.Valid() { return fmt.Errorf("%w: unknown method", ErrInvalidRequest) }
    if r.Object.IsZero() { return fmt.Errorf("%w: response without object", ErrInvalidRequest) }
    return nil
}

// NewCorrelation generates a random 16-byte id.
func NewCorrelation() (out [16]byte, err error) {
    _, err = io.ReadFull(rand.Reader, out[:])
    return
}
