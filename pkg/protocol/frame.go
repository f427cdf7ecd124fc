package protocol

import (
    "encoding/binary"
    "fmt"

    "netinf/pkg/object"
)

// Frame layout. All integers are big-endian.
//
//  request:  [len u32][method u8][id len u16][id][object body]
//  response: [len u32][method u8][object body]
//
// len counts the bytes that follow it. The object body is opaque here; its
// layout belongs to package object.
const (
    lenPrefix = 4
    idPrefix  = 2
    maxIDLen  = 1<<16 - 1

    // DefaultMaxFrameSize bounds a single frame (excluding the length prefix).
    DefaultMaxFrameSize = 16 << 20
)

// Codec encodes requests and responses into self-delimiting frames.
type Codec struct {
    objects  *object.Encoder
    maxFrame int
}

// NewCodec returns a Codec using objects for object bodies. maxFrame <= 0
// selects DefaultMaxFrameSize.
func NewCodec(objects *object.Encoder, maxFrame int) *Codec {
    if maxFrame <= 0 { maxFrame = DefaultMaxFrameSize }
    return &Codec{objects: objects, maxFrame: maxFrame}
}

// MaxFrameSize returns the largest accepted frame body.
func (c *Codec) MaxFrameSize() int { return c.maxFrame }

// EncodeRequest returns the complete request frame.
func (c *Codec) EncodeRequest(r Request) ([]byte, error) {
    if err := r.Validate(); err != nil { return nil, err }
    var body []byte
    if r.Object != nil {
        b, err := c.objects.Encode(*r.Object)
        if err != nil { return nil, fmt.Errorf("%w: encode object: %v", ErrInvalidRequest, err) }
        body = b
    }
    n := 1 + idPrefix + len(r.ID) + len(body)
    if n > c.maxFrame { return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrInvalidRequest, n, c.maxFrame) }
    out := make([]byte, lenPrefix+n)
    binary.BigEndian.PutUint32(out[0:4], uint32(n))
    out[4] = byte(r.Method)
    binary.BigEndian.PutUint16(out[5:7], uint16(len(r.ID)))
    copy(out[7:], r.ID)
    copy(out[7+len(r.ID):], body)
    return out, nil
}

// DecodeRequest parses a complete request frame.
func (c *Codec) DecodeRequest(frame []byte) (Request, error) {
    b, err := c.unwrap(frame)
    if err != nil { return Request{}, err }
    if len(b) < 1+idPrefix { return Request{}, fmt.Errorf("%w: short request", ErrMalformedMessage) }
    m := Method(b[0])
    if !m.Valid() { return Request{}, fmt.Errorf("%w: unknown method %d", ErrMalformedMessage, b[0]) }
    idLen := int(binary.BigEndian.Uint16(b[1:3]))
    if idLen == 0 || 3+idLen > len(b) { return Request{}, fmt.Errorf("%w: bad identifier length %d", ErrMalformedMessage, idLen) }
    req := Request{Method: m, ID: string(b[3 : 3+idLen])}
    body := b[3+idLen:]
    switch m {
    case MethodGet:
        if len(body) != 0 { return Request{}, fmt.Errorf("%w: GET with %d trailing bytes", ErrMalformedMessage, len(body)) }
    case MethodPut:
        o, err := c.objects.Decode(body)
        if err != nil { return Request{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err) }
        if o.ID() != req.ID { return Request{}, fmt.Errorf("%w: object id %q under request id %q", ErrMalformedMessage, o.ID(), req.ID) }
        req.Object = &o
    }
    return req, nil
}

// EncodeResponse returns the complete response frame.
func (c *Codec) EncodeResponse(r Response) ([]byte, error) {
    if err := r.Validate(); err != nil { return nil, err }
    body, err := c.objects.Encode(r.Object)
    if err != nil { return nil, fmt.Errorf("%w: encode object: %v", ErrInvalidRequest, err) }
    n := 1 + len(body)
    if n > c.maxFrame { return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrInvalidRequest, n, c.maxFrame) }
    out := make([]byte, lenPrefix+n)
    binary.BigEndian.PutUint32(out[0:4], uint32(n))
    out[4] = byte(r.Method)
    copy(out[5:], body)
    return out, nil
}

// DecodeResponse parses a complete response frame. When expect is a valid
// method, a differing echoed method fails with ErrProtocolMismatch.
func (c *Codec) DecodeResponse(frame []byte, expect Method) (Response, error) {
    b, err := c.unwrap(frame)
    if err != nil { return Response{}, err }
    if len(b) < 1 { return Response{}, fmt.Errorf("%w: empty response", ErrMalformedMessage) }
    m := Method(b[0])
    if !m.Valid() { return Response{}, fmt.Errorf("%w: unknown method %d", ErrMalformedMessage, b[0]) }
    if expect.Valid() && m != expect {
        return Response{}, fmt.Errorf("%w: sent %s, peer answered %s", ErrProtocolMismatch, expect, m)
    }
    o, err := c.objects.Decode(b[1:])
    if err != nil { return Response{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err) }
    return Response{Method: m, Object: o}, nil
}

// unwrap validates the length prefix and returns the frame body.
func (c *Codec) unwrap(frame []byte) ([]byte, error) {
    if len(frame) < lenPrefix { return nil, fmt.Errorf("%w: short frame", ErrMalformedMessage) }
    u := binary.BigEndian.Uint32(frame[0:4])
    if uint64(u) > uint64(c.maxFrame) { return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrMalformedMessage, u, c.maxFrame) }
    n := int(u)
    if len(frame)-lenPrefix != n { return nil, fmt.Errorf("%w: length prefix %d, have %d", ErrMalformedMessage, n, len(frame)-lenPrefix) }
    return frame[lenPrefix:], nil
}
