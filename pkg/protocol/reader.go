package protocol

import (
    "encoding/binary"
    "fmt"
    "time"
)

// Source delivers raw bytes as they arrive; chunk boundaries carry no meaning.
// transport.Session satisfies it.
type Source interface {
    Receive(deadline time.Time) ([]byte, error)
}

// FrameReader reassembles length-prefixed frames from an unstructured byte stream.
type FrameReader struct {
    src Source
    buf []byte
    max int
}

// NewFrameReader returns a reader pulling bytes from src. src may be nil when
// bytes are supplied with Feed.
func NewFrameReader(src Source, maxFrame int) *FrameReader {
    if maxFrame <= 0 { maxFrame = DefaultMaxFrameSize }
    return &FrameReader{src: src, max: maxFrame}
}

// Feed appends received bytes.
func (r *FrameReader) Feed(b []byte) { r.buf = append(r.buf, b...) }

// Buffered returns the number of bytes held but not yet returned as a frame.
func (r *FrameReader) Buffered() int { return len(r.buf) }

// Next returns the next complete frame (length prefix included) if one is buffered.
func (r *FrameReader) Next() ([]byte, bool, error) {
    if len(r.buf) < lenPrefix { return nil, false, nil }
    u := binary.BigEndian.Uint32(r.buf[0:4])
    if uint64(u) > uint64(r.max) { return nil, false, fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrMalformedMessage, u, r.max) }
    n := int(u)
    if len(r.buf) < lenPrefix+n { return nil, false, nil }
    frame := append([]byte(nil), r.buf[:lenPrefix+n]...)
    r.buf = r.buf[lenPrefix+n:]
    return frame, true, nil
}

// ReadFrame blocks until a complete frame is available or the source fails.
// Source errors are returned unchanged so transport failures keep their kind.
func (r *FrameReader) ReadFrame(deadline time.Time) ([]byte, error) {
    for {
        frame, ok, err := r.Next()
        if err != nil { return nil, err }
        if ok { return frame, nil }
        chunk, err := r.src.Receive(deadline)
        if err != nil { return nil, err }
        r.Feed(chunk)
    }
}
