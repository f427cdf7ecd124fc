// Package object holds the information object: the named, immutable data unit
// that nodes publish and retrieve. The provider transports objects without
// interpreting them beyond their identifier.
package object

import (
    "bytes"
    "sort"
)

// Object is an immutable information object. The zero value is "no object".
type Object struct {
    id          string
    contentType string
    payload     []byte
    meta        map[string]string
}

// Option customizes an Object at construction time.
type Option func(*Object)

// WithContentType sets the payload content type hint.
func WithContentType(ct string) Option { return func(o *Object) { o.contentType = ct } }

// WithMetadata attaches metadata; the map is copied.
func WithMetadata(meta map[string]string) Option {
    return func(o *Object) { o.meta = copyMeta(meta) }
}

// New constructs an Object. The payload is copied, so callers may reuse their buffer.
func New(id string, payload []byte, opts ...Option) Object {
    o := Object{id: id, payload: append([]byte(nil), payload...)}
    for _, opt := range opts { opt(&o) }
    return o
}

func (o Object) ID() string          { return o.id }
func (o Object) ContentType() string { return o.contentType }
func (o Object) Len() int            { return len(o.payload) }

// Payload returns a copy of the payload.
func (o Object) Payload() []byte { return append([]byte(nil), o.payload...) }

// Metadata returns a copy of the metadata map.
func (o Object) Metadata() map[string]string { return copyMeta(o.meta) }

// Meta returns a single metadata value.
func (o Object) Meta(key string) (string, bool) {
    v, ok := o.meta[key]
    return v, ok
}

// MetaKeys returns metadata keys in sorted order.
func (o Object) MetaKeys() []string {
    keys := make([]string, 0, len(o.meta))
    for k := range o.meta { keys = append(keys, k) }
    sort.Strings(keys)
    return keys
}

// IsZero reports whether o carries no identifier.
func (o Object) IsZero() bool { return o.id == "" }

// Equal compares identity, content type, payload and metadata. Nil and empty
// payloads/metadata are considered equal.
func Equal(a, b Object) bool {
    if a.id != b.id || a.contentType != b.contentType { return false }
    if !bytes.Equal(a.payload, b.payload) { return false }
    if len(a.meta) != len(b.meta) { return false }
    for k, v := range a.meta {
        if bv, ok := b.meta[k]; !ok || bv != v { return false }
    }
    return true
}

func copyMeta(in map[string]string) map[string]string {
    if len(in) == 0 { return nil }
    out := make(map[string]string, len(in))
    for k, v := range in { out[k] = v }
    return out
}
