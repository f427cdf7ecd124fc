package object

import (
    "encoding/base64"
    "errors"
    "fmt"
    "strings"

    "google.golang.org/protobuf/types/known/structpb"

    "netinf/pkg/protocol/codec"
)

// ErrBadBody is returned when an object body cannot be decoded.
var ErrBadBody = errors.New("object: malformed body")

// Format is a compact on-wire indicator of object body encoding.
// It is carried as the first byte of every encoded object.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
    FormatMsgpack
)

func (f Format) String() string {
    switch f {
    case FormatJSON:
        return codec.ContentJSON
    case FormatCBOR:
        return codec.ContentCBOR
    case FormatProto:
        return codec.ContentProto
    case FormatMsgpack:
        return codec.ContentMsgpack
    default:
        return codec.ContentUnknown
    }
}

// ParseFormat maps a config name (json, cbor, proto, msgpack) to a Format.
func ParseFormat(s string) (Format, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "json":
        return FormatJSON, nil
    case "", "cbor":
        return FormatCBOR, nil
    case "proto", "protobuf":
        return FormatProto, nil
    case "msgpack":
        return FormatMsgpack, nil
    default:
        return FormatUnknown, fmt.Errorf("unknown object format: %q", s)
    }
}

// CodecFor returns a codec instance for a given format.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    if r != nil {
        if c := r.Get(f.String()); c != nil { return c, nil }
    }
    switch f {
    case FormatJSON:
        return codec.JSON(), nil
    case FormatCBOR:
        return codec.CBOR()
    case FormatProto:
        return codec.Proto(), nil
    case FormatMsgpack:
        return codec.Msgpack(), nil
    default:
        return nil, fmt.Errorf("unknown format: %d", f)
    }
}

// document is the serialized shape of an Object for the map-based codecs.
type document struct {
    ID          string            `json:"id" cbor:"1,keyasint" msgpack:"id"`
    ContentType string            `json:"content_type,omitempty" cbor:"2,keyasint,omitempty" msgpack:"content_type"`
    Metadata    map[string]string `json:"metadata,omitempty" cbor:"3,keyasint,omitempty" msgpack:"metadata"`
    Payload     []byte            `json:"payload,omitempty" cbor:"4,keyasint,omitempty" msgpack:"payload"`
}

// Encoder turns objects into format-prefixed bodies and back.
type Encoder struct {
    reg    *codec.Registry
    format Format
}

// NewEncoder returns an Encoder writing bodies in format f. Decoding honours
// whatever format byte the body carries.
func NewEncoder(reg *codec.Registry, f Format) *Encoder {
    if f == FormatUnknown { f = FormatCBOR }
    return &Encoder{reg: reg, format: f}
}

// Format returns the format used by Encode.
func (e *Encoder) Format() Format { return e.format }

// Encode serializes o and prefixes the body with a single format byte.
func (e *Encoder) Encode(o Object) ([]byte, error) {
    c, err := CodecFor(e.reg, e.format)
    if err != nil { return nil, err }
    var v any
    if e.format == FormatProto {
        s, err := toStruct(o)
        if err != nil { return nil, err }
        v = s
    } else {
        v = document{ID: o.id, ContentType: o.contentType, Metadata: o.meta, Payload: o.payload}
    }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    out := make([]byte, 1+len(b))
    out[0] = byte(e.format)
    copy(out[1:], b)
    return out, nil
}

// Decode parses a body produced by Encode (from any peer's format).
func (e *Encoder) Decode(body []byte) (Object, error) {
    if len(body) == 0 { return Object{}, fmt.Errorf("%w: empty body", ErrBadBody) }
    f := Format(body[0])
    c, err := CodecFor(e.reg, f)
    if err != nil { return Object{}, fmt.Errorf("%w: %v", ErrBadBody, err) }
    if f == FormatProto {
        var s structpb.Struct
        if err := c.Unmarshal(body[1:], &s); err != nil { return Object{}, fmt.Errorf("%w: %v", ErrBadBody, err) }
        return fromStruct(&s)
    }
    var d document
    if err := c.Unmarshal(body[1:], &d); err != nil { return Object{}, fmt.Errorf("%w: %v", ErrBadBody, err) }
    if d.ID == "" { return Object{}, fmt.Errorf("%w: missing id", ErrBadBody) }
    return New(d.ID, d.Payload, WithContentType(d.ContentType), WithMetadata(d.Metadata)), nil
}

func toStruct(o Object) (*structpb.Struct, error) {
    meta := make(map[string]any, len(o.meta))
    for k, v := range o.meta { meta[k] = v }
    return structpb.NewStruct(map[string]any{
        "id":           o.id,
        "content_type": o.contentType,
        "metadata":     meta,
        "payload":      base64.StdEncoding.EncodeToString(o.payload),
    })
}

func fromStruct(s *structpb.Struct) (Object, error) {
    f := s.GetFields()
    id := f["id"].GetStringValue()
    if id == "" { return Object{}, fmt.Errorf("%w: missing id", ErrBadBody) }
    payload, err := base64.StdEncoding.DecodeString(f["payload"].GetStringValue())
    if err != nil { return Object{}, fmt.Errorf("%w: payload: %v", ErrBadBody, err) }
    var meta map[string]string
    if mf := f["metadata"].GetStructValue().GetFields(); len(mf) > 0 {
        meta = make(map[string]string, len(mf))
        for k, v := range mf { meta[k] = v.GetStringValue() }
    }
    return New(id, payload, WithContentType(f["content_type"].GetStringValue()), WithMetadata(meta)), nil
}
