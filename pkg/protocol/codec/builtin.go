package codec

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io"

    cbor "github.com/fxamacker/cbor/v2"
    "google.golang.org/protobuf/proto"
    msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

// Bodies come from untrusted peers; decoders bound nesting and container sizes.
const (
    maxNesting    = 16
    maxContainers = 4096
)

var errTrailing = errors.New("trailing data after value")

type jsonCodec struct{}

// JSON returns a JSON codec (RFC 8259) that rejects trailing data.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string           { return ContentJSON }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
    dec := json.NewDecoder(bytes.NewReader(data))
    if err := dec.Decode(v); err != nil { return err }
    if _, err := dec.Token(); err != io.EOF { return errTrailing }
    return nil
}

type cborCodec struct {
    enc cbor.EncMode
    dec cbor.DecMode
}

// CBOR returns a core-deterministic CBOR codec (RFC 8949 §4.2.1) whose
// decoder rejects duplicate map keys and indefinite-length items.
func CBOR() (Codec, error) {
    em, err := cbor.CoreDetEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{
        DupMapKey:        cbor.DupMapKeyEnforcedAPF,
        IndefLength:      cbor.IndefLengthForbidden,
        MaxNestedLevels:  maxNesting,
        MaxArrayElements: maxContainers,
        MaxMapPairs:      maxContainers,
    }.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string                { return ContentCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

type msgpackCodec struct{}

// Msgpack returns a MessagePack codec.
func Msgpack() Codec { return msgpackCodec{} }

func (msgpackCodec) ContentType() string                { return ContentMsgpack }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type protoCodec struct {
    mo proto.MarshalOptions
    uo proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling. Only
// proto.Message values are accepted.
func Proto() Codec {
    return protoCodec{
        mo: proto.MarshalOptions{Deterministic: true},
        uo: proto.UnmarshalOptions{DiscardUnknown: true, RecursionLimit: maxNesting * 4},
    }
}

func (p protoCodec) ContentType() string { return ContentProto }

func (p protoCodec) Marshal(v any) ([]byte, error) {
    msg, ok := v.(proto.Message)
    if !ok { return nil, fmt.Errorf("protobuf: %T is not a proto.Message", v) }
    return p.mo.Marshal(msg)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
    msg, ok := v.(proto.Message)
    if !ok { return fmt.Errorf("protobuf: %T is not a proto.Message", v) }
    return p.uo.Unmarshal(data, msg)
}
