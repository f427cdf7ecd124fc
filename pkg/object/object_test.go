package object

import (
    "bytes"
    "errors"
    "testing"

    "netinf/pkg/protocol/codec"
)

func TestObjectIsImmutable(t *testing.T) {
    buf := []byte("hello")
    meta := map[string]string{"k": "v"}
    o := New("doc-1", buf, WithMetadata(meta))
    buf[0] = 'X'
    meta["k"] = "changed"
    if !bytes.Equal(o.Payload(), []byte("hello")) { t.Fatalf("payload aliased caller buffer") }
    if v, _ := o.Meta("k"); v != "v" { t.Fatalf("metadata aliased caller map") }
    p := o.Payload()
    p[0] = 'Y'
    if !bytes.Equal(o.Payload(), []byte("hello")) { t.Fatalf("payload accessor leaked internal buffer") }
}

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
    a := New("x", nil)
    b := New("x", []byte{}, WithMetadata(map[string]string{}))
    if !Equal(a, b) { t.Fatalf("expected equal") }
    if Equal(a, New("y", nil)) { t.Fatalf("different ids compared equal") }
}

func TestEncoderRoundtripAllFormats(t *testing.T) {
    reg, err := codec.DefaultRegistry()
    if err != nil { t.Fatalf("registry: %v", err) }
    in := New("ni:///sha-256;abc", []byte{0, 1, 2, 0xff}, WithContentType("text/plain"), WithMetadata(map[string]string{"owner": "node-a"}))
    for _, f := range []Format{FormatJSON, FormatCBOR, FormatProto, FormatMsgpack} {
        enc := NewEncoder(reg, f)
        b, err := enc.Encode(in)
        if err != nil { t.Fatalf("%s encode: %v", f, err) }
        if Format(b[0]) != f { t.Fatalf("%s: format byte = %d", f, b[0]) }
        // any encoder decodes any format
        out, err := NewEncoder(reg, FormatCBOR).Decode(b)
        if err != nil { t.Fatalf("%s decode: %v", f, err) }
        if !Equal(in, out) { t.Fatalf("%s roundtrip mismatch: %#v", f, out) }
    }
}

func TestDecodeRejectsGarbage(t *testing.T) {
    enc := NewEncoder(codec.NewRegistry(), FormatJSON)
    for _, body := range [][]byte{nil, {byte(FormatUnknown)}, {byte(FormatJSON), '{'}, {0x7f, 1, 2}} {
        if _, err := enc.Decode(body); !errors.Is(err, ErrBadBody) {
            t.Fatalf("body %v: want ErrBadBody, got %v", body, err)
        }
    }
}

func TestParseFormat(t *testing.T) {
    cases := map[string]Format{"json": FormatJSON, "": FormatCBOR, "CBOR": FormatCBOR, "protobuf": FormatProto, "msgpack": FormatMsgpack}
    for in, want := range cases {
        got, err := ParseFormat(in)
        if err != nil || got != want { t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err) }
    }
    if _, err := ParseFormat("xml"); err == nil { t.Fatalf("expected error") }
}
