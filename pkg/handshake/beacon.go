// Package handshake builds and verifies the signed beacons nodes broadcast so
// neighbours can discover them and bind a reachable address to a stable identity.
package handshake

import (
    "crypto/ed25519"
    "errors"
    "fmt"
    "time"

    "netinf/pkg/crypto/sign"
    "netinf/pkg/transport"
)

// Beacon announces a node: who it is, what it calls itself, and where its
// convergence-layer listener can be reached.
type Beacon struct {
    Version   uint32 `cbor:"1,keyasint,omitempty"`
    Label     string `cbor:"2,keyasint,omitempty"`
    Addr      string `cbor:"3,keyasint"`
    Alg       string `cbor:"4,keyasint"`
    PubKey    []byte `cbor:"5,keyasint"`
    Timestamp int64  `cbor:"6,keyasint"`
    Sig       []byte `cbor:"7,keyasint"`
}

// BuildBeacon constructs a Beacon and signs it with the provided ed25519 private key.
func BuildBeacon(label, addr string, priv ed25519.PrivateKey) (Beacon, transport.PeerID, error) {
    if len(priv) != ed25519.PrivateKeySize { return Beacon{}, "", errors.New("bad private key length") }
    pub := priv.Public().(ed25519.PublicKey)
    b := Beacon{
        Version:   1,
        Label:     label,
        Addr:      addr,
        Alg:       "ed25519",
        PubKey:    append([]byte(nil), pub...),
        Timestamp: time.Now().UnixMilli(),
    }
    msg := sign.BeaconTranscript(b.Alg, b.PubKey, b.Timestamp, b.Label, b.Addr)
    sig, err := sign.SignEd25519(priv, msg)
    if err != nil { return Beacon{}, "", err }
    b.Sig = sig
    return b, transport.CanonicalPeerIDFromPubKey("ed25519", pub), nil
}

// VerifyBeacon verifies signature and basic freshness of a Beacon. Returns canonical PeerID.
func VerifyBeacon(b Beacon, maxSkew time.Duration) (transport.PeerID, error) {
    if b.Alg != "ed25519" { return "", fmt.Errorf("unsupported alg: %s", b.Alg) }
    if len(b.PubKey) != ed25519.PublicKeySize { return "", errors.New("bad pubkey length") }
    if len(b.Sig) != ed25519.SignatureSize { return "", errors.New("bad signature length") }
    if b.Addr == "" { return "", errors.New("beacon without address") }
    if maxSkew <= 0 { maxSkew = 5 * time.Minute }
    now := time.Now().UnixMilli()
    if dt := now - b.Timestamp; dt > maxSkew.Milliseconds() || dt < -maxSkew.Milliseconds() {
        return "", errors.New("beacon timestamp out of bounds")
    }
    if !sign.VerifyEd25519(ed25519.PublicKey(b.PubKey), sign.BeaconTranscript(b.Alg, b.PubKey, b.Timestamp, b.Label, b.Addr), b.Sig) {
        return "", errors.New("beacon signature invalid")
    }
    return transport.CanonicalPeerIDFromPubKey("ed25519", b.PubKey), nil
}
