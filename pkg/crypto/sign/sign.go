// Package sign holds the ed25519 signing helpers and the canonical
// transcripts nodes sign.
package sign

import (
    "crypto/ed25519"
    "fmt"
)

// SignEd25519 signs data using ed25519.
func SignEd25519(priv ed25519.PrivateKey, data []byte) ([]byte, error) {
    if len(priv) != ed25519.PrivateKeySize {
        return nil, fmt.Errorf("sign: private key has %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
    }
    return ed25519.Sign(priv, data), nil
}

// VerifyEd25519 verifies ed25519 signature. Malformed keys never verify.
func VerifyEd25519(pub ed25519.PublicKey, data, sig []byte) bool {
    if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize { return false }
    return ed25519.Verify(pub, data, sig)
}
