// Package identity loads the node key whose public half names the node on
// the network.
package identity

import (
    "crypto/ed25519"
    "crypto/rand"
    "encoding/base64"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"

    "netinf/pkg/config"
    "netinf/pkg/transport"
)

// LoadOrGenEd25519 loads an ed25519 private key from config or generates a new one.
// A generated key is written to PrivateKeyFile when that is set, so the node
// keeps its peer id across restarts.
// Returns the private key and the canonical peer id (pk:ed25519:<b64(pub)>).
func LoadOrGenEd25519(c config.IdentityConfig) (ed25519.PrivateKey, transport.PeerID, error) {
    if alg := strings.ToLower(strings.TrimSpace(c.Alg)); alg != "" && alg != "ed25519" {
        return nil, "", fmt.Errorf("unsupported identity.alg: %q", c.Alg)
    }
    var pk ed25519.PrivateKey
    // From base64
    if s := strings.TrimSpace(c.PrivateKey); s != "" {
        b, err := base64.RawURLEncoding.DecodeString(s)
        if err != nil { return nil, "", fmt.Errorf("identity.private_key: %w", err) }
        pk = ed25519.PrivateKey(b)
    }
    // From file
    if pk == nil && strings.TrimSpace(c.PrivateKeyFile) != "" {
        if b, err := os.ReadFile(c.PrivateKeyFile); err == nil {
            txt := strings.TrimSpace(string(b))
            if db, err := base64.RawURLEncoding.DecodeString(txt); err == nil {
                pk = ed25519.PrivateKey(db)
            } else {
                // assume raw bytes
                pk = ed25519.PrivateKey(b)
            }
        } else if !os.IsNotExist(err) {
            return nil, "", fmt.Errorf("identity.private_key_file: %w", err)
        }
    }
    if pk != nil && len(pk) != ed25519.PrivateKeySize {
        return nil, "", fmt.Errorf("identity key has %d bytes, want %d", len(pk), ed25519.PrivateKeySize)
    }
    // Generate
    if pk == nil {
        _, gen, err := ed25519.GenerateKey(rand.Reader)
        if err != nil { return nil, "", err }
        pk = gen
        if f := strings.TrimSpace(c.PrivateKeyFile); f != "" {
            if err := save(f, gen); err != nil { return nil, "", err }
            zap.L().Info("generated new ed25519 identity", zap.String("file", f))
        } else {
            zap.L().Info("generated ephemeral ed25519 identity (set identity.private_key_file to persist)",
                zap.String("pub_b64", base64.RawURLEncoding.EncodeToString(gen.Public().(ed25519.PublicKey))))
        }
    }
    pub := pk.Public().(ed25519.PublicKey)
    pid := transport.CanonicalPeerIDFromPubKey("ed25519", pub)
    return pk, pid, nil
}

func save(path string, pk ed25519.PrivateKey) error {
    if dir := filepath.Dir(path); dir != "" {
        if err := os.MkdirAll(dir, 0o700); err != nil { return err }
    }
    return os.WriteFile(path, []byte(base64.RawURLEncoding.EncodeToString(pk)+"\n"), 0o600)
}
