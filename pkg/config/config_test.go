package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func writeFile(t *testing.T, dir, body string) string {
    t.Helper()
    p := filepath.Join(dir, "netinf.yaml")
    if err := os.WriteFile(p, []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
    return p
}

func TestDefaultsValidate(t *testing.T) {
    c := Default()
    if err := c.validate(); err != nil { t.Fatalf("defaults invalid: %v", err) }
    if c.Provider.Timeout() != 10*time.Second || c.Discovery.Window() != 2*time.Second { t.Fatalf("bad durations") }
}

func TestLoadFileAndEnv(t *testing.T) {
    p := writeFile(t, t.TempDir(), `
label: phone-1
transport:
  kind: QUIC
  listen: "127.0.0.1:9000"
discovery:
  mode: static
  window_ms: 500
  peers:
    - label: phone-2
      address: "127.0.0.1:9001"
provider:
  timeout_ms: 3000
  connect_share: 0.25
  object_format: msgpack
`)
    t.Setenv("NETINF_LOG_LEVEL", "debug")
    c, err := Load(p)
    if err != nil { t.Fatalf("load: %v", err) }
    if c.Label != "phone-1" || c.Transport.Kind != "quic" || c.Transport.Listen != "127.0.0.1:9000" { t.Fatalf("transport: %+v", c.Transport) }
    if c.Log.Level != "debug" { t.Fatalf("env override ignored: %q", c.Log.Level) }
    if len(c.Discovery.Peers) != 1 || c.Discovery.Peers[0].ID != "127.0.0.1:9001" { t.Fatalf("peers: %+v", c.Discovery.Peers) }
    if c.Discovery.PeerTTL() != 6*time.Second { t.Fatalf("ttl: %v", c.Discovery.PeerTTL()) }
    if c.Provider.ConnectShare != 0.25 || c.Provider.ReadTimeoutMS != 10000 || c.Provider.ObjectFormat != "msgpack" { t.Fatalf("provider: %+v", c.Provider) }
}

func TestLoadRejectsInvalid(t *testing.T) {
    cases := []string{
        "log:\n  level: loud\n",
        "transport:\n  kind: carrier-pigeon\n",
        "discovery:\n  mode: psychic\n",
        "discovery:\n  mode: static\n  peers:\n    - id: x\n",
        "provider:\n  connect_share: 1.5\n",
        "provider:\n  object_format: xml\n",
    }
    for _, body := range cases {
        if _, err := Load(writeFile(t, t.TempDir(), body)); err == nil { t.Fatalf("accepted %q", body) }
    }
}

func TestWatchAppliesRevisions(t *testing.T) {
    dir := t.TempDir()
    p := writeFile(t, dir, "log:\n  level: info\n")
    got := make(chan *Config, 4)
    c, err := Watch(p, func(c *Config) { got <- c })
    if err != nil { t.Fatalf("watch: %v", err) }
    if c.Log.Level != "info" { t.Fatalf("initial level %q", c.Log.Level) }
    writeFile(t, dir, "log:\n  level: debug\n")
    timeout := time.After(5 * time.Second)
    for {
        select {
        case c := <-got:
            if c.Log.Level == "debug" { return }
        case <-timeout:
            t.Fatalf("revision never applied")
        }
    }
}
