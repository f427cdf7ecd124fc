package config

import (
    "fmt"
    "strings"
)

// TransportConfig selects the link the node serves and dials on.
// Example YAML:
// transport:
//   kind: quic
//   listen: ":7420"
//
// kind is one of tcp (alias rfcomm), quic or mem.
type TransportConfig struct {
    Kind   string `mapstructure:"kind"`
    Listen string `mapstructure:"listen"`
}

func (t *TransportConfig) validate() error {
    t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
    switch t.Kind {
    case "tcp", "rfcomm", "quic", "mem", "inproc":
    default:
        return fmt.Errorf("invalid transport.kind: %q", t.Kind)
    }
    if strings.TrimSpace(t.Listen) == "" {
        return fmt.Errorf("transport.listen is required")
    }
    return nil
}
