package config

import (
    "fmt"
    "strings"
    "time"
)

// DiscoveryConfig controls neighbour discovery.
// Example YAML:
// discovery:
//   mode: static
//   window_ms: 2000
//   probe: true
//   peers:
//     - id: "pk:ed25519:AbCd..."
//       label: "phone-2"
//       address: "10.0.0.2:7420"
type DiscoveryConfig struct {
    // Mode: beacon, static or manual
    Mode      string       `mapstructure:"mode"`
    WindowMS  int          `mapstructure:"window_ms"`
    PeerTTLMS int          `mapstructure:"peer_ttl_ms"`
    // Probe makes the static scanner dial each peer every window
    Probe     bool         `mapstructure:"probe"`
    Beacon    BeaconConfig `mapstructure:"beacon"`
    Peers     []PeerConfig `mapstructure:"peers"`
}

// BeaconConfig configures UDP beacon discovery.
type BeaconConfig struct {
    Listen    string `mapstructure:"listen"`
    Broadcast string `mapstructure:"broadcast"`
    // Advertise is the transport address put in beacons; empty means the
    // bound listener address. A wildcard host is replaced by receivers.
    Advertise string `mapstructure:"advertise"`
    MaxSkewMS int    `mapstructure:"max_skew_ms"`
}

// PeerConfig is one statically known neighbour.
type PeerConfig struct {
    ID      string `mapstructure:"id"`
    Label   string `mapstructure:"label"`
    Address string `mapstructure:"address"`
}

func (d DiscoveryConfig) Window() time.Duration  { return time.Duration(d.WindowMS) * time.Millisecond }
func (d DiscoveryConfig) PeerTTL() time.Duration { return time.Duration(d.PeerTTLMS) * time.Millisecond }
func (b BeaconConfig) MaxSkew() time.Duration    { return time.Duration(b.MaxSkewMS) * time.Millisecond }

func (d *DiscoveryConfig) validate() error {
    d.Mode = strings.ToLower(strings.TrimSpace(d.Mode))
    if d.WindowMS <= 0 {
        d.WindowMS = 2000
    }
    if d.PeerTTLMS <= 0 {
        d.PeerTTLMS = 3 * d.WindowMS
    }
    switch d.Mode {
    case "static":
        for i, p := range d.Peers {
            if strings.TrimSpace(p.Address) == "" {
                return fmt.Errorf("discovery.peers[%d]: address is required", i)
            }
            if strings.TrimSpace(p.ID) == "" {
                d.Peers[i].ID = p.Address
            }
        }
    case "beacon":
        if strings.TrimSpace(d.Beacon.Listen) == "" {
            return fmt.Errorf("discovery.beacon.listen is required")
        }
    case "manual":
    default:
        return fmt.Errorf("invalid discovery.mode: %q", d.Mode)
    }
    return nil
}
