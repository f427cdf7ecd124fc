// Package config provides YAML-based configuration loading for netinf nodes.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // NodeID overrides the identity-derived peer id when set
    NodeID string `mapstructure:"node_id"`

    // Label is the human-readable name advertised to neighbours
    Label string `mapstructure:"label"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Identity controls the node key that signs discovery beacons.
    Identity IdentityConfig `mapstructure:"identity"`

    // Transport selects the convergence-layer link and where to listen
    Transport TransportConfig `mapstructure:"transport"`

    // Discovery controls how neighbours are found
    Discovery DiscoveryConfig `mapstructure:"discovery"`

    // Provider tunes request/response exchanges
    Provider ProviderConfig `mapstructure:"provider"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        Label: "netinf-node",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stderr"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/netinf.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Identity:  IdentityConfig{Alg: "ed25519"},
        Transport: TransportConfig{Kind: "tcp", Listen: ":7420"},
        Discovery: DiscoveryConfig{
            Mode:      "beacon",
            WindowMS:  2000,
            PeerTTLMS: 6000,
            Beacon:    BeaconConfig{Listen: ":7421", Broadcast: "255.255.255.255:7421", MaxSkewMS: 300000},
        },
        Provider: ProviderConfig{
            TimeoutMS:     10000,
            ConnectShare:  0.5,
            ReadTimeoutMS: 10000,
            MaxFrameBytes: 16 << 20,
            ObjectFormat:  "cbor",
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix NETINF and `.`/`-` are replaced with `_`.
// Example: NETINF_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    v, err := open(path)
    if err != nil { return nil, err }
    return decode(v)
}

func open(path string) (*viper.Viper, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("NETINF")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("node_id", cfg.NodeID)
    v.SetDefault("label", cfg.Label)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    // Identity defaults
    v.SetDefault("identity.alg", cfg.Identity.Alg)
    v.SetDefault("identity.private_key", cfg.Identity.PrivateKey)
    v.SetDefault("identity.private_key_file", cfg.Identity.PrivateKeyFile)
    // Transport defaults
    v.SetDefault("transport.kind", cfg.Transport.Kind)
    v.SetDefault("transport.listen", cfg.Transport.Listen)
    // Discovery defaults
    v.SetDefault("discovery.mode", cfg.Discovery.Mode)
    v.SetDefault("discovery.window_ms", cfg.Discovery.WindowMS)
    v.SetDefault("discovery.peer_ttl_ms", cfg.Discovery.PeerTTLMS)
    v.SetDefault("discovery.probe", cfg.Discovery.Probe)
    v.SetDefault("discovery.beacon.listen", cfg.Discovery.Beacon.Listen)
    v.SetDefault("discovery.beacon.broadcast", cfg.Discovery.Beacon.Broadcast)
    v.SetDefault("discovery.beacon.advertise", cfg.Discovery.Beacon.Advertise)
    v.SetDefault("discovery.beacon.max_skew_ms", cfg.Discovery.Beacon.MaxSkewMS)
    // Provider defaults
    v.SetDefault("provider.timeout_ms", cfg.Provider.TimeoutMS)
    v.SetDefault("provider.connect_share", cfg.Provider.ConnectShare)
    v.SetDefault("provider.read_timeout_ms", cfg.Provider.ReadTimeoutMS)
    v.SetDefault("provider.max_frame_bytes", cfg.Provider.MaxFrameBytes)
    v.SetDefault("provider.object_format", cfg.Provider.ObjectFormat)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("NETINF_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `netinf`
        v.SetConfigName("netinf")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".netinf"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }
    return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
    cfg := Default()
    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }
    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stderr"}
    }
    if err := c.Transport.validate(); err != nil {
        return err
    }
    if err := c.Discovery.validate(); err != nil {
        return err
    }
    return c.Provider.validate()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
