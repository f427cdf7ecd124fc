package config

import (
    "fmt"
    "strings"
    "time"
)

// ProviderConfig tunes GET/PUT exchanges.
type ProviderConfig struct {
    // TimeoutMS is the default overall budget of one request
    TimeoutMS int `mapstructure:"timeout_ms"`
    // ConnectShare is the fraction of the remaining budget a connect may use
    ConnectShare float64 `mapstructure:"connect_share"`
    // ReadTimeoutMS bounds how long the responder waits for a request frame
    ReadTimeoutMS int `mapstructure:"read_timeout_ms"`
    MaxFrameBytes int `mapstructure:"max_frame_bytes"`
    // ObjectFormat: cbor, json, msgpack or proto
    ObjectFormat string `mapstructure:"object_format"`
}

func (p ProviderConfig) Timeout() time.Duration     { return time.Duration(p.TimeoutMS) * time.Millisecond }
func (p ProviderConfig) ReadTimeout() time.Duration { return time.Duration(p.ReadTimeoutMS) * time.Millisecond }

func (p *ProviderConfig) validate() error {
    if p.TimeoutMS <= 0 {
        return fmt.Errorf("invalid provider.timeout_ms: %d", p.TimeoutMS)
    }
    if p.ConnectShare <= 0 || p.ConnectShare > 1 {
        return fmt.Errorf("invalid provider.connect_share: %v (want 0 < share <= 1)", p.ConnectShare)
    }
    if p.ReadTimeoutMS <= 0 {
        p.ReadTimeoutMS = p.TimeoutMS
    }
    switch strings.ToLower(strings.TrimSpace(p.ObjectFormat)) {
    case "", "cbor", "json", "msgpack", "proto", "protobuf":
    default:
        return fmt.Errorf("invalid provider.object_format: %q", p.ObjectFormat)
    }
    return nil
}
