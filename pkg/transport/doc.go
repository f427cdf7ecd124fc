// Package transport defines the link abstraction the provider tunnels its
// exchanges over, plus tcp, quic and in-memory implementations that stand in
// for a device-to-device radio link.
//
// Key concepts:
// - Transport: dials/listens for Sessions of a specific Kind
// - Session: an unframed byte stream to one peer with explicit Close
// - Manager: tracks open sessions per peer so leaked links are observable
package transport
