package transport

import "strings"

// ParseKind maps a config name to a Kind.
func ParseKind(s string) Kind {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "tcp", "rfcomm":
        return KindTCP
    case "quic":
        return KindQUIC
    case "mem", "inproc":
        return KindMem
    default:
        return KindUnknown
    }
}

// ErrUnknownKind is returned for transport kinds without an implementation.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
