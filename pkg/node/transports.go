package node

import (
    "netinf/pkg/transport"
    "netinf/pkg/transport/mem"
    tquic "netinf/pkg/transport/quic"
    ttcp "netinf/pkg/transport/tcp"
)

// NewByKind constructs a Transport by string kind.
func NewByKind(kind string) (transport.Transport, error) {
    switch transport.ParseKind(kind) {
    case transport.KindTCP:
        return ttcp.New(), nil
    case transport.KindQUIC:
        return tquic.New(), nil
    case transport.KindMem:
        return mem.New(), nil
    default:
        return nil, transport.ErrUnknownKind(kind)
    }
}
