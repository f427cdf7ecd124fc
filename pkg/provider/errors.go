package provider

import (
    "errors"

    "netinf/pkg/protocol"
    "netinf/pkg/transport"
)

// Failures surfaced by Request. Transport failures may be retried against
// another peer; protocol failures should not be.
var (
    ErrPeerUnreachable  = transport.ErrPeerUnreachable
    ErrConnectTimeout   = transport.ErrConnectTimeout
    ErrLinkBroken       = transport.ErrLinkBroken
    ErrTimeout          = transport.ErrTimeout
    ErrMalformedMessage = protocol.ErrMalformedMessage
    ErrProtocolMismatch = protocol.ErrProtocolMismatch
)

// IsTransportFailure reports link-level failures.
func IsTransportFailure(err error) bool {
    return errors.Is(err, ErrPeerUnreachable) || errors.Is(err, ErrConnectTimeout) ||
        errors.Is(err, ErrLinkBroken) || errors.Is(err, ErrTimeout)
}

// IsProtocolFailure reports failures caused by what the peer sent.
func IsProtocolFailure(err error) bool {
    return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrProtocolMismatch)
}
