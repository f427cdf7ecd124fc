package sign

import (
    "encoding/base64"
    "strconv"
    "strings"
)

// BeaconTranscript builds the canonical transcript used for signing/verifying
// discovery beacons. Format:
//   netinf:beacon|v=1|alg=<alg>|ts=<unix_ms>|pub=<b64url>|label=<label>|addr=<addr>
func BeaconTranscript(alg string, pub []byte, tsUnixMS int64, label, addr string) []byte {
    b64 := base64.RawURLEncoding
    var sb strings.Builder
    sb.Grow(96 + len(label) + len(addr))
    sb.WriteString("netinf:beacon|v=1|alg=")
    sb.WriteString(strings.ToLower(strings.TrimSpace(alg)))
    sb.WriteString("|ts=")
    sb.WriteString(strconv.FormatInt(tsUnixMS, 10))
    sb.WriteString("|pub=")
    sb.WriteString(b64.EncodeToString(pub))
    sb.WriteString("|label=")
    sb.WriteString(label)
    sb.WriteString("|addr=")
    sb.WriteString(addr)
    return []byte(sb.String())
}
