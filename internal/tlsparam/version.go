// Package tlsparam resolves the common TLS parameters a TLS config record
// names by string — protocol versions, cipher suites, key-exchange groups —
// into the crypto/tls values a server or client config needs. Modelled on
// nabbar-golib's certificates/{tlsversion,cipher,curves} sub-packages, pared
// down to what this gateway's TLS config record actually carries.
package tlsparam

import (
	"crypto/tls"
	"strings"
)

// Version is a named TLS protocol version.
type Version uint16

const (
	VersionUnknown Version = 0
	VersionTLS10   Version = Version(tls.VersionTLS10)
	VersionTLS11   Version = Version(tls.VersionTLS11)
	VersionTLS12   Version = Version(tls.VersionTLS12)
	VersionTLS13   Version = Version(tls.VersionTLS13)
)

// ParseVersion resolves a name ("1.0".."1.3", "TLS1.0".."TLS1.3") to a
// Version, case-insensitively. Unknown names resolve to VersionUnknown.
func ParseVersion(name string) Version {
	n := strings.ToLower(strings.TrimPrefix(strings.ToLower(name), "tls"))
	switch n {
	case "1.0", "10":
		return VersionTLS10
	case "1.1", "11":
		return VersionTLS11
	case "1.2", "12":
		return VersionTLS12
	case "1.3", "13":
		return VersionTLS13
	default:
		return VersionUnknown
	}
}

func (v Version) Uint16() uint16 { return uint16(v) }
