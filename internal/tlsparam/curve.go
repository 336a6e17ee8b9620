package tlsparam

import (
	"crypto/tls"
	"strings"
)

// Curve is a named elliptic curve used by ECDHE cipher suites.
type Curve tls.CurveID

const CurveUnknown Curve = 0

var curveByName = map[string]Curve{
	"X25519": Curve(tls.X25519),
	"P256":   Curve(tls.CurveP256),
	"P384":   Curve(tls.CurveP384),
	"P521":   Curve(tls.CurveP521),
}

// ParseCurve resolves a curve name, case-insensitively.
func ParseCurve(name string) Curve {
	if c, ok := curveByName[strings.ToUpper(name)]; ok {
		return c
	}
	return CurveUnknown
}

func (c Curve) ID() tls.CurveID { return tls.CurveID(c) }
