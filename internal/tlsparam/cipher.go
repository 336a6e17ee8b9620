package tlsparam

import (
	"crypto/tls"
	"strings"
)

// Cipher is a named TLS cipher suite.
type Cipher uint16

// Unknown represents an unrecognized cipher suite name.
const Unknown Cipher = 0

var cipherByName = map[string]Cipher{
	"ECDHE-RSA-AES128-GCM-SHA256":   Cipher(tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256),
	"ECDHE-RSA-AES256-GCM-SHA384":   Cipher(tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384),
	"ECDHE-ECDSA-AES128-GCM-SHA256": Cipher(tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256),
	"ECDHE-ECDSA-AES256-GCM-SHA384": Cipher(tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384),
	"ECDHE-RSA-CHACHA20-POLY1305":   Cipher(tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305),
	"AES128-GCM-SHA256":             Cipher(tls.TLS_AES_128_GCM_SHA256),
	"AES256-GCM-SHA384":             Cipher(tls.TLS_AES_256_GCM_SHA384),
	"CHACHA20-POLY1305-SHA256":      Cipher(tls.TLS_CHACHA20_POLY1305_SHA256),
}

// ParseCipher resolves a cipher suite name, case-insensitively. Unknown
// names resolve to Unknown and are dropped by the caller rather than
// rejecting the whole TLS record.
func ParseCipher(name string) Cipher {
	if c, ok := cipherByName[strings.ToUpper(name)]; ok {
		return c
	}
	return Unknown
}

func (c Cipher) Uint16() uint16 { return uint16(c) }

// Check reports whether id names a cipher suite crypto/tls recognises,
// either as a TLS 1.0-1.2 suite or a TLS 1.3 suite.
func Check(id uint16) bool {
	for _, s := range tls.CipherSuites() {
		if s.ID == id {
			return true
		}
	}
	for _, s := range tls.InsecureCipherSuites() {
		if s.ID == id {
			return true
		}
	}
	switch id {
	case tls.TLS_AES_128_GCM_SHA256, tls.TLS_AES_256_GCM_SHA384, tls.TLS_CHACHA20_POLY1305_SHA256:
		return true
	}
	return false
}
