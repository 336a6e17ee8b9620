package config

import (
	"github.com/sirupsen/logrus"
)

// Listener is the immutable-after-publish snapshot for one bound TCP
// endpoint, mirrored from original_source's configs::listener::ListenerConfig.
type Listener struct {
	Name          string
	Listen        string
	Preprocessors []Preprocessor
	Buffer        int64
	Protocols     []Protocol
}

// Preprocessor is one entry of a listener's ordered preprocessor list
// (currently only "tls" is recognised, naming a TLS config by value).
type Preprocessor struct {
	Name  string
	Value string
}

// Protocol is the tagged union over listener protocol configurations. The
// spec names only the HTTP variant as meaningful; ProtocolKindGRPC is kept
// as a recognised-but-unimplemented tag the way original_source's
// ListenerProtocolConfig::GrpcListener is a bare variant with no payload.
type ProtocolKind int

const (
	ProtocolHTTP ProtocolKind = iota
	ProtocolGRPC
)

type Protocol struct {
	Kind ProtocolKind
	HTTP *HTTPProtocol
}

// HTTPProtocol is one HTTP protocol stanza within a listener.
type HTTPProtocol struct {
	Name         string
	SNI          []Matcher
	Buffer       int64
	VirtualHosts []VirtualHost
}

// VirtualHost selects by Host header within an HTTP protocol.
type VirtualHost struct {
	Name      string
	HostNames []Matcher
	Routes    []Route
}

// Route is an ordered set of path-match clauses and an action queue.
type Route struct {
	Name        string
	PathMatches []PathMatch
	Actions     []Action
}

// PathMatchKind tags which clause variant a PathMatch holds.
type PathMatchKind int

const (
	PathMatchRegex PathMatchKind = iota
	PathMatchPrefix
	PathMatchMethod
	PathMatchHeader
)

// HeaderClause is one (key, value) pair of a header-match clause. Exact
// pairs compare the key literally; regex pairs compare the key
// case-insensitively (mirroring original_source's Key::String vs
// Key::NoCaseString split) and match the value against a compiled regex.
type HeaderClause struct {
	Key       string
	NoCaseKey bool
	Value     Matcher
}

// PathMatch is one clause of a route's match expression.
type PathMatch struct {
	Name    string
	Kind    PathMatchKind
	Regex   []Matcher
	Prefix  []string
	Methods []string
	Headers []HeaderClause
}

// ActionKind tags which action variant an Action holds.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionBackend
)

// Action is the currently-meaningful Backend(cluster-name) variant, or None.
type Action struct {
	Kind    ActionKind
	Backend string
}

// ParseListener decodes one listener record. It returns ok=false and logs a
// debug line (never an error — the service continues with prior state for
// this name) when a required key is missing, mirroring
// ListenerConfig::new's Option<Self> return in original_source.
func ParseListener(doc interface{}, log *logrus.Logger) (Listener, bool) {
	m, ok := asMap(doc)
	if !ok {
		return Listener{}, false
	}
	name, ok := asString(field(m, keyName))
	if !ok {
		log.Debug("listener record missing name, skipping")
		return Listener{}, false
	}
	log.Debugf("loading listener: %s", name)
	listen, ok := asString(field(m, keyListen))
	if !ok {
		log.Debugf("listener %s missing listen address, skipping", name)
		return Listener{}, false
	}
	l := Listener{
		Name:   name,
		Listen: listen,
		Buffer: int64Or(m, keyBuffer, defaultBuffer),
	}
	if pps, ok := asSlice(field(m, keyPreprocessors)); ok {
		for _, p := range pps {
			pm, ok := asMap(p)
			if !ok {
				continue
			}
			pname, _ := asString(field(pm, keyName))
			pcfg, _ := asString(field(pm, keyConfig))
			if pname != "" {
				l.Preprocessors = append(l.Preprocessors, Preprocessor{Name: pname, Value: pcfg})
			}
		}
	}
	if protos, ok := asSlice(field(m, keyProtocols)); ok {
		for _, p := range protos {
			pm, ok := asMap(p)
			if !ok {
				continue
			}
			if stringOr(pm, keyEngine, "") != engineHTTP {
				continue
			}
			if hp, ok := parseHTTPProtocol(pm, log); ok {
				l.Protocols = append(l.Protocols, Protocol{Kind: ProtocolHTTP, HTTP: &hp})
			}
		}
	}
	log.Debugf("loading listener: %s done", name)
	return l, true
}

func parseHTTPProtocol(m map[string]interface{}, log *logrus.Logger) (HTTPProtocol, bool) {
	name, ok := asString(field(m, keyName))
	if !ok {
		return HTTPProtocol{}, false
	}
	log.Debugf("loading HTTP protocol: %s", name)
	hp := HTTPProtocol{
		Name:   name,
		Buffer: int64Or(m, keyBuffer, 0),
	}
	if snis, ok := asSlice(field(m, keySNI)); ok {
		for _, s := range snis {
			if pat, ok := asString(s); ok {
				if re, err := NewRegexMatcher(pat); err == nil {
					hp.SNI = append(hp.SNI, re)
				}
			}
		}
	}
	if hosts, ok := asSlice(field(m, keyVirtualHosts)); ok {
		for _, h := range hosts {
			hm, ok := asMap(h)
			if !ok {
				continue
			}
			if vh, ok := parseVirtualHost(hm, log); ok {
				hp.VirtualHosts = append(hp.VirtualHosts, vh)
			}
		}
	}
	log.Debugf("loading HTTP protocol: %s done", name)
	return hp, true
}

func parseVirtualHost(m map[string]interface{}, log *logrus.Logger) (VirtualHost, bool) {
	name, ok := asString(field(m, keyName))
	if !ok {
		return VirtualHost{}, false
	}
	log.Debugf("loading virtual host: %s", name)
	vh := VirtualHost{Name: name}
	if hosts, ok := asSlice(field(m, keyHostNames)); ok {
		for _, h := range hosts {
			if pat, ok := asString(h); ok {
				if re, err := NewRegexMatcher(pat); err == nil {
					vh.HostNames = append(vh.HostNames, re)
				}
			}
		}
	}
	if routes, ok := asSlice(field(m, keyRoutes)); ok {
		for _, r := range routes {
			rm, ok := asMap(r)
			if !ok {
				continue
			}
			if route, ok := parseRoute(rm, log); ok {
				vh.Routes = append(vh.Routes, route)
			}
		}
	}
	log.Debugf("loading virtual host: %s done", name)
	return vh, true
}

func parseRoute(m map[string]interface{}, log *logrus.Logger) (Route, bool) {
	name, ok := asString(field(m, keyName))
	if !ok {
		return Route{}, false
	}
	log.Debugf("loading route: %s", name)
	route := Route{Name: name}
	if matches, ok := asSlice(field(m, keyPathMatches)); ok {
		log.Debug("loading paths")
		for _, pmRaw := range matches {
			pm, ok := asMap(pmRaw)
			if !ok {
				continue
			}
			pathName, ok := asString(field(pm, keyName))
			if !ok {
				continue
			}
			switch {
			case hasSlice(pm, keyPathRegex):
				var res []Matcher
				for _, r := range mustSlice(pm, keyPathRegex) {
					if pat, ok := asString(r); ok {
						if re, err := NewRegexMatcher(pat); err == nil {
							res = append(res, re)
						}
					}
				}
				route.PathMatches = append(route.PathMatches, PathMatch{Name: pathName, Kind: PathMatchRegex, Regex: res})
			case hasSlice(pm, keyPathPrefix):
				var ps []string
				for _, p := range mustSlice(pm, keyPathPrefix) {
					if s, ok := asString(p); ok {
						ps = append(ps, s)
					}
				}
				route.PathMatches = append(route.PathMatches, PathMatch{Name: pathName, Kind: PathMatchPrefix, Prefix: ps})
			case hasSlice(pm, keyMethod):
				var ms []string
				for _, s := range mustSlice(pm, keyMethod) {
					if str, ok := asString(s); ok {
						ms = append(ms, str)
					}
				}
				route.PathMatches = append(route.PathMatches, PathMatch{Name: pathName, Kind: PathMatchMethod, Methods: ms})
			case hasSlice(pm, keyHeader):
				var hs []HeaderClause
				for _, h := range mustSlice(pm, keyHeader) {
					hm, ok := asMap(h)
					if !ok {
						continue
					}
					hname, ok := asString(field(hm, keyHeaderName))
					if !ok {
						continue
					}
					if v, ok := asString(field(hm, keyHeaderValue)); ok {
						hs = append(hs, HeaderClause{Key: hname, Value: NewLiteralMatcher(v)})
					} else if rv, ok := asString(field(hm, keyHeaderRegex)); ok {
						if re, err := NewRegexMatcher(rv); err == nil {
							hs = append(hs, HeaderClause{Key: hname, NoCaseKey: true, Value: re})
						}
					}
				}
				route.PathMatches = append(route.PathMatches, PathMatch{Name: pathName, Kind: PathMatchHeader, Headers: hs})
			}
		}
	}
	if actions, ok := asSlice(field(m, keyActions)); ok {
		log.Debug("loading actions")
		for _, a := range actions {
			am, ok := asMap(a)
			if !ok {
				continue
			}
			if backend, ok := asString(field(am, keyBackend)); ok {
				route.Actions = append(route.Actions, Action{Kind: ActionBackend, Backend: backend})
			}
		}
	}
	return route, true
}

func hasSlice(m map[string]interface{}, key string) bool {
	_, ok := asSlice(field(m, key))
	return ok
}

func mustSlice(m map[string]interface{}, key string) []interface{} {
	s, _ := asSlice(field(m, key))
	return s
}
