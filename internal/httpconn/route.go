package httpconn

import (
	"strings"

	"github.com/blackish/rust-gateway/internal/config"
)

const hostHeader = "Host"

// MatchRoute implements §4.5 step 2: the first virtual host whose
// host-name list has any hit against the Host header wins, then the first
// route within it whose path-match clauses all pass. Path-match clauses
// AND together; within one clause, candidates OR. A prefix or regex clause
// with zero candidate hits FAILS the clause — the corrected behaviour
// SPEC_FULL.md calls out, replacing the source bug where an empty-hit
// clause silently fell through as if it had passed.
func MatchRoute(vhosts []config.VirtualHost, head *RequestHead) (config.Route, config.Action, bool) {
	host, _ := headerGet(head.Headers, hostHeader)
	for _, vh := range vhosts {
		if !matchHostNames(vh.HostNames, host) {
			continue
		}
		for _, route := range vh.Routes {
			if matchClauses(route.PathMatches, head) {
				if len(route.Actions) == 0 {
					continue
				}
				return route, route.Actions[0], true
			}
		}
		return config.Route{}, config.Action{}, false
	}
	return config.Route{}, config.Action{}, false
}

func matchHostNames(names []config.Matcher, host string) bool {
	for _, m := range names {
		if m.Match(host) {
			return true
		}
	}
	return false
}

// matchClauses implements the AND-across-clauses / OR-within-clause rule.
// Each clause kind returns false the moment the clause as a whole cannot
// pass; a prefix/regex clause whose candidates produce no hit returns false
// at once instead of silently continuing to the next clause.
func matchClauses(clauses []config.PathMatch, head *RequestHead) bool {
	for _, pm := range clauses {
		switch pm.Kind {
		case config.PathMatchMethod:
			if !anyEqualFold(pm.Methods, head.Method) {
				return false
			}
		case config.PathMatchPrefix:
			if !anyPrefix(pm.Prefix, head.URI) {
				return false
			}
		case config.PathMatchRegex:
			if !anyMatch(pm.Regex, head.URI) {
				return false
			}
		case config.PathMatchHeader:
			for _, hc := range pm.Headers {
				v, ok := headerGet(head.Headers, hc.Key)
				if !hc.NoCaseKey {
					v, ok = "", false
					for _, h := range head.Headers {
						if h.Key == hc.Key {
							v, ok = h.Value, true
							break
						}
					}
				}
				if !ok || !hc.Value.Match(v) {
					return false
				}
			}
		}
	}
	return true
}

func anyEqualFold(candidates []string, s string) bool {
	for _, c := range candidates {
		if strings.EqualFold(c, s) {
			return true
		}
	}
	return false
}

func anyPrefix(prefixes []string, s string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func anyMatch(matchers []config.Matcher, s string) bool {
	for _, m := range matchers {
		if m.Match(s) {
			return true
		}
	}
	return false
}
