package config

import (
	"regexp"
	"strings"
)

// Matcher is a tagged string-or-regex value, mirrored from
// original_source's configs::config::Value. All regex matchers in this
// package are compiled case-insensitively, per spec §3.
type Matcher struct {
	literal string
	re      *regexp.Regexp
}

// NewLiteralMatcher builds an exact-match Matcher.
func NewLiteralMatcher(s string) Matcher { return Matcher{literal: s} }

// NewRegexMatcher compiles pattern as a case-insensitive regex Matcher.
func NewRegexMatcher(pattern string) (Matcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{re: re}, nil
}

// Match reports whether s satisfies the matcher: exact equality for a
// literal, regex search for a compiled pattern.
func (m Matcher) Match(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return s == m.literal
}

// NoCaseKey is a case-insensitive header/map key; Go's canonical
// http.CanonicalHeaderKey-style casing isn't used here because the gateway
// never reuses net/http's header type (invariant I3 — preserve the
// insertion-order bytes on write-back, not a canonicalized form).
type NoCaseKey string

// Norm returns the lower-cased form used as the map key.
func (k NoCaseKey) Norm() string { return strings.ToLower(string(k)) }
