package config

// Document keys, mirrored from original_source's configs/terms/*.rs. Unknown
// keys in the document are ignored; these are the ones the loader looks for.
const (
	keyTLS       = "tls"
	keyListeners = "listeners"
	keyClusters  = "clusters"

	keyName    = "name"
	keyConfig  = "config"
	keyBuffer  = "buffer"

	keyListen        = "listen"
	keyPreprocessors = "preprocessors"
	keyProtocols     = "protocols"
	keyEngine        = "engine"
	keySNI           = "sni"
	keyVirtualHosts  = "virtual_hosts"
	keyHostNames     = "host_names"
	keyRoutes        = "routes"
	keyPathMatches   = "path_matches"
	keyPathRegex     = "path_regex"
	keyPathPrefix    = "path_prefix"
	keyMethod        = "method"
	keyHeader        = "header"
	keyHeaderName    = "header_name"
	keyHeaderValue   = "header_value"
	keyHeaderRegex   = "header_regex"
	keyActions       = "actions"
	keyBackend       = "backend"

	engineHTTP = "http"

	keyLBMethod       = "lb_method"
	keyKeepalive      = "keepalive"
	keyCommon         = "common"
	keyICMP           = "icmp"
	keyTCP            = "tcp"
	keyHTTP           = "http"
	keyMembers        = "members"
	keyInterval       = "interval"
	keyDeadInterval   = "dead_interval"
	keyLiveInterval   = "live_interval"
	keyUseTLS         = "use_tls"
	keyURI            = "uri"
	keyResponseCode   = "response_code"
	keyWeight         = "weight"
	keySocketAddress  = "socket_address"
	keyStatus         = "status"
	keyTLSBlock       = "tls"
	keySNIOverride    = "sni"

	lbRoundRobin = "roundrobin"
	lbLeastConn  = "leastconn"

	statusActive   = "active"
	statusDisabled = "disabled"

	keyFile           = "file"
	keyVersionMin     = "version_min"
	keyVersionMax     = "version_max"
	keyCiphers        = "ciphers"
	keyCurves         = "curves"
	keyClientVerify   = "client_verify"
	keyTrustRoots     = "trust_roots"
	keyCRLs           = "crls"

	keyReqMethod = "method"
	headerHost   = "Host"
)

// Defaults, mirrored from original_source's per-module DEFAULT_* constants.
const (
	defaultBuffer        = 1_048_578
	defaultInterval       = 10
	defaultDeadInterval   = 3
	defaultLiveInterval   = 5
	defaultWeight         = 1
)

// ConnBuffer and RouteBuffer are the fixed per-connection pipe sizes
// mirrored from original_source's http.rs CONN_BUFFER/ROUTE_BUFFER: the
// listener-side pipe falls back to ConnBuffer when a protocol doesn't
// configure one, and the cluster-side pipe is always sized RouteBuffer
// regardless of the cluster's accountant budget.
const (
	ConnBuffer  = 8192
	RouteBuffer = 1_024_000
)
