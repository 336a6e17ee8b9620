package config

import (
	"github.com/sirupsen/logrus"
)

// LbMethod selects the load-balancing algorithm a cluster runs. Both
// variants implement the corrected semantics named in SPEC_FULL.md §E:
// round-robin selects the member at its cursor and then advances the
// cursor (so the first request goes to index 0), and least-conn picks
// the strictly smallest active-connection count with ties broken by
// iteration order.
type LbMethod int

const (
	LbRoundRobin LbMethod = iota
	LbLeastConn
)

// ClusterTlsKind tags the egress TLS posture of a cluster's members.
type ClusterTlsKind int

const (
	ClusterTlsNone ClusterTlsKind = iota
	ClusterTlsTransparentSni
	ClusterTlsSni
)

// ClusterTlsConfig is the cluster-level egress TLS posture (SPEC_FULL.md
// §C: Sni(override) is distinct from TransparentSni — the former replaces
// the SNI name sent to the member, the latter forwards the inbound SNI
// unchanged).
type ClusterTlsConfig struct {
	Kind     ClusterTlsKind
	Override string
}

// KeepaliveKind tags which health-probe variant a Keepalive holds.
type KeepaliveKind int

const (
	KeepaliveICMP KeepaliveKind = iota
	KeepaliveTCP
	KeepaliveHTTP
)

// CommonKeepaliveConfig is the hysteresis timing shared by every probe
// variant (spec §4.9): Interval between probes, and the number of
// consecutive agreeing probes required before a flip is committed.
type CommonKeepaliveConfig struct {
	Interval     int64
	DeadInterval int64
	LiveInterval int64
}

// Keepalive is the tagged union over health-check configurations.
type Keepalive struct {
	Kind         KeepaliveKind
	Common       CommonKeepaliveConfig
	UseTLS       bool
	URI          string
	ResponseCode int64
}

// ClusterMemberStatus is the administrative+observed state of one member.
// Active carries the live connection counter the least-conn algorithm
// reads. Disabled members stay eligible for round-robin, are never picked
// by least-conn (which only considers Active members), and health probes
// never change a Disabled status.
type ClusterMemberStatus int

const (
	MemberActive ClusterMemberStatus = iota
	MemberDisabled
	MemberUnavailable
)

// ClusterMemberConfig is one backend socket entry of a cluster.
type ClusterMemberConfig struct {
	Address string
	Status  ClusterMemberStatus
	Weight  int64
}

// Cluster is the immutable-after-publish snapshot for one backend pool.
type Cluster struct {
	Name      string
	Buffer    int64
	LB        LbMethod
	TLS       *ClusterTlsConfig
	Keepalive *Keepalive
	Members   []ClusterMemberConfig
}

// ParseCluster decodes one cluster record, skipping (with a debug log) when
// a required key is missing.
func ParseCluster(doc interface{}, log *logrus.Logger) (Cluster, bool) {
	m, ok := asMap(doc)
	if !ok {
		return Cluster{}, false
	}
	name, ok := asString(field(m, keyName))
	if !ok {
		log.Debug("cluster record missing name, skipping")
		return Cluster{}, false
	}
	log.Debugf("loading cluster: %s", name)
	c := Cluster{Name: name, LB: LbRoundRobin, Buffer: int64Or(m, keyBuffer, defaultBuffer)}
	if lb, ok := asString(field(m, keyLBMethod)); ok && lb == lbLeastConn {
		c.LB = LbLeastConn
	}
	if tm, ok := asMap(field(m, keyTLSBlock)); ok {
		tc := ClusterTlsConfig{Kind: ClusterTlsTransparentSni}
		if sni, ok := asString(field(tm, keySNIOverride)); ok && sni != "" {
			tc.Kind = ClusterTlsSni
			tc.Override = sni
		}
		c.TLS = &tc
	}
	if ka, ok := parseKeepalive(field(m, keyKeepalive)); ok {
		c.Keepalive = &ka
	}
	if members, ok := asSlice(field(m, keyMembers)); ok {
		for _, mm := range members {
			memberMap, ok := asMap(mm)
			if !ok {
				continue
			}
			if mem, ok := parseMember(memberMap, log); ok {
				c.Members = append(c.Members, mem)
			}
		}
	}
	log.Debugf("loading cluster: %s done", name)
	return c, true
}

func parseKeepalive(v interface{}) (Keepalive, bool) {
	m, ok := asMap(v)
	if !ok {
		return Keepalive{}, false
	}
	common := CommonKeepaliveConfig{
		Interval:     defaultInterval,
		DeadInterval: defaultDeadInterval,
		LiveInterval: defaultLiveInterval,
	}
	parseCommon := func(cm map[string]interface{}) CommonKeepaliveConfig {
		return CommonKeepaliveConfig{
			Interval:     int64Or(cm, keyInterval, common.Interval),
			DeadInterval: int64Or(cm, keyDeadInterval, common.DeadInterval),
			LiveInterval: int64Or(cm, keyLiveInterval, common.LiveInterval),
		}
	}
	if im, ok := asMap(field(m, keyICMP)); ok {
		return Keepalive{Kind: KeepaliveICMP, Common: parseCommon(im)}, true
	}
	if tm, ok := asMap(field(m, keyTCP)); ok {
		return Keepalive{Kind: KeepaliveTCP, Common: parseCommon(tm)}, true
	}
	if hm, ok := asMap(field(m, keyHTTP)); ok {
		return Keepalive{
			Kind:         KeepaliveHTTP,
			Common:       parseCommon(hm),
			UseTLS:       boolOr(hm, keyUseTLS, false),
			URI:          stringOr(hm, keyURI, "/"),
			ResponseCode: int64Or(hm, keyResponseCode, 200),
		}, true
	}
	return Keepalive{}, false
}

func parseMember(m map[string]interface{}, log *logrus.Logger) (ClusterMemberConfig, bool) {
	addr, ok := asString(field(m, keySocketAddress))
	if !ok {
		log.Debug("cluster member missing socket_address, skipping")
		return ClusterMemberConfig{}, false
	}
	status := MemberActive
	if s, ok := asString(field(m, keyStatus)); ok && s == statusDisabled {
		status = MemberDisabled
	}
	return ClusterMemberConfig{
		Address: addr,
		Status:  status,
		Weight:  int64Or(m, keyWeight, defaultWeight),
	}, true
}
