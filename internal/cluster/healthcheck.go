package cluster

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

// probeTimeout is TIMEOUT in spec §4.9: a hard ceiling on every probe kind.
const probeTimeout = 10 * time.Second

// RunHealthChecker implements §4.9's loop body: probe, emit rtt/availability
// metrics, apply counter-based hysteresis to the shared status, sleep
// interval seconds. It returns when stop is closed (member removed or
// keepalive cleared).
func RunHealthChecker(log *logrus.Logger, svc *services.Services, cluster, addr string, ka config.Keepalive, status *StatusMap, stop <-chan struct{}) {
	scope := []config.MetricSource{{Kind: config.SourceClusterMember, Name: addr}}
	var upCount, downCount int64

	for {
		select {
		case <-stop:
			return
		default:
		}

		rtt, up := probe(addr, ka)
		if up {
			downCount = 0
			svc.Metrics <- config.Message{Scope: scope, Name: config.MetricRTT, Value: config.GaugeValue(rtt.Milliseconds())}
			svc.Metrics <- config.Message{Scope: scope, Name: config.MetricAvailability, Value: config.StringValue(config.AvailabilityUp)}
			if st, _ := status.get(addr); st == config.MemberUnavailable {
				upCount++
				if upCount >= ka.Common.LiveInterval {
					upCount = 0
					status.flipUp(addr)
					log.Debugf("cluster %s member %s: up-hysteresis reached, flipping Active", cluster, addr)
				}
			} else {
				upCount = 0
			}
		} else {
			upCount = 0
			svc.Metrics <- config.Message{Scope: scope, Name: config.MetricAvailability, Value: config.StringValue(config.AvailabilityDown)}
			if st, _ := status.get(addr); st == config.MemberActive {
				downCount++
				if downCount >= ka.Common.DeadInterval {
					downCount = 0
					status.flipDown(addr)
					log.Debugf("cluster %s member %s: dead-hysteresis reached, flipping Unavailable", cluster, addr)
				}
			} else {
				downCount = 0
			}
		}

		select {
		case <-stop:
			return
		case <-time.After(time.Duration(ka.Common.Interval) * time.Second):
		}
	}
}

// probe runs the configured probe kind and reports (round-trip time, up).
func probe(addr string, ka config.Keepalive) (time.Duration, bool) {
	switch ka.Kind {
	case config.KeepaliveICMP:
		return icmpChecker(addr)
	case config.KeepaliveHTTP:
		return httpChecker(addr, ka)
	default:
		return tcpChecker(addr)
	}
}

// tcpChecker attempts a TCP connect within probeTimeout, succeeding with
// the connect round-trip duration. This replaces original_source's
// tcp_checker, which was a verbatim copy of the ICMP prober (an ICMP ping
// instead of an actual TCP dial) — SPEC_FULL.md calls for a genuine TCP
// probe per the Tcp variant's name.
func tcpChecker(addr string) (time.Duration, bool) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return 0, false
	}
	rtt := time.Since(start)
	_ = conn.Close()
	return rtt, true
}

// icmpChecker sends one ICMP echo with a random identifier within
// probeTimeout.
func icmpChecker(addr string) (time.Duration, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ipAddr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return 0, false
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, false
	}
	defer conn.Close()

	id := int(time.Now().UnixNano() & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: 1, Data: []byte("gateway-health")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, false
	}

	start := time.Now()
	if err := conn.SetDeadline(start.Add(probeTimeout)); err != nil {
		return 0, false
	}
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: ipAddr.IP}); err != nil {
		return 0, false
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return 0, false
		}
		reply, err := icmp.ParseMessage(1, rb[:n])
		if err != nil {
			continue
		}
		if reply.Type == ipv4.ICMPTypeEchoReply {
			if echo, ok := reply.Body.(*icmp.Echo); ok && echo.ID == id {
				return time.Since(start), true
			}
		}
	}
}

// httpChecker performs a one-shot HTTP(S) GET of ka.URI, succeeding iff the
// response status code equals ka.ResponseCode.
func httpChecker(addr string, ka config.Keepalive) (time.Duration, bool) {
	scheme := "http"
	if ka.UseTLS {
		scheme = "https"
	}
	client := &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: ka.UseTLS}, //nolint:gosec
		},
	}
	uriPath := ka.URI
	if uriPath == "" {
		uriPath = "/"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, addr, uriPath)

	start := time.Now()
	resp, err := client.Get(url)
	rtt := time.Since(start)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if int64(resp.StatusCode) != ka.ResponseCode {
		return rtt, false
	}
	return rtt, true
}
