package config_test

import (
	"io"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	. "github.com/blackish/rust-gateway/internal/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func decodeYAML(s string) interface{} {
	var v interface{}
	ExpectWithOffset(1, yaml.Unmarshal([]byte(s), &v)).To(Succeed())
	return v
}

var _ = Describe("Matcher", func() {
	It("matches a literal exactly", func() {
		m := NewLiteralMatcher("example.com")
		Expect(m.Match("example.com")).To(BeTrue())
		Expect(m.Match("Example.com")).To(BeFalse())
	})

	It("matches a regex case-insensitively", func() {
		m, err := NewRegexMatcher("^api-.*")
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Match("API-west")).To(BeTrue())
		Expect(m.Match("other")).To(BeFalse())
	})
})

var _ = Describe("ParseListener", func() {
	It("parses a full listener record with nested routes and actions", func() {
		doc := decodeYAML(`
name: front
listen: "0.0.0.0:8080"
buffer: 2048
preprocessors:
  - name: tls
    config: mycert
protocols:
  - engine: http
    name: h1
    sni:
      - "^.*\\.example\\.com$"
    virtual_hosts:
      - name: vh1
        host_names:
          - "^www\\.example\\.com$"
        routes:
          - name: r1
            path_matches:
              - name: p1
                path_prefix:
                  - /api
              - name: m1
                method:
                  - GET
                  - POST
            actions:
              - backend: cluster1
`)
		log := discardLogger()
		l, ok := ParseListener(doc, log)
		Expect(ok).To(BeTrue())
		Expect(l.Name).To(Equal("front"))
		Expect(l.Listen).To(Equal("0.0.0.0:8080"))
		Expect(l.Buffer).To(BeEquivalentTo(2048))
		Expect(l.Preprocessors).To(HaveLen(1))
		Expect(l.Preprocessors[0].Name).To(Equal("tls"))
		Expect(l.Preprocessors[0].Value).To(Equal("mycert"))
		Expect(l.Protocols).To(HaveLen(1))

		http := l.Protocols[0].HTTP
		Expect(http).ToNot(BeNil())
		Expect(http.Name).To(Equal("h1"))
		Expect(http.SNI).To(HaveLen(1))
		Expect(http.VirtualHosts).To(HaveLen(1))

		vh := http.VirtualHosts[0]
		Expect(vh.Name).To(Equal("vh1"))
		Expect(vh.Routes).To(HaveLen(1))

		route := vh.Routes[0]
		Expect(route.PathMatches).To(HaveLen(2))
		Expect(route.PathMatches[0].Kind).To(Equal(PathMatchPrefix))
		Expect(route.PathMatches[1].Kind).To(Equal(PathMatchMethod))
		Expect(route.Actions).To(HaveLen(1))
		Expect(route.Actions[0].Backend).To(Equal("cluster1"))
	})

	It("skips a listener record missing the listen address", func() {
		doc := decodeYAML(`
name: broken
`)
		_, ok := ParseListener(doc, discardLogger())
		Expect(ok).To(BeFalse())
	})

	It("applies the default buffer budget when omitted", func() {
		doc := decodeYAML(`
name: plain
listen: "127.0.0.1:80"
`)
		l, ok := ParseListener(doc, discardLogger())
		Expect(ok).To(BeTrue())
		Expect(l.Buffer).To(BeEquivalentTo(1048578))
	})
})

var _ = Describe("ParseCluster", func() {
	It("parses least-conn, TLS egress override, keepalive and members", func() {
		doc := decodeYAML(`
name: backend1
lb_method: leastconn
tls:
  sni: override.internal
keepalive:
  http:
    interval: 5
    dead_interval: 2
    live_interval: 2
    use_tls: true
    uri: /healthz
    response_code: 200
members:
  - socket_address: "10.0.0.1:80"
    weight: 3
  - socket_address: "10.0.0.2:80"
    status: disabled
`)
		c, ok := ParseCluster(doc, discardLogger())
		Expect(ok).To(BeTrue())
		Expect(c.Name).To(Equal("backend1"))
		Expect(c.LB).To(Equal(LbLeastConn))
		Expect(c.TLS).ToNot(BeNil())
		Expect(c.TLS.Kind).To(Equal(ClusterTlsSni))
		Expect(c.TLS.Override).To(Equal("override.internal"))
		Expect(c.Keepalive).ToNot(BeNil())
		Expect(c.Keepalive.Kind).To(Equal(KeepaliveHTTP))
		Expect(c.Keepalive.URI).To(Equal("/healthz"))
		Expect(c.Members).To(HaveLen(2))
		Expect(c.Members[0].Weight).To(BeEquivalentTo(3))
		Expect(c.Members[1].Status).To(Equal(MemberDisabled))
	})

	It("defaults to round-robin with no TLS and no keepalive", func() {
		doc := decodeYAML(`
name: simple
members:
  - socket_address: "10.0.0.1:80"
`)
		c, ok := ParseCluster(doc, discardLogger())
		Expect(ok).To(BeTrue())
		Expect(c.LB).To(Equal(LbRoundRobin))
		Expect(c.TLS).To(BeNil())
		Expect(c.Keepalive).To(BeNil())
		Expect(c.Members[0].Weight).To(BeEquivalentTo(1))
	})

	It("skips a cluster record missing a name", func() {
		doc := decodeYAML(`
members: []
`)
		_, ok := ParseCluster(doc, discardLogger())
		Expect(ok).To(BeFalse())
	})
})
