package cluster

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

func TestHealthcheck(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Healthcheck Suite")
}

func discardLoggerHC() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var _ = Describe("tcpChecker", func() {
	It("succeeds against a listening socket", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer ln.Close()

		_, up := tcpChecker(ln.Addr().String())
		Expect(up).To(BeTrue())
	})

	It("fails against a closed port", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		addr := ln.Addr().String()
		ln.Close()

		_, up := tcpChecker(addr)
		Expect(up).To(BeFalse())
	})
})

var _ = Describe("httpChecker", func() {
	It("succeeds when the response code matches", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		_, up := httpChecker(srv.Listener.Addr().String(), config.Keepalive{Kind: config.KeepaliveHTTP, URI: "/", ResponseCode: 200})
		Expect(up).To(BeTrue())
	})

	It("fails when the response code does not match", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, up := httpChecker(srv.Listener.Addr().String(), config.Keepalive{Kind: config.KeepaliveHTTP, URI: "/", ResponseCode: 200})
		Expect(up).To(BeFalse())
	})
})

var _ = Describe("RunHealthChecker", func() {
	It("flips Unavailable to Active after live_interval consecutive up probes", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer ln.Close()

		status := newStatusMap()
		status.set(ln.Addr().String(), config.MemberUnavailable)

		metrics := make(chan config.Message, 64)
		svc := services.New(discardLoggerHC(), nil, nil, nil, nil, metrics, nil)

		ka := config.Keepalive{
			Kind:   config.KeepaliveTCP,
			Common: config.CommonKeepaliveConfig{Interval: 0, DeadInterval: 3, LiveInterval: 2},
		}
		stop := make(chan struct{})
		defer close(stop)
		go RunHealthChecker(discardLoggerHC(), svc, "c1", ln.Addr().String(), ka, status, stop)

		Eventually(func() config.ClusterMemberStatus {
			st, _ := status.get(ln.Addr().String())
			return st
		}, 2*time.Second, 5*time.Millisecond).Should(Equal(config.MemberActive))
	})
})
