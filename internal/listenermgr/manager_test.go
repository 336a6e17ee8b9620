package listenermgr_test

import (
	"io"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/listenermgr"
	"github.com/blackish/rust-gateway/internal/services"
)

func TestListenerMgr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ListenerMgr Suite")
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var _ = Describe("Manager", func() {
	It("spawns, re-forwards and removes a listener by name without blocking", func() {
		log := discardLogger()
		metrics := make(chan config.Message, 64)
		svc := services.New(log, nil, nil, nil, nil, metrics, nil)
		m := listenermgr.New(log, svc)
		svc.ListenerManager = m.Inbox()
		go m.Run()

		send := func(u config.ConfigUpdate) {
			m.Inbox() <- services.ConfigToListener{Update: u}
		}

		send(config.ConfigUpdate{Kind: config.ConfigUpdateListener, Listener: config.Listener{Name: "l1", Listen: "127.0.0.1:0"}})
		send(config.ConfigUpdate{Kind: config.ConfigUpdateListener, Listener: config.Listener{Name: "l1", Listen: "127.0.0.1:0", Buffer: 4096}})
		send(config.ConfigUpdate{Kind: config.ConfigUpdateTLS, TLS: config.TLSConfig{Name: "t1"}})
		send(config.ConfigUpdate{Kind: config.ConfigUpdateRemoveListener, Name: "l1"})

		done := make(chan struct{})
		go func() {
			send(config.ConfigUpdate{Kind: config.ConfigUpdateListener, Listener: config.Listener{Name: "l2", Listen: "127.0.0.1:0"}})
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
