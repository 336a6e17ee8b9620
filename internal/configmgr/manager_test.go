package configmgr_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/configmgr"
	"github.com/blackish/rust-gateway/internal/services"
)

func TestConfigMgr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ConfigMgr Suite")
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const doc = `
tls: []
listeners:
  - name: l1
    listen: "127.0.0.1:0"
clusters:
  - name: c1
    lb_method: roundrobin
`

var _ = Describe("Manager", func() {
	It("publishes listeners and clusters, then serves TLS lookups", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "gateway.yaml")
		Expect(os.WriteFile(path, []byte(doc), 0o600)).To(Succeed())

		log := discardLogger()
		listenerUpdates := make(chan services.ConfigToListener, 8)
		clusterUpdates := make(chan config.ClusterMessage, 8)
		bufferUpdates := make(chan config.BufferMessage, 8)
		svc := services.New(log, nil, listenerUpdates, clusterUpdates, bufferUpdates, nil, nil)

		m := configmgr.New(log, svc)
		svc.ConfigRequests = m.Inbox()
		Expect(m.Start(path)).To(Succeed())
		go m.Run()

		var lu services.ConfigToListener
		Eventually(listenerUpdates, time.Second).Should(Receive(&lu))
		Expect(lu.Update.Kind).To(Equal(config.ConfigUpdateListener))
		Expect(lu.Update.Listener.Name).To(Equal("l1"))

		var cu config.ClusterMessage
		Eventually(clusterUpdates, time.Second).Should(Receive(&cu))
		Expect(cu.Update.Cluster.Name).To(Equal("c1"))

		var bu config.BufferMessage
		Eventually(bufferUpdates, time.Second).Should(Receive(&bu))

		reply := make(chan config.ConfigRequestReply, 1)
		m.Inbox() <- config.ConfigRequest{Kind: config.ConfigRequestTLS, Name: "nope", Reply: reply}
		Eventually(reply, time.Second).Should(Receive(Equal(config.ConfigRequestReply{Ok: false})))
	})
})
