package metrics_test

import (
	"io"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	. "github.com/blackish/rust-gateway/internal/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Aggregator Suite")
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var _ = Describe("Aggregator", func() {
	var scope []config.MetricSource

	BeforeEach(func() {
		scope = []config.MetricSource{{Kind: config.SourceCluster, Name: "backend1"}}
	})

	It("accumulates a counter across multiple messages", func() {
		a := New(discardLogger(), prometheus.NewRegistry())
		go a.Run()
		a.Inbox() <- config.Message{Scope: scope, Name: config.MetricRequests, Value: config.CounterValue(1)}
		a.Inbox() <- config.Message{Scope: scope, Name: config.MetricRequests, Value: config.CounterValue(1)}
		a.Inbox() <- config.Message{Scope: scope, Name: config.MetricRequests, Value: config.CounterValue(3)}

		Eventually(func() float64 {
			return testutil.ToFloat64(a.ExportedGauge().WithLabelValues("cluster:backend1", config.MetricRequests))
		}).Should(BeNumerically("==", 5))
	})

	It("replaces gauge values rather than accumulating them", func() {
		a := New(discardLogger(), prometheus.NewRegistry())
		go a.Run()
		a.Inbox() <- config.Message{Scope: scope, Name: config.MetricRTT, Value: config.GaugeValue(10)}
		a.Inbox() <- config.Message{Scope: scope, Name: config.MetricRTT, Value: config.GaugeValue(20)}

		Eventually(func() float64 {
			return testutil.ToFloat64(a.ExportedGauge().WithLabelValues("cluster:backend1", config.MetricRTT))
		}).Should(BeNumerically("==", 20))
	})

	It("does not panic on an empty scope tuple", func() {
		a := New(discardLogger(), prometheus.NewRegistry())
		go a.Run()
		a.Inbox() <- config.Message{Scope: nil, Name: "x", Value: config.CounterValue(1)}
		time.Sleep(10 * time.Millisecond)
	})
})
