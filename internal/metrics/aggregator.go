// Package metrics implements the metric aggregator actor (spec §4.3):
// a single goroutine holding Map<MetricSource, Map<MetricName, MetricEntry>>
// that multiplexes incoming metric messages against a 30s periodic rate
// roll-up tick, and exports the current state through a prometheus
// registry for scrape.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
)

const tickInterval = 30 * time.Second

// Aggregator owns the scope-tuple-keyed metric table and the prometheus
// gauge vector it mirrors values into for scrape.
type Aggregator struct {
	log   *logrus.Logger
	inbox chan config.Message

	entries map[string]map[string]*config.MetricEntry

	gauge *prometheus.GaugeVec
}

// New registers a single "gateway" gauge vector, labeled by the flattened
// scope tuple and metric name, on reg. Using one vector rather than one
// metric per (scope,name) pair mirrors the style of the teacher's
// prometheus wrapper, which maintains a registry keyed by metric name and
// leaves cardinality/label handling to the vector rather than registering
// a new collector per label combination.
func New(log *logrus.Logger, reg *prometheus.Registry) *Aggregator {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "metric_value",
		Help:      "Current value of a gateway-internal metric, keyed by scope and name.",
	}, []string{"scope", "name"})
	reg.MustRegister(gauge)

	return &Aggregator{
		log:     log,
		inbox:   make(chan config.Message, 256),
		entries: map[string]map[string]*config.MetricEntry{},
		gauge:   gauge,
	}
}

// ExportedGauge exposes the underlying gauge vector for tests; production
// code never reads it back, only scrapes it through reg.
func (a *Aggregator) ExportedGauge() *prometheus.GaugeVec { return a.gauge }

// Inbox returns the send-only handle other actors publish metric messages
// on. Observability is advisory (spec §4.3): the inbox is buffered and a
// full buffer simply means a send blocks briefly, never that a message is
// silently corrupted.
func (a *Aggregator) Inbox() chan<- config.Message { return a.inbox }

// Run serves the inbox and the 30s rollup tick until the inbox is closed.
func (a *Aggregator) Run() {
	a.log.Debug("Starting metric aggregator")
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-a.inbox:
			if !ok {
				return
			}
			a.apply(msg)
		case <-ticker.C:
			a.rollup()
		}
	}
}

func scopeKey(scope []config.MetricSource) string {
	parts := make([]string, len(scope))
	for i, s := range scope {
		parts[i] = scopeSourceString(s)
	}
	return strings.Join(parts, "/")
}

func scopeSourceString(s config.MetricSource) string {
	kind := "unknown"
	switch s.Kind {
	case config.SourceListener:
		kind = "listener"
	case config.SourceListenerProtocol:
		kind = "listener_protocol"
	case config.SourceVirtualHost:
		kind = "virtual_host"
	case config.SourceRoute:
		kind = "route"
	case config.SourceCluster:
		kind = "cluster"
	case config.SourceClusterMember:
		kind = "cluster_member"
	}
	return kind + ":" + s.Name
}

func (a *Aggregator) apply(msg config.Message) {
	key := scopeKey(msg.Scope)
	perName, ok := a.entries[key]
	if !ok {
		perName = map[string]*config.MetricEntry{}
		a.entries[key] = perName
	}
	entry, ok := perName[msg.Name]
	if !ok {
		entry = &config.MetricEntry{}
		perName[msg.Name] = entry
	}

	switch msg.Value.Kind {
	case config.ValueRate:
		entry.CurrentValue += msg.Value.Num
		entry.Value = msg.Value
	case config.ValueCounter:
		entry.Value.Num += msg.Value.Num
		entry.Value.Kind = config.ValueCounter
		entry.Timestamp = timeNow()
	case config.ValueGauge, config.ValueString:
		entry.Value = msg.Value
		entry.Timestamp = timeNow()
	}
	a.export(key, msg.Name, *entry)
}

// rollup computes rate = (current - last) / elapsed for every Rate entry,
// then rotates current into last and resets current, per §4.3.
func (a *Aggregator) rollup() {
	elapsed := tickInterval.Seconds()
	for key, perName := range a.entries {
		for name, entry := range perName {
			if entry.Value.Kind != config.ValueRate {
				continue
			}
			rate := float64(entry.CurrentValue-entry.LastValue) / elapsed
			a.gauge.WithLabelValues(key, name+"_rate").Set(rate)
			entry.LastValue = entry.CurrentValue
			entry.CurrentValue = 0
		}
	}
}

func (a *Aggregator) export(key, name string, entry config.MetricEntry) {
	switch entry.Value.Kind {
	case config.ValueCounter, config.ValueGauge:
		a.gauge.WithLabelValues(key, name).Set(float64(entry.Value.Num))
	case config.ValueString:
		// Strings have no numeric projection; presence is exported as 1
		// so a scrape can still see the series exists.
		a.gauge.WithLabelValues(key, name).Set(1)
	}
}

// timeNow is a seam so tests can avoid depending on wall-clock ordering;
// production always uses time.Now.
var timeNow = time.Now
