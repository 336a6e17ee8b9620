// Package services bundles the process's well-known channel endpoints
// behind a single struct built once at startup, per the redesign spec §9
// calls for in place of original_source's managers/common.rs globals
// (process-wide RwLock<Option<Sender<T>>> statics, set once and read
// thereafter — functionally read-only after init, but requiring a lock on
// every read).
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
)

// Services is passed explicitly to every actor/worker constructor. None of
// its fields are ever read through a lock: every channel here is a
// send-only handle to an actor's inbox, and the actor itself owns the
// receive end and any state the messages mutate.
type Services struct {
	Log      *logrus.Logger
	Registry *prometheus.Registry

	ListenerManager chan<- ConfigToListener
	ClusterManager  chan<- config.ClusterMessage
	BufferAccount   chan<- config.BufferMessage
	Metrics         chan<- config.Message
	ConfigRequests  chan<- config.ConfigRequest
}

// ConfigToListener is the inbox message shape for the listener manager:
// either a published config update, or a request for it to shut down a
// single named listener's worker goroutine (the worker itself listens for
// config.ConfigUpdateRemoveListener, but the manager needs a matching
// envelope for routing by listener name before forwarding).
type ConfigToListener struct {
	Update config.ConfigUpdate
}

// New constructs a Services value from the actors' inbox channels; a nil
// channel can be filled in on the returned value later. It performs no I/O and spawns nothing; wiring actors together
// and calling New happens in cmd/gateway.
func New(
	log *logrus.Logger,
	reg *prometheus.Registry,
	listenerMgr chan<- ConfigToListener,
	clusterMgr chan<- config.ClusterMessage,
	bufferAcct chan<- config.BufferMessage,
	metrics chan<- config.Message,
	configReq chan<- config.ConfigRequest,
) *Services {
	return &Services{
		Log:             log,
		Registry:        reg,
		ListenerManager: listenerMgr,
		ClusterManager:  clusterMgr,
		BufferAccount:   bufferAcct,
		Metrics:         metrics,
		ConfigRequests:  configReq,
	}
}
