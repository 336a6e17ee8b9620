// Package bufferacct implements the buffer accountant actor (spec §4.2):
// a single goroutine serializing grant/release requests for per-listener
// and per-cluster byte budgets, so the hot connection path never takes a
// lock to check or update memory accounting.
package bufferacct

import (
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/buffer"
	"github.com/blackish/rust-gateway/internal/config"
)

// Accountant owns the four mappings named in §4.2 and the single inbox
// every request and config update is serialized through.
type Accountant struct {
	log *logrus.Logger

	listenerBudget    map[string]int64
	clusterBudget     map[string]int64
	listenerAllocated map[string]int64
	clusterAllocated  map[string]int64

	inbox chan config.BufferMessage
}

// New creates an Accountant with its inbox unbuffered — sends from workers
// block until the accountant's single goroutine dequeues them, which is
// exactly the "strict total order over all requests" ordering guarantee
// spec §5 requires.
func New(log *logrus.Logger) *Accountant {
	return &Accountant{
		log:               log,
		listenerBudget:    map[string]int64{},
		clusterBudget:     map[string]int64{},
		listenerAllocated: map[string]int64{},
		clusterAllocated:  map[string]int64{},
		inbox:             make(chan config.BufferMessage),
	}
}

// Inbox returns the send-only handle other actors use to reach this
// accountant; it is what internal/services.Services.BufferAccount is fed.
func (a *Accountant) Inbox() chan<- config.BufferMessage { return a.inbox }

// Run serves the accountant's inbox until it is closed. It never returns
// an error: a message carrying neither an update nor a request is ignored.
func (a *Accountant) Run() {
	a.log.Debug("Starting buffer accountant")
	for msg := range a.inbox {
		switch {
		case msg.Update != nil:
			a.applyUpdate(*msg.Update)
		case msg.Request != nil:
			a.serve(*msg.Request)
		}
	}
}

func (a *Accountant) applyUpdate(u config.ConfigUpdate) {
	switch u.Kind {
	case config.ConfigUpdateListener:
		a.listenerBudget[u.Listener.Name] = u.Listener.Buffer
	case config.ConfigUpdateCluster:
		a.clusterBudget[u.Cluster.Name] = u.Cluster.Buffer
	case config.ConfigUpdateRemoveListener:
		delete(a.listenerBudget, u.Name)
		delete(a.listenerAllocated, u.Name)
	case config.ConfigUpdateRemoveCluster:
		delete(a.clusterBudget, u.Name)
		delete(a.clusterAllocated, u.Name)
	}
}

func (a *Accountant) serve(req config.BufferRequest) {
	switch req.Kind {
	case config.BufferRequestListener:
		a.grant(req, a.listenerBudget, a.listenerAllocated)
	case config.BufferRequestCluster:
		a.grant(req, a.clusterBudget, a.clusterAllocated)
	case config.BufferReleaseListener:
		a.release(req.Name, req.Size, a.listenerAllocated)
	case config.BufferReleaseCluster:
		a.release(req.Name, req.Size, a.clusterAllocated)
	}
}

func (a *Accountant) grant(req config.BufferRequest, budgets, allocated map[string]int64) {
	budget := budgets[req.Name]
	current, exists := allocated[req.Name]

	if exists && budget != 0 && current+req.Size >= budget {
		if req.Reply != nil {
			req.Reply <- config.BufferResponseMessage{Kind: config.BufferResponseOverLimit}
		}
		return
	}

	w, r := buffer.New(int(req.Size))
	allocated[req.Name] = current + req.Size
	if req.Reply != nil {
		req.Reply <- config.BufferResponseMessage{
			Kind:   config.BufferResponseGranted,
			Writer: w,
			Reader: r,
		}
	}
}

func (a *Accountant) release(name string, size int64, allocated map[string]int64) {
	current := allocated[name]
	current -= size
	if current < 0 {
		current = 0
	}
	allocated[name] = current
}
