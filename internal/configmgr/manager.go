/*
 * MIT License
 *
 * Copyright (c) 2024 rust-gateway contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package configmgr implements the config source (§2, §6, grounded on
// original_source's managers/config.rs ConfigManager): load the document
// once at startup, publish every record to the listener manager, the
// cluster manager and the buffer accountant, then serve named TLS lookups
// for the lifetime of the process.
package configmgr

import (
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

// Manager holds the loaded snapshot it serves ConfigRequest lookups
// against, and the inbox those requests arrive on.
type Manager struct {
	log *logrus.Logger
	svc *services.Services

	snapshot *config.Snapshot

	inbox chan config.ConfigRequest
}

// New spawns nothing and loads nothing; call Start to load the document
// and publish it, then Run in its own goroutine to serve requests.
func New(log *logrus.Logger, svc *services.Services) *Manager {
	return &Manager{
		log:   log,
		svc:   svc,
		inbox: make(chan config.ConfigRequest, 8),
	}
}

// Inbox returns the send-only handle services.Services.ConfigRequests wraps.
func (m *Manager) Inbox() chan<- config.ConfigRequest { return m.inbox }

// Start loads path and publishes every TLS, listener and cluster record to
// the listener manager, cluster manager and buffer accountant, mirroring
// ConfigManager::start's three ordered passes (TLS first, so a listener's
// or cluster's first config update can already resolve SNI-bound
// acceptors against it).
func (m *Manager) Start(path string) error {
	m.log.Info("Starting config manager")
	snap, err := config.Load(path, m.log)
	if err != nil {
		return err
	}
	m.snapshot = snap

	m.log.Debug("Loading TLS config")
	for _, t := range snap.TLS {
		m.svc.ListenerManager <- services.ConfigToListener{Update: config.ConfigUpdate{Kind: config.ConfigUpdateTLS, TLS: t}}
	}

	m.log.Debug("Loading listeners")
	for _, l := range snap.Listeners {
		update := config.ConfigUpdate{Kind: config.ConfigUpdateListener, Listener: l}
		m.svc.ListenerManager <- services.ConfigToListener{Update: update}
		m.svc.BufferAccount <- config.BufferMessage{Update: &update}
	}

	m.log.Debug("Loading clusters")
	for _, c := range snap.Clusters {
		update := config.ConfigUpdate{Kind: config.ConfigUpdateCluster, Cluster: c}
		m.svc.ClusterManager <- config.ClusterMessage{Kind: config.ClusterMessageConfigUpdate, Update: update}
		m.svc.BufferAccount <- config.BufferMessage{Update: &update}
	}

	return nil
}

// Run serves ConfigRequest lookups against the snapshot Start loaded. Only
// TLS lookups are meaningful (§2); anything else replies NotExist, as
// ConfigManager::worker's catch-all arm does.
func (m *Manager) Run() {
	for req := range m.inbox {
		m.log.Debug("Got config request")
		switch req.Kind {
		case config.ConfigRequestTLS:
			m.log.Debugf("Got tls config request: %s", req.Name)
			if req.Reply == nil {
				continue
			}
			if tlsCfg, ok := m.snapshot.FindTLS(req.Name); ok {
				req.Reply <- config.ConfigRequestReply{TLS: tlsCfg, Ok: true}
			} else {
				req.Reply <- config.ConfigRequestReply{Ok: false}
			}
		default:
			m.log.Debug("No config matching the request")
			if req.Reply != nil {
				req.Reply <- config.ConfigRequestReply{Ok: false}
			}
		}
	}
}
