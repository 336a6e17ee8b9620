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

// Package clustermgr implements the cluster manager (§4.7's manager half):
// a single long-lived actor that owns the name-to-cluster-actor directory
// and routes every ClusterMessage by cluster name, spawning a new
// internal/cluster.Actor the first time a name is seen.
package clustermgr

import (
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/cluster"
	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

// Manager is the single entry point every ClusterConnection, ClusterConfig
// update and TLS update passes through before reaching a specific cluster.
type Manager struct {
	log *logrus.Logger
	svc *services.Services

	clusters map[string]*cluster.Actor

	inbox chan config.ClusterMessage
}

// New spawns no goroutines; call Run in its own goroutine.
func New(log *logrus.Logger, svc *services.Services) *Manager {
	return &Manager{
		log:      log,
		svc:      svc,
		clusters: map[string]*cluster.Actor{},
		inbox:    make(chan config.ClusterMessage, 64),
	}
}

// Inbox returns the send-only handle services.Services.ClusterManager wraps.
func (m *Manager) Inbox() chan<- config.ClusterMessage { return m.inbox }

// Run serves the inbox until it is closed.
func (m *Manager) Run() {
	m.log.Debugf("Starting cluster manager")
	for msg := range m.inbox {
		switch msg.Kind {
		case config.ClusterMessageConfigUpdate:
			m.handleConfigUpdate(msg.Update)
		case config.ClusterMessageConnection:
			m.routeConnection(msg)
		case config.ClusterMessageConnectionClosed:
			m.routeConnectionClosed(msg)
		}
	}
}

// handleConfigUpdate implements §4.7's "On ClusterConfig update": route to
// an existing cluster actor by name, or spawn one the first time a name is
// published. RemoveCluster forwards to the actor (which tears its members
// down) and drops the directory entry; TLS fans to every known cluster.
func (m *Manager) handleConfigUpdate(u config.ConfigUpdate) {
	switch u.Kind {
	case config.ConfigUpdateCluster:
		if a, ok := m.clusters[u.Cluster.Name]; ok {
			a.Inbox() <- config.ClusterMessage{Kind: config.ClusterMessageConfigUpdate, Update: u}
			return
		}
		a := cluster.NewActor(m.log, m.svc, u.Cluster)
		m.clusters[u.Cluster.Name] = a
		go a.Run(u.Cluster)
		m.log.Debugf("cluster manager: spawned cluster %s", u.Cluster.Name)
	case config.ConfigUpdateRemoveCluster:
		if a, ok := m.clusters[u.Name]; ok {
			a.Inbox() <- config.ClusterMessage{Kind: config.ClusterMessageConfigUpdate, Update: u}
			delete(m.clusters, u.Name)
			m.log.Debugf("cluster manager: removed cluster %s", u.Name)
		}
	case config.ConfigUpdateTLS:
		for _, a := range m.clusters {
			a.Inbox() <- config.ClusterMessage{Kind: config.ClusterMessageConfigUpdate, Update: u}
		}
	}
}

// routeConnection implements §4.5 step 3's first hop: find the named
// cluster's actor and forward the whole message, or reply
// ClusterNotFound immediately when the name is unknown.
func (m *Manager) routeConnection(msg config.ClusterMessage) {
	a, ok := m.clusters[msg.Connection.Cluster]
	if !ok {
		if msg.Connection.Reply != nil {
			msg.Connection.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyClusterNotFound}
		}
		return
	}
	a.Inbox() <- msg
}

// routeConnectionClosed forwards to the matching cluster if it still
// exists, and silently drops otherwise — a cluster removed mid-connection
// has already torn its own Active accounting down.
func (m *Manager) routeConnectionClosed(msg config.ClusterMessage) {
	if a, ok := m.clusters[msg.ConnectionDone.Cluster]; ok {
		a.Inbox() <- msg
	}
}
