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

// Package listenermgr implements the listener manager (§4.4's manager
// half): a single long-lived actor owning the name-to-worker directory,
// spawning an internal/listener.Worker the first time a listener name is
// published.
package listenermgr

import (
	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/listener"
	"github.com/blackish/rust-gateway/internal/services"
)

// Manager routes every published ListenerConfig, RemoveListener and
// TlsConfig update to the named worker, spawning one on first sight of a
// listener name.
type Manager struct {
	log *logrus.Logger
	svc *services.Services

	listeners map[string]*listener.Worker

	inbox chan services.ConfigToListener
}

// New spawns no goroutines; call Run in its own goroutine.
func New(log *logrus.Logger, svc *services.Services) *Manager {
	return &Manager{
		log:       log,
		svc:       svc,
		listeners: map[string]*listener.Worker{},
		inbox:     make(chan services.ConfigToListener, 32),
	}
}

// Inbox returns the send-only handle services.Services.ListenerManager wraps.
func (m *Manager) Inbox() chan<- services.ConfigToListener { return m.inbox }

// Run serves the inbox until it is closed.
func (m *Manager) Run() {
	m.log.Debugf("Starting listener manager")
	for msg := range m.inbox {
		m.handleConfigUpdate(msg.Update)
	}
}

func (m *Manager) handleConfigUpdate(u config.ConfigUpdate) {
	switch u.Kind {
	case config.ConfigUpdateListener:
		if w, ok := m.listeners[u.Listener.Name]; ok {
			w.Inbox() <- u
			return
		}
		w := listener.NewWorker(m.log, m.svc, u.Listener)
		m.listeners[u.Listener.Name] = w
		go w.Run()
		m.log.Debugf("listener manager: spawned listener %s", u.Listener.Name)
	case config.ConfigUpdateRemoveListener:
		if w, ok := m.listeners[u.Name]; ok {
			w.Inbox() <- u
			delete(m.listeners, u.Name)
			m.log.Debugf("listener manager: removed listener %s", u.Name)
		}
	case config.ConfigUpdateTLS:
		for _, w := range m.listeners {
			w.Inbox() <- u
		}
	}
}
