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

// Package listener implements the per-listener worker (§4.4's worker half)
// and the HTTP connection worker (§4.5, §4.6) it spawns per accepted
// connection.
package listener

import (
	"crypto/tls"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/services"
)

const tlsPreprocessor = "tls"

// Worker binds one TCP socket and multiplexes accepted connections against
// config updates: accepts use the snapshot current at accept time, and an
// in-flight connection keeps the snapshot it was handed even if the worker
// later applies a newer one (§4.4 "new accepts use the new snapshot;
// in-flight connections retain their captured snapshot").
type Worker struct {
	log *logrus.Logger
	svc *services.Services

	name string
	cfg  config.Listener

	acceptors map[string]*tls.Config

	inbox chan config.ConfigUpdate
	ready chan net.Addr
}

// NewWorker does not bind the socket; call Run in its own goroutine.
func NewWorker(log *logrus.Logger, svc *services.Services, initial config.Listener) *Worker {
	return &Worker{
		log:       log,
		svc:       svc,
		name:      initial.Name,
		cfg:       initial,
		acceptors: map[string]*tls.Config{},
		inbox:     make(chan config.ConfigUpdate, 8),
		ready:     make(chan net.Addr, 1),
	}
}

// Inbox returns the send-only handle the listener manager forwards
// per-listener config updates to.
func (w *Worker) Inbox() chan<- config.ConfigUpdate { return w.inbox }

// Ready receives the bound socket's address once, after Run succeeds in
// binding it. Callers that don't care (production startup) may ignore it.
func (w *Worker) Ready() <-chan net.Addr { return w.ready }

// Run binds the listener's socket and serves accepted connections and
// config updates until RemoveListener or a bind failure.
func (w *Worker) Run() {
	ln, err := net.Listen("tcp", w.cfg.Listen)
	if err != nil {
		w.log.Errorf("listener %s: failed to bind %s: %v", w.name, w.cfg.Listen, err)
		return
	}
	w.log.Debugf("listener %s: bound %s", w.name, w.cfg.Listen)
	w.ready <- ln.Addr()

	accepted := make(chan net.Conn)
	go w.acceptLoop(ln, accepted)

	for {
		select {
		case conn, ok := <-accepted:
			if !ok {
				return
			}
			snapshot := w.cfg
			go w.admit(conn, snapshot)
		case u, ok := <-w.inbox:
			if !ok {
				_ = ln.Close()
				return
			}
			if !w.applyConfigUpdate(u) {
				_ = ln.Close()
				return
			}
		}
	}
}

func (w *Worker) acceptLoop(ln net.Listener, out chan<- net.Conn) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			close(out)
			return
		}
		out <- conn
	}
}

// applyConfigUpdate implements §4.4's "config update" branch.
// ConfigUpdateListener swaps the snapshot atomically (future accepts only).
// ConfigUpdateRemoveListener terminates the worker. ConfigUpdateTLS drops
// any cached acceptor for the named config so the next handshake rebuilds
// it from a fresh lookup.
func (w *Worker) applyConfigUpdate(u config.ConfigUpdate) bool {
	switch u.Kind {
	case config.ConfigUpdateListener:
		w.cfg = u.Listener
		return true
	case config.ConfigUpdateRemoveListener:
		w.log.Debugf("listener %s: removed", w.name)
		return false
	case config.ConfigUpdateTLS:
		delete(w.acceptors, u.TLS.Name)
		return true
	}
	return true
}

// admit implements §4.4's "accept" branch for one connection: optional TLS
// handshake and SNI extraction, then protocol selection, then handoff to
// the HTTP connection worker (§4.5). snapshot is the listener config
// captured at accept time.
func (w *Worker) admit(conn net.Conn, snapshot config.Listener) {
	sni := ""
	if tlsName, ok := w.tlsPreprocessorName(snapshot); ok {
		acceptor, ok := w.acceptorFor(tlsName)
		if !ok {
			_ = conn.Close()
			return
		}
		tlsConn := tls.Server(conn, acceptor)
		if err := tlsConn.Handshake(); err != nil {
			w.log.Debugf("listener %s: TLS handshake failed: %v", w.name, err)
			_ = conn.Close()
			return
		}
		sni = tlsConn.ConnectionState().ServerName
		conn = tlsConn
	}

	proto, ok := selectProtocol(snapshot, sni)
	if !ok {
		_ = conn.Close()
		return
	}

	go serveHTTPConnection(w.log, w.svc, w.name, sni, proto, conn)
}

func (w *Worker) tlsPreprocessorName(snapshot config.Listener) (string, bool) {
	for _, p := range snapshot.Preprocessors {
		if p.Name == tlsPreprocessor {
			return p.Value, true
		}
	}
	return "", false
}

// acceptorFor returns the cached *tls.Config for name, requesting and
// building it from the config source on first use (§4.4: "request the
// named TLS config from the config source on first use; cache the
// resulting acceptor").
func (w *Worker) acceptorFor(name string) (*tls.Config, bool) {
	if acceptor, ok := w.acceptors[name]; ok {
		return acceptor, true
	}
	if w.svc.ConfigRequests == nil {
		return nil, false
	}
	reply := make(chan config.ConfigRequestReply, 1)
	w.svc.ConfigRequests <- config.ConfigRequest{Kind: config.ConfigRequestTLS, Name: name, Reply: reply}
	resp := <-reply
	if !resp.Ok {
		return nil, false
	}
	acceptor := resp.TLS.ServerConfig()
	w.acceptors[name] = acceptor
	return acceptor, true
}

// selectProtocol implements §4.4's protocol walk: the first HTTP protocol
// whose SNI matcher list has a case-insensitive hit against the client SNI
// wins; with TLS off (sni == "" and the protocol's matcher list is empty)
// the first HTTP protocol matches unconditionally.
func selectProtocol(snapshot config.Listener, sni string) (config.HTTPProtocol, bool) {
	for _, p := range snapshot.Protocols {
		if p.Kind != config.ProtocolHTTP || p.HTTP == nil {
			continue
		}
		if len(p.HTTP.SNI) == 0 {
			return *p.HTTP, true
		}
		for _, m := range p.HTTP.SNI {
			if m.Match(sni) {
				return *p.HTTP, true
			}
		}
	}
	return config.HTTPProtocol{}, false
}
