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

package listener

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/httpconn"
	"github.com/blackish/rust-gateway/internal/services"
)

// countingReader attributes bytes consumed while parsing the request head
// to the connection's received counter, matching internal/httpconn's own
// accounting for the backend-side head parse.
type countingReader struct {
	r net.Conn
	n *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	*c.n += int64(n)
	return n, err
}

// serveHTTPConnection implements §4.5 end to end for one accepted,
// already-admitted connection: parse the request head, route it, dispatch
// to the cluster manager, and either relay (§4.6) or fail with a minimal
// HTTP/1.0 error response.
func serveHTTPConnection(log *logrus.Logger, svc *services.Services, listenerName, sni string, proto config.HTTPProtocol, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	entry := log.WithField("trace", httpconn.NewTraceID())

	var received, sent int64
	scope := []config.MetricSource{{Kind: config.SourceListener, Name: listenerName}}
	svc.Metrics <- config.Message{Scope: scope, Name: config.MetricRequests, Value: config.CounterValue(1)}
	defer func() {
		svc.Metrics <- config.Message{Scope: scope, Name: config.MetricBytesReceived, Value: config.CounterValue(received)}
		svc.Metrics <- config.Message{Scope: scope, Name: config.MetricBytesSent, Value: config.CounterValue(sent)}
	}()

	head, err := httpconn.ReadRequestHead(&countingReader{r: conn, n: &received})
	if err != nil {
		entry.Debugf("listener %s: invalid request head: %v", listenerName, err)
		return
	}

	route, action, ok := httpconn.MatchRoute(proto.VirtualHosts, head)
	if !ok || action.Kind != config.ActionBackend {
		n, _ := httpconn.WriteError(conn, "404", "Route not found")
		sent += n
		return
	}

	bufSize := proto.Buffer
	if bufSize == 0 {
		bufSize = config.ConnBuffer
	}
	bufReply := make(chan config.BufferResponseMessage, 1)
	svc.BufferAccount <- config.BufferMessage{Request: &config.BufferRequest{
		Kind:  config.BufferRequestListener,
		Name:  listenerName,
		Size:  bufSize,
		Reply: bufReply,
	}}
	bufResp := <-bufReply
	if bufResp.Kind == config.BufferResponseOverLimit {
		n, _ := httpconn.WriteError(conn, "503", "Out of memory")
		sent += n
		return
	}

	connReply := make(chan config.ListenerConnectionReply, 1)
	svc.ClusterManager <- config.ClusterMessage{
		Kind: config.ClusterMessageConnection,
		Connection: config.ClusterConnection{
			Cluster:    action.Backend,
			ClientSNI:  sni,
			Route:      route,
			ClientPipe: bufResp.Reader,
			Reply:      connReply,
		},
	}
	reply := <-connReply

	switch reply.Kind {
	case config.ListenerReplyClusterNotFound:
		n, _ := httpconn.WriteError(conn, "404", "Cluster not found")
		sent += n
		return
	case config.ListenerReplyNoAvailableMember:
		n, _ := httpconn.WriteError(conn, "503", "No available backends")
		sent += n
		return
	case config.ListenerReplyBufferOverLimit:
		n, _ := httpconn.WriteError(conn, "503", "Out of memory")
		sent += n
		return
	}

	if err := httpconn.RunClientSide(conn, head, bufResp.Writer, reply.Reader, &received, &sent); err != nil {
		entry.Debugf("listener %s: client relay error: %v", listenerName, err)
	}
}
