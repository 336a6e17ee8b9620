package cluster

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blackish/rust-gateway/internal/config"
	"github.com/blackish/rust-gateway/internal/httpconn"
	"github.com/blackish/rust-gateway/internal/services"
)

const dialTimeout = 10 * time.Second

// Member is the per-member worker (§4.8): owns one backend socket
// address, its keepalive policy, and its egress TLS posture.
type Member struct {
	log *logrus.Logger
	svc *services.Services

	cluster string
	addr    string
	cfg     config.ClusterMemberConfig
	cluCfg  config.Cluster
	status  *StatusMap

	inbox chan config.ClusterMessage

	stopChecker chan struct{}
}

// NewMember does not start the health checker or serve the inbox; call
// Run in its own goroutine.
func NewMember(log *logrus.Logger, svc *services.Services, cluster string, member config.ClusterMemberConfig, cluCfg config.Cluster, status *StatusMap) *Member {
	return &Member{
		log:     log,
		svc:     svc,
		cluster: cluster,
		addr:    member.Address,
		cfg:     member,
		cluCfg:  cluCfg,
		status:  status,
		inbox:   make(chan config.ClusterMessage, 4),
	}
}

func (m *Member) Inbox() chan<- config.ClusterMessage { return m.inbox }

// Run starts the health checker (if configured) and serves the inbox
// until RemoveCluster or the inbox is closed.
func (m *Member) Run() {
	m.log.Debugf("Starting cluster %s member %s", m.cluster, m.addr)
	if m.cluCfg.Keepalive != nil {
		m.stopChecker = make(chan struct{})
		go RunHealthChecker(m.log, m.svc, m.cluster, m.addr, *m.cluCfg.Keepalive, m.status, m.stopChecker)
	}

	for msg := range m.inbox {
		switch msg.Kind {
		case config.ClusterMessageConfigUpdate:
			if !m.handleConfigUpdate(msg.Update) {
				return
			}
		case config.ClusterMessageConnection:
			m.status.incActive(m.addr)
			go m.handleConnection(msg.Connection)
		}
	}
}

func (m *Member) handleConfigUpdate(u config.ConfigUpdate) bool {
	switch u.Kind {
	case config.ConfigUpdateRemoveCluster:
		m.stopHealthChecker()
		return false
	case config.ConfigUpdateCluster:
		keepaliveChanged := !sameKeepalive(m.cluCfg.Keepalive, u.Cluster.Keepalive)
		m.cluCfg = u.Cluster
		if keepaliveChanged {
			m.stopHealthChecker()
			if u.Cluster.Keepalive != nil {
				m.stopChecker = make(chan struct{})
				go RunHealthChecker(m.log, m.svc, m.cluster, m.addr, *u.Cluster.Keepalive, m.status, m.stopChecker)
			}
		}
	case config.ConfigUpdateTLS:
		// The egress handshake (see maybeWrapTLS) builds a fresh client
		// config per connection and never reads a named TLS config, so
		// there is nothing cached here to invalidate.
	}
	return true
}

func (m *Member) stopHealthChecker() {
	if m.stopChecker != nil {
		close(m.stopChecker)
		m.stopChecker = nil
	}
}

// handleConnection implements §4.8's ClusterConnection handling: dial,
// optional client TLS handshake, request a cluster-side pipe, reply, then
// run the backend-side counterpart of §4.6.
func (m *Member) handleConnection(conn config.ClusterConnection) {
	defer func() {
		m.svc.ClusterManager <- config.ClusterMessage{
			Kind: config.ClusterMessageConnectionClosed,
			ConnectionDone: config.ClusterConnectionClosed{
				Cluster: m.cluster,
				Member:  m.addr,
			},
		}
	}()

	rawConn, err := net.DialTimeout("tcp", m.addr, dialTimeout)
	if err != nil {
		m.log.Debugf("cluster %s: failed to connect to backend %s: %v", m.cluster, m.addr, err)
		conn.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyNoAvailableMember}
		return
	}

	backend, err := m.maybeWrapTLS(rawConn, conn.ClientSNI)
	if err != nil {
		m.log.Debugf("cluster %s: backend TLS handshake failed: %v", m.cluster, err)
		_ = rawConn.Close()
		conn.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyNoAvailableMember}
		return
	}

	bufReply := make(chan config.BufferResponseMessage, 1)
	m.svc.BufferAccount <- config.BufferMessage{Request: &config.BufferRequest{
		Kind:  config.BufferRequestCluster,
		Name:  m.cluster,
		Size:  config.RouteBuffer,
		Reply: bufReply,
	}}
	bufResp := <-bufReply
	if bufResp.Kind == config.BufferResponseOverLimit {
		_ = backend.Close()
		conn.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyBufferOverLimit}
		return
	}

	conn.Reply <- config.ListenerConnectionReply{Kind: config.ListenerReplyBuffer, Reader: bufResp.Reader}

	var received, sent int64
	scope := []config.MetricSource{
		{Kind: config.SourceCluster, Name: m.cluster},
		{Kind: config.SourceClusterMember, Name: m.addr},
	}
	if err := httpconn.RunBackendSide(backend, conn.ClientPipe, bufResp.Writer, &received, &sent); err != nil {
		m.log.Debugf("cluster %s member %s: backend relay error: %v", m.cluster, m.addr, err)
	}
	m.svc.Metrics <- config.Message{Scope: scope, Name: config.MetricBytesReceived, Value: config.CounterValue(received)}
	m.svc.Metrics <- config.Message{Scope: scope, Name: config.MetricBytesSent, Value: config.CounterValue(sent)}
}

// maybeWrapTLS applies the cluster's egress TLS policy (§4.8 "On start"):
// None passes the raw connection through; TransparentSni forwards the
// client's SNI; Sni(override) substitutes the configured name.
func (m *Member) maybeWrapTLS(raw net.Conn, clientSNI string) (net.Conn, error) {
	if m.cluCfg.TLS == nil || m.cluCfg.TLS.Kind == config.ClusterTlsNone {
		return raw, nil
	}
	serverName := clientSNI
	if m.cluCfg.TLS.Kind == config.ClusterTlsSni {
		serverName = m.cluCfg.TLS.Override
	}
	tlsConn := tls.Client(raw, &tls.Config{ServerName: serverName})
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	return tlsConn, nil
}
