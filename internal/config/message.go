package config

import (
	"io"
)

// ConfigUpdateKind tags the variant a ConfigUpdate holds. The same message
// shape travels to the listener manager, the cluster manager and
// individual workers (§4.4, §4.7, §4.8), so it lives once in this package.
type ConfigUpdateKind int

const (
	ConfigUpdateListener ConfigUpdateKind = iota
	ConfigUpdateTLS
	ConfigUpdateCluster
	ConfigUpdateRemoveCluster
	ConfigUpdateRemoveListener
	ConfigUpdateNotExist
)

// ConfigUpdate is pushed by the config source to the listener manager, the
// cluster manager, and fanned further to individual workers.
type ConfigUpdate struct {
	Kind     ConfigUpdateKind
	Listener Listener
	TLS      TLSConfig
	Cluster  Cluster
	Name     string
}

// ConfigRequestKind tags which lookup a ConfigRequest asks the config
// source to perform. TLS lookups are served on demand (§2 "Config source").
type ConfigRequestKind int

const (
	ConfigRequestTLS ConfigRequestKind = iota
)

// ConfigRequest asks the config source to resolve a named TLS config; Reply
// receives TLSConfig and ok=false if the name is unknown.
type ConfigRequest struct {
	Kind  ConfigRequestKind
	Name  string
	Reply chan<- ConfigRequestReply
}

type ConfigRequestReply struct {
	TLS TLSConfig
	Ok  bool
}

// ClusterMessageKind tags which variant a ClusterMessage holds.
type ClusterMessageKind int

const (
	ClusterMessageConfigUpdate ClusterMessageKind = iota
	ClusterMessageConnection
	ClusterMessageConnectionClosed
)

// ListenerReplyKind tags the cluster manager/actor/member's reply to a
// ClusterConnection request (§4.5 step 3).
type ListenerReplyKind int

const (
	ListenerReplyBuffer ListenerReplyKind = iota
	ListenerReplyClusterNotFound
	ListenerReplyNoAvailableMember
	ListenerReplyBufferOverLimit
)

// ListenerConnectionReply is what a ClusterConnection request's reply
// channel carries back to the HTTP connection worker.
type ListenerConnectionReply struct {
	Kind   ListenerReplyKind
	Reader io.Reader
}

// ClusterConnection is the request a listener's HTTP connection worker
// sends to ask for a backend — first to the cluster manager (which routes
// by cluster name), then forwarded to the selected cluster actor and
// member worker.
type ClusterConnection struct {
	Cluster     string
	ClientSNI   string
	Route       Route
	ClientPipe  io.Reader
	Reply       chan<- ListenerConnectionReply
}

// ClusterConnectionClosed notifies the cluster manager/actor that a
// dispatched connection to Member has ended, so its Active count can be
// decremented.
type ClusterConnectionClosed struct {
	Cluster string
	Member  string
}

// ClusterMessage is the tagged union the cluster manager's and each cluster
// actor's inbox accepts.
type ClusterMessage struct {
	Kind           ClusterMessageKind
	Update         ConfigUpdate
	Connection     ClusterConnection
	ConnectionDone ClusterConnectionClosed
}

// BufferRequestKind tags which scope (listener or cluster) a buffer request
// targets, per §4.2.
type BufferRequestKind int

const (
	BufferRequestListener BufferRequestKind = iota
	BufferRequestCluster
	BufferReleaseListener
	BufferReleaseCluster
)

// BufferResponseKind tags the buffer accountant's reply.
type BufferResponseKind int

const (
	BufferResponseGranted BufferResponseKind = iota
	BufferResponseOverLimit
)

// BufferResponseMessage is the buffer accountant's one-shot reply.
type BufferResponseMessage struct {
	Kind   BufferResponseKind
	Writer io.WriteCloser
	Reader io.Reader
}

// BufferRequest is sent to the buffer accountant to request or release a
// named budget's allocation.
type BufferRequest struct {
	Kind  BufferRequestKind
	Name  string
	Size  int64
	Reply chan<- BufferResponseMessage
}

// BufferMessage additionally carries ConfigUpdate so the accountant can
// refresh a listener's or cluster's budget on snapshot arrival, alongside
// BufferRequest traffic on the same inbox.
type BufferMessage struct {
	Request *BufferRequest
	Update  *ConfigUpdate
}
