package httpconn

import (
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/blackish/rust-gateway/internal/pipeline"
)

// NewTraceID returns a fresh per-connection identifier for log
// correlation (§4.5 note on request tracing). It carries no protocol
// meaning; nothing in the proxy path parses or forwards it.
func NewTraceID() string {
	return uuid.NewString()
}

// countingReader/countingWriter attribute every byte that crosses a socket
// boundary to the connection's received/sent counters, including bytes
// consumed while parsing a head — mirroring original_source's read_headers,
// which folds its own byte count into the same accumulator the later
// relay loop uses.
type countingReader struct {
	r io.Reader
	n *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	*c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}

// writeHead re-serializes a head in wire form: this is the one point on
// each side of the proxy where HTTP syntax is re-emitted, per §4.6 — every
// other byte is relayed verbatim.
func writeHead(w io.Writer, line string, headers []HeaderField, rest []byte) error {
	if _, err := io.WriteString(w, line); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Key, h.Value); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	if len(rest) > 0 {
		if _, err := w.Write(rest); err != nil {
			return err
		}
	}
	return nil
}

// RunClientSide implements the listener-side half of §4.6: recompose and
// write the already-parsed request head into the pipe bound for the
// cluster, then relay raw bytes in both directions until both directions
// have ended. received counts bytes read from conn (the client socket);
// sent counts the recomposed head written to the cluster pipe plus the
// bytes relayed from the cluster back to conn.
func RunClientSide(conn net.Conn, head *RequestHead, toCluster io.WriteCloser, fromCluster io.Reader, received, sent *int64) error {
	cw := &countingWriter{w: toCluster, n: sent}
	if err := writeHead(cw, head.Line, head.Headers, head.Rest); err != nil {
		_ = toCluster.Close()
		_ = conn.Close()
		return err
	}
	return pipeline.Run(conn, toCluster, fromCluster, received, sent)
}

// RunBackendSide implements the cluster member's half of §4.8 step 5:
// parse the backend's response head off backend, recompose it into the
// pipe bound for the listener, then relay raw bytes in both directions.
// received counts bytes read from backend (the response); sent counts the
// recomposed head written to the listener pipe plus the bytes relayed from
// the client pipe to backend.
func RunBackendSide(backend net.Conn, clientPipe io.Reader, toListener io.WriteCloser, received, sent *int64) error {
	cr := &countingReader{r: backend, n: received}
	head, err := readResponseHead(cr)
	if err != nil {
		_ = toListener.Close()
		_ = backend.Close()
		return err
	}
	cw := &countingWriter{w: toListener, n: sent}
	if err := writeHead(cw, head.Line, head.Headers, head.Rest); err != nil {
		_ = toListener.Close()
		_ = backend.Close()
		return err
	}
	return pipeline.Run(backend, toListener, clientPipe, received, sent)
}

// WriteError writes a minimal HTTP/1.0 error response (§4.5 step 3's
// failure replies) and closes conn. It returns the number of bytes written
// so the caller can fold them into its sent metric.
func WriteError(conn net.Conn, status, msg string) (int64, error) {
	body := msg
	var n int64
	write := func(s string) error {
		written, err := io.WriteString(conn, s)
		n += int64(written)
		return err
	}
	if err := write("HTTP/1.0 " + status + "\r\n"); err != nil {
		_ = conn.Close()
		return n, err
	}
	if err := write(fmt.Sprintf("Connection: close\r\nContent-length: %d\r\n\r\n", len(body))); err != nil {
		_ = conn.Close()
		return n, err
	}
	if err := write(body); err != nil {
		_ = conn.Close()
		return n, err
	}
	_ = conn.Close()
	return n, nil
}
