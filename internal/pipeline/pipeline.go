// Package pipeline implements the bidirectional byte pipeline shared by
// both halves of a proxied connection (spec §4.6): the listener-side HTTP
// connection worker runs it between the client socket and the pair of
// pipes it holds, and the cluster member worker runs its backend-side
// counterpart (§4.8 step 5) between the backend socket and the same pair
// of pipes, seen from the other end. Both are the identical two-branch
// cooperative loop, so one implementation serves both callers.
package pipeline

import (
	"io"
	"net"
	"sync/atomic"
)

const scratchSize = 8192

// halfCloser is implemented by *net.TCPConn; HalfCloseWrite uses it. Run
// never half-closes sock: it closes it in full once both branches have
// exited.
type halfCloser interface {
	CloseWrite() error
}

// Run executes the two-branch relay described in §4.6:
//
//   - branch A: read sock, write into toPeer (the write pipe headed toward
//     the other side); 0-byte read or error closes toPeer, then returns.
//     sock is not half-closed.
//   - branch B: read fromPeer (the read pipe arriving from the other
//     side) and write to sock; 0-byte read returns without closing sock.
//
// Both branches run concurrently. Run closes sock and returns only once
// both have exited, so a finished branch B does not end a branch A that is
// still blocked reading sock.
// sent and received are incremented atomically as bytes move, letting the
// caller emit byte-count metrics once Run returns.
func Run(sock io.ReadWriteCloser, toPeer io.WriteCloser, fromPeer io.Reader, received, sent *int64) error {
	done := make(chan error, 2)

	go func() {
		done <- branchA(sock, toPeer, received)
	}()
	go func() {
		done <- branchB(sock, fromPeer, sent)
	}()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil && first == nil {
			first = err
		}
	}
	_ = sock.Close()
	return first
}

func branchA(sock io.Reader, toPeer io.WriteCloser, received *int64) error {
	buf := make([]byte, scratchSize)
	for {
		n, err := sock.Read(buf)
		if n > 0 {
			if _, werr := toPeer.Write(buf[:n]); werr != nil {
				_ = toPeer.Close()
				return werr
			}
			atomic.AddInt64(received, int64(n))
		}
		if err != nil {
			_ = toPeer.Close()
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			_ = toPeer.Close()
			return nil
		}
	}
}

func branchB(sock io.Writer, fromPeer io.Reader, sent *int64) error {
	buf := make([]byte, scratchSize)
	for {
		n, err := fromPeer.Read(buf)
		if n > 0 {
			if _, werr := sock.Write(buf[:n]); werr != nil {
				return werr
			}
			atomic.AddInt64(sent, int64(n))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// HalfCloseWrite shuts the write side of sock if it supports it (a
// *net.TCPConn does); otherwise it is a no-op, relying on the eventual
// full Close in Run.
func HalfCloseWrite(sock net.Conn) {
	if hc, ok := sock.(halfCloser); ok {
		_ = hc.CloseWrite()
	}
}
