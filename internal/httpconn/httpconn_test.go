package httpconn_test

import (
	"net"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/blackish/rust-gateway/internal/buffer"
	"github.com/blackish/rust-gateway/internal/config"
	. "github.com/blackish/rust-gateway/internal/httpconn"
)

func TestHTTPConn(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTPConn Suite")
}

var _ = Describe("ReadRequestHead", func() {
	It("parses the request line, normalizes the URI and captures the rest", func() {
		raw := "GET /a/../b/./c?z=1&a=2 HTTP/1.1\r\nHost: example.com\r\nX-Trace: abc\r\n\r\nleftover"
		head, err := ReadRequestHead(stringReader(raw))
		Expect(err).ToNot(HaveOccurred())
		Expect(head.Method).To(Equal("GET"))
		Expect(head.URI).To(Equal("/b/c?a=2&z=1"))
		Expect(head.ProtoVersion).To(Equal("1.1"))
		Expect(head.Headers).To(ConsistOf(
			HeaderField{Key: "Host", Value: "example.com"},
			HeaderField{Key: "X-Trace", Value: "abc"},
		))
		Expect(string(head.Rest)).To(Equal("leftover"))
	})

	It("rejects a request line that isn't exactly three tokens", func() {
		_, err := ReadRequestHead(stringReader("GET /a\r\n\r\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unsupported protocol version", func() {
		_, err := ReadRequestHead(stringReader("GET / HTTP/2.0\r\n\r\n"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MatchRoute", func() {
	prefixClause := config.PathMatch{Kind: config.PathMatchPrefix, Prefix: []string{"/api/"}}
	methodClause := config.PathMatch{Kind: config.PathMatchMethod, Methods: []string{"GET"}}
	vhosts := []config.VirtualHost{
		{
			HostNames: []config.Matcher{config.NewLiteralMatcher("example.com")},
			Routes: []config.Route{
				{PathMatches: []config.PathMatch{prefixClause, methodClause}, Actions: []config.Action{{Kind: config.ActionBackend, Backend: "api-cluster"}}},
			},
		},
	}

	It("matches AND across clauses and returns the first action", func() {
		head := &RequestHead{Method: "GET", URI: "/api/users", Headers: []HeaderField{{Key: "Host", Value: "example.com"}}}
		route, action, ok := MatchRoute(vhosts, head)
		Expect(ok).To(BeTrue())
		Expect(route.PathMatches).To(HaveLen(2))
		Expect(action.Backend).To(Equal("api-cluster"))
	})

	It("fails the whole route if one clause fails, even if another clause would pass", func() {
		head := &RequestHead{Method: "POST", URI: "/api/users", Headers: []HeaderField{{Key: "Host", Value: "example.com"}}}
		_, _, ok := MatchRoute(vhosts, head)
		Expect(ok).To(BeFalse())
	})

	It("fails a prefix clause with zero matching candidates, rather than treating it as a pass-through", func() {
		head := &RequestHead{Method: "GET", URI: "/other/path", Headers: []HeaderField{{Key: "Host", Value: "example.com"}}}
		_, _, ok := MatchRoute(vhosts, head)
		Expect(ok).To(BeFalse())
	})

	It("finds no route when no virtual host's host names match", func() {
		head := &RequestHead{Method: "GET", URI: "/api/users", Headers: []HeaderField{{Key: "Host", Value: "nope.example"}}}
		_, _, ok := MatchRoute(vhosts, head)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("RunBackendSide", func() {
	It("parses the backend's response head, recomposes it onto the listener pipe, and relays the rest", func() {
		backendConn, testConn := net.Pipe()
		clientPipeW, clientPipeR := buffer.New(4096)
		toListenerW, toListenerR := buffer.New(4096)

		var received, sent int64
		done := make(chan error, 1)
		go func() {
			done <- RunBackendSide(backendConn, clientPipeR, toListenerW, &received, &sent)
		}()

		go func() {
			_, _ = testConn.Write([]byte("HTTP/1.1 200 OK\r\nContent-length: 2\r\n\r\nok"))
		}()

		buf := make([]byte, 256)
		total := 0
		want := "HTTP/1.1 200 OK\r\nContent-length: 2\r\n\r\nok"
		for total < len(want) {
			n, err := toListenerR.Read(buf[total:])
			Expect(err).ToNot(HaveOccurred())
			total += n
		}
		Expect(string(buf[:total])).To(Equal(want))

		_, err := clientPipeW.Write([]byte("more-request-bytes"))
		Expect(err).ToNot(HaveOccurred())
		out := make([]byte, 64)
		n, err := testConn.Read(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out[:n])).To(Equal("more-request-bytes"))

		_ = clientPipeW.Close()
		_ = testConn.Close()
		Eventually(done, time.Second).Should(Receive())
	})
})

var _ = Describe("WriteError", func() {
	It("writes a minimal HTTP/1.0 error response and closes the connection", func() {
		serverConn, testConn := net.Pipe()
		done := make(chan struct{})
		go func() {
			_, _ = WriteError(serverConn, "404", "not found")
			close(done)
		}()

		out := make([]byte, 256)
		n, err := readAllUntilClose(testConn, out)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(out[:n])).To(Equal("HTTP/1.0 404\r\nConnection: close\r\nContent-length: 9\r\n\r\nnot found"))
		Eventually(done, time.Second).Should(BeClosed())
	})
})

// stringReader adapts a string to a plain io.Reader, exposing none of
// strings.NewReader's extra methods.
func stringReader(s string) *sliceReader { return &sliceReader{data: []byte(s)} }

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errEOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

type eofError struct{}

func (eofError) Error() string { return "EOF" }

var errEOF = eofError{}

// readAllUntilClose reads until the peer closes, tolerating the io.EOF that
// net.Pipe's Read returns once the writer side has closed.
func readAllUntilClose(r net.Conn, buf []byte) (int, error) {
	total := 0
	for {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, nil
		}
		if total >= len(buf) {
			return total, nil
		}
	}
}
