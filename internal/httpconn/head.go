// Package httpconn implements the HTTP/1.x head-only framing described in
// spec §4.5/§4.6/§4.8: parse exactly one request or response head off a
// socket, normalize and route it, then hand the connection to the shared
// pipeline for raw relay. There is no body framing and no keep-alive reuse
// (spec §1 Non-goals) — "the rest" is whatever arrived past the header
// terminator in the same read, forwarded verbatim.
package httpconn

import (
	"strconv"
	"strings"

	"github.com/blackish/rust-gateway/internal/apperr"
	"github.com/blackish/rust-gateway/internal/uri"
)

const scratchSize = 8192

const (
	httpProto = "HTTP"
)

var httpVersions = map[string]bool{"1.0": true, "1.1": true}

// HeaderField preserves the insertion-order bytes of one header line
// (invariant I3: the gateway writes headers back in the order it read
// them, not a canonicalized order).
type HeaderField struct {
	Key   string
	Value string
}

func headerGet(headers []HeaderField, key string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// RequestHead is a parsed HTTP/1.0 or HTTP/1.1 request line plus headers.
type RequestHead struct {
	Line         string
	Method       string
	URI          string
	ProtoVersion string
	Headers      []HeaderField
	Rest         []byte
}

// ResponseHead is a parsed HTTP status line plus headers, read off a
// backend socket.
type ResponseHead struct {
	Line         string
	ProtoVersion string
	StatusCode   int
	Headers      []HeaderField
	Rest         []byte
}

// byteReader is the minimal surface readLine needs; both net.Conn and the
// strict buffer's Reader satisfy it.
type byteReader interface {
	Read(p []byte) (int, error)
}

// readLine scans buf[pos:filled] for a trailing '\n', refilling from r via
// Read calls as needed. Unlike the original implementation's byte-by-byte
// UTF-8 reconstruction (required because Rust's String must hold valid
// UTF-8), Go strings are plain byte sequences, so the accumulated line can
// simply be appended to verbatim — no multi-byte decoding is needed to stay
// byte-faithful to whatever the peer sent.
func readLine(r byteReader, buf []byte, pos, filled int) (string, int, int, error) {
	var sb strings.Builder
	for {
		for pos < filled {
			b := buf[pos]
			pos++
			if b == '\n' {
				return sb.String(), pos, filled, nil
			}
			sb.WriteByte(b)
		}
		n, err := r.Read(buf)
		if n == 0 && err == nil {
			continue
		}
		if n == 0 {
			if err == nil {
				continue
			}
			return "", pos, filled, err
		}
		filled = n
		pos = 0
	}
}

func readHeaderLines(r byteReader, buf []byte, pos, filled int) ([]HeaderField, int, int, []byte, error) {
	var headers []HeaderField
	for {
		line, newPos, newFilled, err := readLine(r, buf, pos, filled)
		if err != nil {
			return headers, newPos, newFilled, nil, err
		}
		pos, filled = newPos, newFilled
		t := strings.TrimRight(line, "\r\n")
		if t == "" {
			break
		}
		if k, v, ok := strings.Cut(t, ": "); ok {
			headers = append(headers, HeaderField{Key: k, Value: v})
		}
	}
	var rest []byte
	if pos < filled {
		rest = append([]byte(nil), buf[pos:filled]...)
	}
	return headers, pos, filled, rest, nil
}

// ReadRequestHead parses one request line and its headers off r (§4.5 step
// 1). The URI is normalized via internal/uri before being stored.
func ReadRequestHead(r byteReader) (*RequestHead, error) {
	buf := make([]byte, scratchSize)
	line, pos, filled, err := readLine(r, buf, 0, 0)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimRight(line, "\r\n")
	parts := strings.Split(trimmed, " ")
	if len(parts) != 3 {
		return nil, apperr.New(apperr.CodeInvalidHead, "malformed request line", nil)
	}
	protoVer := strings.SplitN(parts[2], "/", 2)
	if len(protoVer) != 2 || protoVer[0] != httpProto || !httpVersions[protoVer[1]] {
		return nil, apperr.New(apperr.CodeInvalidHead, "unsupported protocol or version", nil)
	}
	headers, _, _, rest, err := readHeaderLines(r, buf, pos, filled)
	if err != nil {
		return nil, err
	}
	return &RequestHead{
		Line:         trimmed,
		Method:       parts[0],
		URI:          uri.Normalize(parts[1]),
		ProtoVersion: protoVer[1],
		Headers:      headers,
		Rest:         rest,
	}, nil
}

// readResponseHead parses a status line and headers off a backend socket
// (§4.8 step 5).
func readResponseHead(r byteReader) (*ResponseHead, error) {
	buf := make([]byte, scratchSize)
	line, pos, filled, err := readLine(r, buf, 0, 0)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(trimmed, " ", 3)
	if len(parts) < 2 {
		return nil, apperr.New(apperr.CodeInvalidHead, "malformed status line", nil)
	}
	protoVer := strings.SplitN(parts[0], "/", 2)
	if len(protoVer) != 2 || protoVer[0] != httpProto {
		return nil, apperr.New(apperr.CodeInvalidHead, "unsupported protocol", nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidHead, "malformed status code", err)
	}
	headers, _, _, rest, err := readHeaderLines(r, buf, pos, filled)
	if err != nil {
		return nil, err
	}
	return &ResponseHead{
		Line:         trimmed,
		ProtoVersion: protoVer[1],
		StatusCode:   code,
		Headers:      headers,
		Rest:         rest,
	}, nil
}
