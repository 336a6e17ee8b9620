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

// Package buffer implements the bounded single-producer/single-consumer byte
// pipe that carries bytes between the client-facing and cluster-facing
// halves of a proxied connection.
//
// The pipe is strict, not a ring: once the write cursor reaches capacity and
// nothing has been read yet, writers block until a read drains the buffer to
// empty, at which point both cursors reset to zero. This mirrors the
// behaviour of StrictBuffer in the original Rust implementation, built on a
// single Mutex-guarded cursor pair and a sync.Cond that wakes every waiter
// on each change, instead of a ring.
package buffer

import (
	"io"
	"sync"
)

// strictBuffer is the shared guarded region between a Writer and a Reader.
type strictBuffer struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	readCursor int
	writeCursor int
	shutdown   bool
	// refs counts live endpoints (writer + reader); the reader uses this to
	// tell "writer dropped" apart from "writer shut down but alive".
	refs int
}

// Writer is the producer half of a strict buffer pipe.
type Writer struct {
	b *strictBuffer
}

// Reader is the consumer half of a strict buffer pipe.
type Reader struct {
	b *strictBuffer
}

// New creates a bounded byte pipe of the given capacity as a (writer, reader)
// pair sharing one guarded region. Capacity must be positive.
func New(capacity int) (*Writer, *Reader) {
	b := &strictBuffer{
		buf:  make([]byte, capacity),
		refs: 2,
	}
	b.cond = sync.NewCond(&b.mu)
	return &Writer{b: b}, &Reader{b: b}
}

// Write copies as much of p as fits before the buffer's capacity is
// reached, blocking when the buffer is full until a reader drains it.
// Once the pipe is shut down, Write is a no-op returning (0, nil) — the
// original StrictBuffer spec, matched here.
func (w *Writer) Write(p []byte) (int, error) {
	b := w.b
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.shutdown {
			return 0, nil
		}
		if b.writeCursor < len(b.buf) {
			n := copy(b.buf[b.writeCursor:], p)
			b.writeCursor += n
			b.cond.Broadcast()
			return n, nil
		}
		b.cond.Wait()
	}
}

// Close shuts the writer side down: future writes are no-ops and a reader
// parked on an empty buffer is woken with a zero-byte read.
func (w *Writer) Close() error {
	b := w.b
	b.mu.Lock()
	if !b.shutdown {
		b.cond.Broadcast()
	}
	b.shutdown = true
	b.mu.Unlock()
	return nil
}

// Drop releases the writer's reference without shutting the pipe down. Used
// when a writer handle is discarded without an explicit protocol-level
// close (mirrors the Rust Arc refcount drop that lets a blocked Reader see
// "writer gone" and return a clean 0-byte read).
func (w *Writer) Drop() {
	b := w.b
	b.mu.Lock()
	b.refs--
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Flush is a no-op; the pipe has no internal buffering beyond the shared
// region itself.
func (w *Writer) Flush() error { return nil }

// Read copies out whatever is available, advancing the read cursor. When
// the read drains the buffer to empty, both cursors reset to zero
// (invariant I5) so the writer can fill it again from position zero. A
// read against a shut-down, empty pipe, or one whose writer has dropped,
// returns (0, nil) per io.Reader's EOF-like convention for this pipe.
func (r *Reader) Read(p []byte) (int, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.readCursor < b.writeCursor {
			n := copy(p, b.buf[b.readCursor:b.writeCursor])
			r.b.readCursor += n
			if b.readCursor >= b.writeCursor {
				b.readCursor = 0
				b.writeCursor = 0
			}
			b.cond.Broadcast()
			return n, nil
		}
		if b.shutdown {
			return 0, nil
		}
		if b.refs <= 1 {
			return 0, nil
		}
		b.cond.Wait()
	}
}

// Drop releases the reader's reference.
func (r *Reader) Drop() {
	b := r.b
	b.mu.Lock()
	b.refs--
	b.cond.Broadcast()
	b.mu.Unlock()
}

var (
	_ io.Writer = (*Writer)(nil)
	_ io.Reader = (*Reader)(nil)
)
