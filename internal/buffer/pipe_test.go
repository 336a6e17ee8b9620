package buffer_test

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/blackish/rust-gateway/internal/buffer"
)

func TestBuffer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Buffer Suite")
}

var _ = Describe("strict buffer", func() {
	It("round-trips a write through a read", func() {
		w, r := New(1024)
		n, err := w.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(5))

		out := make([]byte, 16)
		n, err = r.Read(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(5))
		Expect(string(out[:n])).To(Equal("hello"))
	})

	It("resets both cursors to zero once fully drained", func() {
		w, r := New(1024)
		_, err := w.Write(make([]byte, 1024))
		Expect(err).ToNot(HaveOccurred())

		out := make([]byte, 1024)
		n, err := r.Read(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(1024))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, werr := w.Write(make([]byte, 1024))
			Expect(werr).ToNot(HaveOccurred())
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("never copies more than capacity in one write", func() {
		w, _ := New(8)
		n, err := w.Write([]byte("0123456789"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(8))
	})

	It("wakes a parked reader with a 0-byte read on writer close", func() {
		w, r := New(16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			out := make([]byte, 16)
			n, err := r.Read(out)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(0))
		}()
		time.Sleep(10 * time.Millisecond)
		Expect(w.Close()).To(Succeed())
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("wakes a parked reader with a 0-byte read on writer drop", func() {
		w, r := New(16)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]byte, 16)
			n, err := r.Read(out)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(0))
		}()
		time.Sleep(10 * time.Millisecond)
		w.Drop()
		wg.Wait()
	})

	It("delivers interleaved writes to the reader in order", func() {
		w, r := New(64)
		want := []byte("the quick brown fox jumps over the lazy dog")
		var got []byte
		done := make(chan struct{})
		go func() {
			defer close(done)
			buf := make([]byte, 7)
			for {
				n, _ := r.Read(buf)
				if n == 0 {
					break
				}
				got = append(got, buf[:n]...)
				if len(got) >= len(want) {
					break
				}
			}
		}()
		for i := 0; i < len(want); i += 3 {
			end := i + 3
			if end > len(want) {
				end = len(want)
			}
			_, err := w.Write(want[i:end])
			Expect(err).ToNot(HaveOccurred())
		}
		<-done
		Expect(string(got)).To(Equal(string(want)))
	})
})
