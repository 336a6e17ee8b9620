package bufferacct_test

import (
	"io"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	. "github.com/blackish/rust-gateway/internal/bufferacct"
	"github.com/blackish/rust-gateway/internal/config"
)

func TestBufferAcct(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Buffer Accountant Suite")
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func request(inbox chan<- config.BufferMessage, kind config.BufferRequestKind, name string, size int64) config.BufferResponseMessage {
	reply := make(chan config.BufferResponseMessage, 1)
	inbox <- config.BufferMessage{Request: &config.BufferRequest{Kind: kind, Name: name, Size: size, Reply: reply}}
	return <-reply
}

var _ = Describe("Accountant", func() {
	It("grants requests under an unlimited (zero) budget", func() {
		a := New(discardLogger())
		go a.Run()
		resp := request(a.Inbox(), config.BufferRequestListener, "front", 4096)
		Expect(resp.Kind).To(Equal(config.BufferResponseGranted))
		Expect(resp.Writer).ToNot(BeNil())
		Expect(resp.Reader).ToNot(BeNil())
	})

	It("refuses a request that would meet or exceed a configured budget", func() {
		a := New(discardLogger())
		go a.Run()
		a.Inbox() <- config.BufferMessage{Update: &config.ConfigUpdate{
			Kind:     config.ConfigUpdateListener,
			Listener: config.Listener{Name: "front", Buffer: 1000},
		}}

		resp1 := request(a.Inbox(), config.BufferRequestListener, "front", 600)
		Expect(resp1.Kind).To(Equal(config.BufferResponseGranted))

		resp2 := request(a.Inbox(), config.BufferRequestListener, "front", 600)
		Expect(resp2.Kind).To(Equal(config.BufferResponseOverLimit))
	})

	It("frees allocation on release, saturating at zero", func() {
		a := New(discardLogger())
		go a.Run()
		a.Inbox() <- config.BufferMessage{Update: &config.ConfigUpdate{
			Kind:     config.ConfigUpdateListener,
			Listener: config.Listener{Name: "front", Buffer: 1000},
		}}

		resp1 := request(a.Inbox(), config.BufferRequestListener, "front", 900)
		Expect(resp1.Kind).To(Equal(config.BufferResponseGranted))

		resp2 := request(a.Inbox(), config.BufferRequestListener, "front", 500)
		Expect(resp2.Kind).To(Equal(config.BufferResponseOverLimit))

		_ = request(a.Inbox(), config.BufferReleaseListener, "front", 900)

		resp3 := request(a.Inbox(), config.BufferRequestListener, "front", 500)
		Expect(resp3.Kind).To(Equal(config.BufferResponseGranted))
	})

	It("grants a name's very first request regardless of budget, then enforces the budget on later requests", func() {
		a := New(discardLogger())
		go a.Run()
		a.Inbox() <- config.BufferMessage{Update: &config.ConfigUpdate{
			Kind:     config.ConfigUpdateListener,
			Listener: config.Listener{Name: "front", Buffer: 100},
		}}
		resp1 := request(a.Inbox(), config.BufferRequestListener, "front", 200)
		Expect(resp1.Kind).To(Equal(config.BufferResponseGranted))

		resp2 := request(a.Inbox(), config.BufferRequestListener, "front", 50)
		Expect(resp2.Kind).To(Equal(config.BufferResponseOverLimit))
	})

	It("refreshes a listener's budget on a later ListenerConfig update", func() {
		a := New(discardLogger())
		go a.Run()
		a.Inbox() <- config.BufferMessage{Update: &config.ConfigUpdate{
			Kind:     config.ConfigUpdateListener,
			Listener: config.Listener{Name: "front", Buffer: 100},
		}}
		resp1 := request(a.Inbox(), config.BufferRequestListener, "front", 200)
		Expect(resp1.Kind).To(Equal(config.BufferResponseGranted))

		resp2 := request(a.Inbox(), config.BufferRequestListener, "front", 50)
		Expect(resp2.Kind).To(Equal(config.BufferResponseOverLimit))

		a.Inbox() <- config.BufferMessage{Update: &config.ConfigUpdate{
			Kind:     config.ConfigUpdateListener,
			Listener: config.Listener{Name: "front", Buffer: 1000},
		}}
		resp3 := request(a.Inbox(), config.BufferRequestListener, "front", 50)
		Expect(resp3.Kind).To(Equal(config.BufferResponseGranted))
	})
})
