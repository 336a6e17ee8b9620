package uri_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/blackish/rust-gateway/internal/uri"
)

func TestURI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "URI Normalization Suite")
}

var _ = Describe("Normalize", func() {
	It("collapses . and .. segments", func() {
		got := Normalize("/test/../../test1/./test2?test1=1&test2=2&test3#ref")
		Expect(got).To(Equal("/test1/test2?test1=1&test2=2&test3#ref"))
	})

	It("leaves the root path alone", func() {
		Expect(Normalize("/")).To(Equal("/"))
	})

	It("leaves an empty path alone", func() {
		Expect(Normalize("")).To(Equal(""))
	})

	It("passes unreserved characters through literally", func() {
		Expect(Normalize("/abcXYZ-._~123")).To(Equal("/abcXYZ-._~123"))
	})

	It("percent-encodes a reserved character", func() {
		Expect(Normalize("/a b")).To(Equal("/a%20b"))
	})

	It("is idempotent", func() {
		cases := []string{
			"/api/x?a=1",
			"/a/b/../c/./d?z=9&a=1#frag",
			"/a%2Fb/c",
			"/%41%42%2d",
			"/",
			"",
		}
		for _, c := range cases {
			once := Normalize(c)
			twice := Normalize(once)
			Expect(twice).To(Equal(once), "not idempotent for %q", c)
		}
	})
})
