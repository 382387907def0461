package server

import (
	"context"
	"io"
	"net"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTPServer", func() {
	It("should serve until the context is done", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).Should(Succeed())

		sut := NewHTTPServer("api", http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
			_, _ = rw.Write([]byte("ok"))
		}))
		Expect(sut.String()).Should(Equal("api"))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)

		go func() {
			errCh <- sut.Serve(ctx, l)
		}()

		resp, err := http.Get("http://" + l.Addr().String())
		Expect(err).Should(Succeed())

		body, err := io.ReadAll(resp.Body)
		Expect(err).Should(Succeed())
		Expect(resp.Body.Close()).Should(Succeed())
		Expect(string(body)).Should(Equal("ok"))

		cancel()

		Eventually(errCh).Should(Receive(BeNil()))
	})
})
