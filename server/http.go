package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves the HTTP endpoints of a running test bed
type HTTPServer struct {
	inner http.Server

	name string
}

// NewHTTPServer creates a server for handler, nothing is bound before Serve
func NewHTTPServer(name string, handler http.Handler) *HTTPServer {
	const (
		readHeaderTimeout = 20 * time.Second
		readTimeout       = 20 * time.Second
		writeTimeout      = 20 * time.Second
	)

	return &HTTPServer{
		inner: http.Server{
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,

			Handler: handler,
		},

		name: name,
	}
}

func (s *HTTPServer) String() string {
	return s.name
}

// Serve serves on l until ctx is done. Closing returns nil.
func (s *HTTPServer) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()

		s.inner.Close()
	}()

	err := s.inner.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
