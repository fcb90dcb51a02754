// Package httpserver constructs the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server for the operator API. Write timeout is generous
// because artifact downloads stream decompressed XML batches.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
