// Package site serves the embedded landing page.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Error constants
var (
	ErrServe = errors.New("site serve failed")
)

// Register attaches the landing page routes to mux. Only the exact root and
// the stylesheet are claimed, so unknown paths still 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	h := NewRootHandler()
	mux.HandleFunc("GET /{$}", h.HandleRoot)
	mux.HandleFunc("GET /style.css", h.HandleAsset)
}

// RootHandler serves the embedded files.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}

// HandleAsset handles GET requests for static assets.
func (h *RootHandler) HandleAsset(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
