package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server for addr. The handlers' static files are
// replaced by the embedded ones.
func NewServer(addr string, handlers *Handlers) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}
	handlers.staticFS = subFS

	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	mux := http.NewServeMux()

	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("GET /assets", h.HandleAssets)
	mux.HandleFunc("POST /mode", h.HandleMode)
	mux.HandleFunc("POST /camera", h.intent(h.Intents.ChangeCamera))
	mux.HandleFunc("POST /focus", h.HandleFocus)
	mux.HandleFunc("POST /photo", h.intent(h.Intents.CapturePhoto))
	mux.HandleFunc("POST /record", h.intent(h.Intents.ToggleRecording))
	mux.HandleFunc("POST /resume", h.intent(h.Intents.ResumeInterruptedSession))
	mux.HandleFunc("POST /toggle/{mode}", h.HandleToggle)
	mux.HandleFunc("POST /orientation", h.HandleOrientation)
	mux.HandleFunc("POST /sim/event", h.HandleSimEvent)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	mux.HandleFunc("GET /{$}", h.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
