// Package server exposes an infographic session as a local web UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/menta2k/infographic-lens/pkg/canvas"
	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/session"
)

// Options configure a Server
type Options struct {
	Suggestions []string
	Logger      *slog.Logger
}

// Server serves the search page, the canvas and the image endpoints for one session
type Server struct {
	session     *session.Session
	composer    *canvas.Composer
	processor   *processing.Processor
	suggestions []string
	logger      *slog.Logger
	router      chi.Router
}

// New creates a server for sess
func New(sess *session.Session, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session:     sess,
		composer:    canvas.NewComposer(nil),
		processor:   processing.NewProcessor(),
		suggestions: opts.Suggestions,
		logger:      logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", s.handlePage)
	r.Get("/view", s.handleView)
	r.Get("/events", s.handleEvents)

	r.With(middleware.AllowContentType("application/x-www-form-urlencoded", "multipart/form-data", "application/json")).
		Post("/search", s.handleSearch)
	r.Post("/reset", s.handleReset)

	r.Get("/api/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, toStateJSON(s.session.State()))
	})

	r.Get("/image", s.handleImage)
	r.Get("/image/annotated.png", s.handleAnnotated)
	r.Get("/segments/{index}.png", s.handleSegment)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Query string `json:"query"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 16*1024)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		query = req.Query
	} else {
		query = r.FormValue("query")
	}

	st := s.session.Submit(query)
	s.respond(w, r, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st := s.session.Reset()
	s.respond(w, r, st)
}

// respond answers JSON clients with the state and redirects form posts
func (s *Server) respond(w http.ResponseWriter, r *http.Request, st session.State) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, toStateJSON(st))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/events" || r.URL.Path == "/health" {
			return
		}
		s.logger.Debug("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
