// Package httpapi exposes the ingestion pipeline over HTTP: uploads create
// preview sessions, edits change them, and publish sends them to the
// question bank.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/aptis-ingest/internal/audit"
	"github.com/p-n-ai/aptis-ingest/internal/bank"
	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/session"
)

const (
	defaultMaxUpload = 20 << 20

	// publishSaveRetries bounds the extra attempts to store a session the
	// question bank has already accepted.
	publishSaveRetries = 3
)

// Options tunes the API.
type Options struct {
	MaxUploadBytes int64
	CORSOrigins    []string
	// Dedupe returns the existing unpublished session when the same file is
	// uploaded again for the same skill and part.
	Dedupe bool
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	pipeline  *ingest.Pipeline
	store     session.Store
	publisher *bank.Publisher
	events    audit.EventLogger
	opts      Options
	locks     *sessionLocks
	now       func() time.Time
}

// New creates a Server. A nil event logger discards events.
func New(pipeline *ingest.Pipeline, store session.Store, publisher *bank.Publisher, events audit.EventLogger, opts Options) *Server {
	if events == nil {
		events = audit.NopEventLogger{}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &Server{
		pipeline:  pipeline,
		store:     store,
		publisher: publisher,
		events:    events,
		opts:      opts,
		locks:     newSessionLocks(),
		now:       time.Now,
	}
}

// Routes returns the API router, to be mounted at the server root.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/question-set", s.handleReplaceQuestionSet)
			r.Post("/edits", s.handleEdit)
			r.Get("/live", s.handleLive)
			r.Post("/publish", s.handlePublish)
		})
	})
	return r
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks.
func (s *Server) originPatterns() []string {
	var hosts []string
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

func (s *Server) logEvent(e audit.Event) {
	if err := s.events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "session_id", e.SessionID, "error", err)
	}
}

// savePublished stores a session the question bank has accepted. Failed saves
// are retried, and the request's cancellation is ignored.
func (s *Server) savePublished(ctx context.Context, sess *ingest.Session) error {
	ctx = context.WithoutCancel(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	return backoff.RetryNotify(func() error {
		return s.store.Save(ctx, sess)
	}, backoff.WithMaxRetries(b, publishSaveRetries), func(err error, wait time.Duration) {
		slog.Warn("retrying save of published session",
			"session_id", sess.ID, "bank_id", sess.BankID, "wait", wait, "error", err)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string         `json:"error"`
	Issues []ingest.Issue `json:"issues,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// sessionLocks serializes edits to the same session.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until the caller holds id; the returned func releases it.
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
