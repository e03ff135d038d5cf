// Package mockapi serves deterministic power-usage and grid-event data with
// an artificial delay so the dashboard's cache behaviour can be observed
// against a slow backend.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/five82/gridwatch/internal/gridapi"
)

const (
	DefaultPowerDelay  = 1500 * time.Millisecond
	DefaultEventsDelay = 2000 * time.Millisecond
	DefaultPageSize    = 5
	maxDelay           = time.Minute
	shutdownTimeout    = 5 * time.Second
)

// Options configure the handler.
type Options struct {
	Dataset *Dataset // nil builds one from DefaultSeed
	Logger  *zap.Logger
}

type server struct {
	data   *Dataset
	logger *zap.Logger
}

// NewHandler returns the routed mock API.
func NewHandler(opts Options) http.Handler {
	s := &server{data: opts.Dataset, logger: opts.Logger}
	if s.data == nil {
		s.data = NewDataset(DefaultSeed)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("mockapi")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Route("/api", func(r chi.Router) {
		r.Get("/power-usage", s.powerUsage)
		r.Get("/grid-events", s.gridEvents)
		r.Get("/grid-events/metadata", s.metadata)
	})
	return r
}

// ListenAndServe serves handler on addr until ctx is cancelled. ready, when
// non-nil, receives the bound address once the listener is open.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(ln.Addr())
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) powerUsage(w http.ResponseWriter, r *http.Request) {
	delay, ok := durationParam(w, r, "delay", DefaultPowerDelay)
	if !ok {
		return
	}
	if !sleep(r.Context(), delay) {
		return
	}
	writeJSON(w, s.data.Power)
}

func (s *server) gridEvents(w http.ResponseWriter, r *http.Request) {
	delay, ok := durationParam(w, r, "delay", DefaultEventsDelay)
	if !ok {
		return
	}
	page, ok := intParam(w, r, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := intParam(w, r, "pageSize", DefaultPageSize)
	if !ok {
		return
	}
	if !sleep(r.Context(), delay) {
		return
	}
	writeJSON(w, Paginate(s.data.Events, page, pageSize))
}

func (s *server) metadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, gridapi.Metadata{
		TotalCount: len(s.data.Events),
		TotalPages: gridapi.TotalPages(len(s.data.Events), DefaultPageSize),
		PageSize:   DefaultPageSize,
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// sleep waits d or until the client goes away, reporting whether the
// handler should still respond.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func durationParam(w http.ResponseWriter, r *http.Request, name string, def time.Duration) (time.Duration, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return min(time.Duration(ms)*time.Millisecond, maxDelay), true
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
