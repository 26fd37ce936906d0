package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hallgrim/scriptbench/internal/config"
	"github.com/hallgrim/scriptbench/internal/health"
	"github.com/hallgrim/scriptbench/internal/observe"
	"github.com/hallgrim/scriptbench/internal/partition"
)

// fragmentMaxAge is the Cache-Control max-age for fragment responses.
// Fragments are content-addressed: a changed sample gets a new identifier,
// so stale entries can never be served under a current id.
const fragmentMaxAge = 31536000 // one year, in seconds

// staleWhileRevalidate allows clients to reuse an expired index briefly
// while refetching in the background.
const staleWhileRevalidate = 60

// Server serves the partitioned artifacts and the comparison API.
type Server struct {
	cfg     config.ViewerConfig
	metrics *observe.Metrics

	view     *IndexView
	store    *FragmentStore
	comparer *Comparer
	searcher *Searcher

	httpServer *http.Server
}

// New loads the compare index from cfg.DataDir and assembles the server.
// The index must exist: a viewer without data serves nothing useful.
func New(cfg config.ViewerConfig, metrics *observe.Metrics) (*Server, error) {
	indexPath := filepath.Join(cfg.DataDir, partition.IndexFile)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("viewer: read index %q: %w", indexPath, err)
	}
	index := &partition.Index{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, fmt.Errorf("viewer: decode index %q: %w", indexPath, err)
	}

	view := NewIndexView(index)
	store := NewFragmentStore(DirSource{Dir: cfg.DataDir}, metrics)

	var record func(float64)
	if metrics != nil {
		record = func(seconds float64) {
			metrics.DiffDuration.Record(context.Background(), seconds)
		}
	}

	s := &Server{
		cfg:      cfg,
		metrics:  metrics,
		view:     view,
		store:    store,
		comparer: NewComparer(view, store, record),
		searcher: NewSearcher(view, cfg.Search.Threshold, cfg.Search.MaxResults),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler builds the full route table, wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /data/", http.StripPrefix("/data/", s.artifactHandler()))
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(health.ArtifactsChecker(s.cfg.DataDir, partition.IndexFile)).Register(mux)

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	slog.Info("viewer listening", "addr", s.cfg.ListenAddr, "data_dir", s.cfg.DataDir,
		"samples", len(s.view.Samples()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("viewer: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("viewer: shutdown: %w", err)
		}
		return nil
	}
}

// artifactHandler serves the artifact directory with cache headers chosen by
// content class: content-addressed fragments are effectively immutable,
// index and summary documents get the configured max-age plus a
// stale-while-revalidate grace.
func (s *Server) artifactHandler() http.Handler {
	fs := http.FileServer(http.Dir(s.cfg.DataDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, partition.FragmentDir+"/") {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", fragmentMaxAge))
		} else {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
				s.cfg.CacheMaxAgeSeconds, staleWhileRevalidate))
		}
		fs.ServeHTTP(w, r)
	})
}

// handleCompare serves GET /api/compare?sample=<id>&model=<label>.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	sampleID := r.URL.Query().Get("sample")
	model := r.URL.Query().Get("model")
	if sampleID == "" || model == "" {
		writeError(w, http.StatusBadRequest, "sample and model query parameters are required")
		return
	}

	cmp, err := s.comparer.Compare(r.Context(), sampleID, model)
	if err != nil {
		var unknown ErrUnknownSample
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		observe.Logger(r.Context()).Error("comparison failed",
			"sample", sampleID, "model", model, "err", err)
		writeError(w, http.StatusBadGateway, "fragment load failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cmp)
}

// handleSearch serves GET /api/search?q=<query>.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	matches := s.searcher.Search(query)
	s.countSearch(r.Context(), len(matches) > 0)

	if matches == nil {
		matches = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "matches": matches})
}

func (s *Server) countSearch(ctx context.Context, matched bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueries.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("matched", matched)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
