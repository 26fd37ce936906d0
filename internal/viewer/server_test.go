package viewer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hallgrim/scriptbench/internal/config"
	"github.com/hallgrim/scriptbench/internal/partition"
	"github.com/hallgrim/scriptbench/internal/results"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	doc := &results.Document{
		Benchmark: results.Benchmark{
			Name:      "manuscripts-2026",
			Timestamp: "2026-08-30T12:00:00Z",
			Config: results.Config{
				Models: []results.ModelConfig{{Label: "scribe-a"}, {Label: "scribe-b"}},
			},
		},
		Results: []results.Row{
			{
				Group: "gospels", Label: "Folio 3r", Image: "folio_3r.png",
				GroundTruthText: "in principio erat verbum",
				Model:           "scribe-a", ModelOutput: "in prinzipio erat verbum",
				Metrics: &results.MetricScores{CER: 0.04},
			},
			{
				Group: "gospels", Label: "Folio 3r", Image: "folio_3r.png",
				GroundTruthText: "in principio erat verbum",
				Model:           "scribe-b",
				Error:           "rate limit exceeded",
			},
		},
		ModelSummaries: map[string]results.Summary{
			"scribe-a": {"cer_mean": 0.04, "samples_evaluated": float64(1)},
			"scribe-b": {"samples_evaluated": float64(0), "samples_failed": float64(1)},
		},
	}

	index, frags, err := partition.Partition(doc)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	dataDir := t.TempDir() + "/data"
	if err := partition.WriteArtifacts(partition.BuildSummary(doc), index, frags, dataDir); err != nil {
		t.Fatalf("WriteArtifacts: %v", err)
	}

	cfg := config.ViewerConfig{
		ListenAddr:         ":0",
		DataDir:            dataDir,
		CacheMaxAgeSeconds: config.DefaultCacheMaxAge,
		Search: config.SearchConfig{
			Threshold:  config.DefaultSearchThreshold,
			MaxResults: config.DefaultSearchResults,
		},
	}
	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func firstSampleID(t *testing.T, srv *Server) string {
	t.Helper()
	samples := srv.view.Samples()
	if len(samples) != 1 {
		t.Fatalf("index has %d samples, want 1", len(samples))
	}
	return samples[0].SampleID
}

func TestServer_CompareOK(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.Handler()
	id := firstSampleID(t, srv)

	rec := get(t, h, "/api/compare?sample="+id+"&model=scribe-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var cmp Comparison
	if err := json.Unmarshal(rec.Body.Bytes(), &cmp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmp.Status != StatusOK {
		t.Errorf("status = %q, want ok", cmp.Status)
	}
	if cmp.SampleID != id || cmp.Model != "scribe-a" {
		t.Errorf("echoed identity = %s/%s", cmp.SampleID, cmp.Model)
	}
	if len(cmp.ReferenceLines) == 0 {
		t.Error("no reference lines in ok comparison")
	}
}

func TestServer_CompareModelError(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	id := firstSampleID(t, srv)

	rec := get(t, srv.Handler(), "/api/compare?sample="+id+"&model=scribe-b")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var cmp Comparison
	if err := json.Unmarshal(rec.Body.Bytes(), &cmp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmp.Status != StatusModelError {
		t.Errorf("status = %q, want model_error", cmp.Status)
	}
	if !strings.Contains(cmp.Error, "rate limit") {
		t.Errorf("error = %q", cmp.Error)
	}
}

func TestServer_CompareUnknownSample(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := get(t, srv.Handler(), "/api/compare?sample=ffffffffffff&model=scribe-a")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_CompareMissingParams(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.Handler()
	for _, path := range []string{"/api/compare", "/api/compare?sample=x", "/api/compare?model=y"} {
		if rec := get(t, h, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestServer_Search(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := get(t, srv.Handler(), "/api/search?q=folio+3r")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Query   string         `json:"query"`
		Matches []SearchResult `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Label != "Folio 3r" {
		t.Errorf("matches = %+v", resp.Matches)
	}
}

func TestServer_SearchNoMatchesIsEmptyArray(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	rec := get(t, srv.Handler(), "/api/search?q=zzzzzzzz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"matches":[]`) {
		t.Errorf("body = %s, want empty matches array", rec.Body)
	}
}

func TestServer_SearchMissingQuery(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	if rec := get(t, srv.Handler(), "/api/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_ArtifactCacheHeaders(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.Handler()
	id := firstSampleID(t, srv)

	rec := get(t, h, "/data/"+partition.FragmentPath(id))
	if rec.Code != http.StatusOK {
		t.Fatalf("fragment status = %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("fragment Cache-Control = %q, want immutable", cc)
	}

	rec = get(t, h, "/data/"+partition.IndexFile)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	cc := rec.Header().Get("Cache-Control")
	if !strings.Contains(cc, "max-age=300") || !strings.Contains(cc, "stale-while-revalidate") {
		t.Errorf("index Cache-Control = %q", cc)
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.Handler()

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, body %s", rec.Code, rec.Body)
	}
}
