// Package viewer implements the read path of the comparison UI: the sample
// index, the lazily-fetched per-sample detail fragments, the server-side
// normalize-and-diff endpoint, and fuzzy sample search.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/hallgrim/scriptbench/internal/observe"
	"github.com/hallgrim/scriptbench/internal/partition"
)

// FragmentSource fetches one detail fragment by sample identifier.
type FragmentSource interface {
	Fetch(ctx context.Context, sampleID string) (*partition.Fragment, error)
}

// DirSource reads fragments from a partitioned artifact directory.
type DirSource struct {
	// Dir is the artifact directory of a partition run.
	Dir string
}

// Fetch reads and decodes the fragment file for sampleID.
func (s DirSource) Fetch(_ context.Context, sampleID string) (*partition.Fragment, error) {
	path := filepath.Join(s.Dir, partition.FragmentPath(sampleID))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("viewer: read fragment %q: %w", sampleID, err)
	}
	frag := &partition.Fragment{}
	if err := json.Unmarshal(data, frag); err != nil {
		return nil, fmt.Errorf("viewer: decode fragment %q: %w", sampleID, err)
	}
	return frag, nil
}

// HTTPSource fetches fragments from a remote artifact server.
type HTTPSource struct {
	// BaseURL is the artifact root, e.g. "https://bench.example.org/data".
	BaseURL string

	// Client defaults to [http.DefaultClient] when nil.
	Client *http.Client
}

// Fetch downloads and decodes the fragment for sampleID.
func (s HTTPSource) Fetch(ctx context.Context, sampleID string) (*partition.Fragment, error) {
	url := s.BaseURL + "/" + partition.FragmentDir + "/" + sampleID + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("viewer: build fragment request: %w", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viewer: fetch fragment %q: %w", sampleID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("viewer: fetch fragment %q: HTTP %d", sampleID, resp.StatusCode)
	}

	frag := &partition.Fragment{}
	if err := json.NewDecoder(resp.Body).Decode(frag); err != nil {
		return nil, fmt.Errorf("viewer: decode fragment %q: %w", sampleID, err)
	}
	return frag, nil
}

// EntryState describes one fragment's place in the store lifecycle.
type EntryState int

const (
	// StateUnrequested means the fragment has never been asked for.
	StateUnrequested EntryState = iota

	// StateLoading means a fetch is in flight.
	StateLoading

	// StateReady means the fragment is cached.
	StateReady

	// StateFailed means the fetch completed with an error, which is cached
	// and reported on every subsequent Get; failure is a terminal state
	// distinct from "not yet loaded".
	StateFailed
)

// String returns the lowercase state name.
func (s EntryState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unrequested"
	}
}

// entry is one cached outcome. Exactly one of frag and err is set.
type entry struct {
	frag *partition.Fragment
	err  error
}

// FragmentStore is an append-only, identifier-keyed fragment cache.
// Concurrent Gets for the same identifier collapse into a single fetch;
// Gets for different identifiers proceed independently. Entries are never
// evicted within a session.
type FragmentStore struct {
	source  FragmentSource
	metrics *observe.Metrics

	flight singleflight.Group

	mu       sync.RWMutex
	entries  map[string]entry
	inFlight map[string]bool
}

// NewFragmentStore creates a store backed by source. metrics may be nil in
// tests; the store then records nothing.
func NewFragmentStore(source FragmentSource, metrics *observe.Metrics) *FragmentStore {
	return &FragmentStore{
		source:   source,
		metrics:  metrics,
		entries:  make(map[string]entry),
		inFlight: make(map[string]bool),
	}
}

// Get returns the fragment for sampleID, fetching it on first use. Both
// successful and failed outcomes are cached: a sample whose fetch failed
// keeps reporting that failure rather than silently refetching.
func (s *FragmentStore) Get(ctx context.Context, sampleID string) (*partition.Fragment, error) {
	s.mu.RLock()
	e, ok := s.entries[sampleID]
	s.mu.RUnlock()
	if ok {
		s.count("hit")
		return e.frag, e.err
	}

	v, err, _ := s.flight.Do(sampleID, func() (any, error) {
		s.setInFlight(sampleID, true)
		defer s.setInFlight(sampleID, false)

		frag, err := s.source.Fetch(ctx, sampleID)

		s.mu.Lock()
		s.entries[sampleID] = entry{frag: frag, err: err}
		s.mu.Unlock()

		if err != nil {
			s.count("error")
			return nil, err
		}
		s.count("fetched")
		return frag, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*partition.Fragment), nil
}

// State reports where sampleID currently is in the cache lifecycle.
func (s *FragmentStore) State(sampleID string) EntryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[sampleID]; ok {
		if e.err != nil {
			return StateFailed
		}
		return StateReady
	}
	if s.inFlight[sampleID] {
		return StateLoading
	}
	return StateUnrequested
}

func (s *FragmentStore) setInFlight(sampleID string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.inFlight[sampleID] = true
	} else {
		delete(s.inFlight, sampleID)
	}
}

func (s *FragmentStore) count(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.FragmentLoads.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
