package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// memoryStore mimics the database's dedup behaviour keyed on (indicator, type).
// failAfter > 0 aborts an insert batch once that many rows landed, leaving a
// partial batch behind like a mid-cycle database failure would.
type memoryStore struct {
	mu        sync.Mutex
	records   map[string]Indicator
	runs      []Run
	failOn    error
	failAfter int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]Indicator)}
}

func (m *memoryStore) InsertIndicators(ctx context.Context, indicators []Indicator, traceID string, fetchedAt time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != nil {
		return 0, 0, m.failOn
	}

	inserted, duplicates := 0, 0
	for _, ind := range indicators {
		if m.failAfter > 0 && inserted == m.failAfter {
			return inserted, duplicates, fmt.Errorf("write failed mid-batch")
		}
		key := ind.Indicator + "|" + ind.Type
		if _, ok := m.records[key]; ok {
			duplicates++
			continue
		}
		m.records[key] = ind
		inserted++
	}
	return inserted, duplicates, nil
}

func (m *memoryStore) RecordRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]Run, len(m.runs))
	copy(runs, m.runs)
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *memoryStore) CountIndicators(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memoryStore) lastRun(t *testing.T) Run {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.runs)
	return m.runs[len(m.runs)-1]
}

func feedServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, feeds []Feed, store Store) *Fetcher {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	f, err := New(feeds, NewClient(time.Second, 3), store, nil, nil, metrics, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return f
}

const threeIndicatorPayload = `{"results":[{"name":"p1","modified":"2026-03-01T00:00:00Z","tags":["botnet"],"indicators":[
  {"indicator":"203.0.113.7","type":"IPv4"},
  {"indicator":"evil.example","type":"domain"},
  {"indicator":"badc0ffee","type":"FileHash-SHA256"}
]}],"next":""}`

func TestCycleInsertsNewIndicators(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)

	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, RunStatusOK, run.Status)
	require.Equal(t, 3, run.Fetched)
	require.Equal(t, 3, run.Inserted)
	require.Equal(t, 0, run.Duplicates)
	require.Len(t, store.records, 3)
}

func TestCycleSkipsExistingIndicators(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	store.records["evil.example|domain"] = Indicator{Indicator: "evil.example", Type: "domain"}

	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)
	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, 2, run.Inserted)
	require.Equal(t, 1, run.Duplicates)
	require.Len(t, store.records, 3)
}

func TestCycleIsIdempotent(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)

	f.RunCycle(context.Background())
	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, 0, run.Inserted)
	require.Equal(t, 3, run.Duplicates)
	require.Len(t, store.records, 3)
}

func TestCycleEmptyFeed(t *testing.T) {
	server := feedServer(t, `{"results":[],"next":""}`)
	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)

	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, RunStatusOK, run.Status)
	require.Equal(t, 0, run.Fetched)
	require.Equal(t, 0, run.Inserted)
}

func TestCycleRecordsFeedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)

	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, RunStatusError, run.Status)
	require.NotEmpty(t, run.Error)
	require.Empty(t, store.records)
}

func TestCycleFeedFailureDoesNotStopOtherFeeds(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	healthy := feedServer(t, `{"results":[{"name":"p","indicators":[{"indicator":"198.51.100.1","type":"IPv4"}]}],"next":""}`)

	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{
		{Name: "broken", URL: broken.URL},
		{Name: "healthy", URL: healthy.URL},
	}, store)

	f.RunCycle(context.Background())

	require.Len(t, store.runs, 2)
	require.Equal(t, RunStatusError, store.runs[0].Status)
	require.Equal(t, RunStatusOK, store.runs[1].Status)
	require.Len(t, store.records, 1)
}

func TestStoreFailureStillCountsPartialInserts(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	store.failAfter = 2

	metrics := NewMetrics(prometheus.NewRegistry())
	f, err := New([]Feed{{Name: "otx", URL: server.URL}}, NewClient(time.Second, 3), store, nil, nil, metrics, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, RunStatusError, run.Status)
	require.Equal(t, 2, run.Inserted)
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.Inserted.WithLabelValues("otx")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.Duplicates.WithLabelValues("otx")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.CycleErrors.WithLabelValues("otx")))
}

func TestRunOnceReportsRecordedRuns(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)

	var buf bytes.Buffer
	f.logger = log.New(&buf, "", 0)

	require.NoError(t, f.RunOnce(context.Background()))

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, RunStatusOK, runs[0].Status)

	total, err := store.CountIndicators(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	out := buf.String()
	require.Contains(t, out, "feed=otx status=ok fetched=3 inserted=3 duplicates=0")
	require.Contains(t, out, "store holds 3 indicators")
}

func TestCycleStoreFailureRecorded(t *testing.T) {
	server := feedServer(t, threeIndicatorPayload)
	store := newMemoryStore()
	store.failOn = fmt.Errorf("connection refused")

	f := newTestFetcher(t, []Feed{{Name: "otx", URL: server.URL}}, store)
	f.RunCycle(context.Background())

	run := store.lastRun(t)
	require.Equal(t, RunStatusError, run.Status)
	require.Contains(t, run.Error, "connection refused")
}
