package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPullSinglePage(t *testing.T) {
	var gotAuth, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-OTX-API-KEY")
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"results":[{"name":"p1","modified":"2026-03-01T00:00:00Z","indicators":[{"indicator":"203.0.113.7","type":"IPv4"}]}],"next":""}`)
	}))
	defer server.Close()

	t.Setenv("TEST_FEED_KEY", "secret")

	client := NewClient(time.Second, 0)
	result, err := client.Pull(context.Background(), Feed{
		Name:       "otx",
		URL:        server.URL,
		APIKeyEnv:  "TEST_FEED_KEY",
		AuthHeader: "X-OTX-API-KEY",
		PageSize:   25,
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if gotAuth != "secret" {
		t.Errorf("auth header = %q, want secret", gotAuth)
	}
	if gotLimit != "25" {
		t.Errorf("limit = %q, want 25", gotLimit)
	}
	if len(result.Pulses) != 1 || len(result.Pulses[0].Indicators) != 1 {
		t.Fatalf("unexpected pulses: %+v", result.Pulses)
	}
	if len(result.RawPages) != 1 {
		t.Fatalf("raw pages = %d, want 1", len(result.RawPages))
	}
}

func TestPullFollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page2":
			fmt.Fprint(w, `{"results":[{"name":"p2","indicators":[{"indicator":"b.example","type":"domain"}]}],"next":""}`)
		default:
			fmt.Fprintf(w, `{"results":[{"name":"p1","indicators":[{"indicator":"a.example","type":"domain"}]}],"next":"%s/page2"}`, server.URL)
		}
	}))
	defer server.Close()

	client := NewClient(time.Second, 5)
	result, err := client.Pull(context.Background(), Feed{Name: "otx", URL: server.URL})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(result.Pulses) != 2 {
		t.Fatalf("pulses = %d, want 2", len(result.Pulses))
	}
	if len(result.RawPages) != 2 {
		t.Fatalf("raw pages = %d, want 2", len(result.RawPages))
	}
}

func TestPullStopsAtPageCap(t *testing.T) {
	requests := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Always points at the next page; the cap must break the chain.
		fmt.Fprintf(w, `{"results":[],"next":"%s/more"}`, server.URL)
	}))
	defer server.Close()

	client := NewClient(time.Second, 3)
	if _, err := client.Pull(context.Background(), Feed{Name: "otx", URL: server.URL}); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if requests != 3 {
		t.Fatalf("requests = %d, want 3", requests)
	}
}

func TestPullUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(time.Second, 1)
	if _, err := client.Pull(context.Background(), Feed{Name: "otx", URL: server.URL}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestPullMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>definitely not json</html>`)
	}))
	defer server.Close()

	client := NewClient(time.Second, 1)
	if _, err := client.Pull(context.Background(), Feed{Name: "otx", URL: server.URL}); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestWithPageSizeKeepsExistingLimit(t *testing.T) {
	got, err := withPageSize("https://feed.example/v1/pulses?limit=5", 50)
	if err != nil {
		t.Fatalf("withPageSize: %v", err)
	}
	if got != "https://feed.example/v1/pulses?limit=5" {
		t.Fatalf("existing limit overwritten: %s", got)
	}
}
