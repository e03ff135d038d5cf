package gridapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != DefaultBase {
		t.Fatalf("host = %q, want %q", u.Host, DefaultBase)
	}

	u, err = parseBaseURL("https://grid.example.com:8443/dashboard?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != "https://grid.example.com:8443" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchesEndpointsAndEncodesQueries(t *testing.T) {
	t.Parallel()

	var gotEventsQuery, gotPowerQuery url.Values
	var gotUserAgent, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/power-usage":
			gotPowerQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode([]PowerDataPoint{{Time: "2024-07-01", Predicted: 10.7, Actual: 10.9}})
		case "/api/grid-events":
			gotEventsQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(GridEventsPage{
				Data:       []GridEvent{{ID: "evt-006", Type: EventOutage, Severity: SeverityHigh}},
				Pagination: Pagination{Page: 2, PageSize: 5, TotalCount: 17, TotalPages: 4},
			})
		case "/api/grid-events/metadata":
			_ = json.NewEncoder(w).Encode(Metadata{TotalCount: 17, TotalPages: 4, PageSize: 5})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	c.WithDelay(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	points, err := c.FetchPowerUsage(ctx)
	if err != nil {
		t.Fatalf("FetchPowerUsage returned error: %v", err)
	}
	if len(points) != 1 || points[0].Actual != 10.9 {
		t.Fatalf("FetchPowerUsage payload = %#v", points)
	}
	if gotPowerQuery.Get("delay") != "0" {
		t.Fatalf("power delay = %q, want 0", gotPowerQuery.Get("delay"))
	}

	page, err := c.FetchGridEvents(ctx, 2, 5)
	if err != nil {
		t.Fatalf("FetchGridEvents returned error: %v", err)
	}
	if page.Pagination.TotalPages != 4 || page.Data[0].ID != "evt-006" {
		t.Fatalf("FetchGridEvents payload = %#v", page)
	}
	if gotEventsQuery.Get("page") != "2" || gotEventsQuery.Get("pageSize") != "5" {
		t.Fatalf("events query = %v, want page=2 pageSize=5", gotEventsQuery)
	}

	meta, err := c.FetchGridEventsMetadata(ctx)
	if err != nil {
		t.Fatalf("FetchGridEventsMetadata returned error: %v", err)
	}
	if meta != (Metadata{TotalCount: 17, TotalPages: 4, PageSize: 5}) {
		t.Fatalf("metadata = %#v", meta)
	}

	if gotUserAgent != defaultUserAgent {
		t.Fatalf("user-agent = %q, want %q", gotUserAgent, defaultUserAgent)
	}
	if gotAccept != "application/json" {
		t.Fatalf("accept = %q, want application/json", gotAccept)
	}
}

func TestClient_OmitsDelayByDefault(t *testing.T) {
	t.Parallel()

	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchPowerUsage(context.Background()); err != nil {
		t.Fatalf("FetchPowerUsage returned error: %v", err)
	}
	if raw != "" {
		t.Fatalf("query = %q, want empty", raw)
	}
}

func TestClient_TypedErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/power-usage":
			http.Error(w, "down", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"data": [`))
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	_, err = c.FetchPowerUsage(ctx)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("FetchPowerUsage error = %v, want *NetworkError", err)
	}
	if netErr.StatusCode != http.StatusServiceUnavailable || netErr.Path != "/api/power-usage" {
		t.Fatalf("NetworkError = %+v", netErr)
	}

	_, err = c.FetchGridEvents(ctx, 1, 5)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("FetchGridEvents error = %v, want *DecodeError", err)
	}
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	c, err := NewClient(base)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.FetchGridEventsMetadata(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != 0 {
		t.Fatalf("error = %v, want transport *NetworkError", err)
	}
}

func TestClient_NilReceiver(t *testing.T) {
	var c *Client
	if _, err := c.FetchPowerUsage(context.Background()); err == nil {
		t.Fatalf("expected error from nil client")
	}
}
