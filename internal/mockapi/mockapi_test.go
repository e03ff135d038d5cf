package mockapi

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/five82/gridwatch/internal/gridapi"
)

func TestGeneratePower_ShapeAndDeterminism(t *testing.T) {
	a := GeneratePower(DefaultSeed)
	b := GeneratePower(DefaultSeed)
	if len(a) != 92 {
		t.Fatalf("len = %d, want 92", len(a))
	}
	if a[0].Time != "2024-07-01" || a[91].Time != "2024-09-30" {
		t.Fatalf("range = %s..%s, want 2024-07-01..2024-09-30", a[0].Time, a[91].Time)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
		if r := round1(a[i].Actual); r != a[i].Actual {
			t.Fatalf("point %d actual %v not rounded to one decimal", i, a[i].Actual)
		}
	}
	// Day 28 carries a +3.2 GW incident on top of at most ±1.3 of noise.
	if diff := a[28].Actual - a[28].Predicted; diff < 1.5 {
		t.Fatalf("day 28 deviation = %.1f, want spike", diff)
	}
	if diff := a[15].Actual - a[15].Predicted; diff > -1.0 {
		t.Fatalf("day 15 deviation = %.1f, want drop", diff)
	}
}

func TestPaginate(t *testing.T) {
	events := GridEvents()
	if len(events) != 17 {
		t.Fatalf("len(GridEvents()) = %d, want 17", len(events))
	}

	tests := []struct {
		page, size, wantLen, wantPages int
	}{
		{1, 5, 5, 4},
		{4, 5, 2, 4},
		{5, 5, 0, 4},
		{1, 20, 17, 1},
		{2, 10, 7, 2},
	}
	for _, tt := range tests {
		got := Paginate(events, tt.page, tt.size)
		if len(got.Data) != tt.wantLen {
			t.Fatalf("Paginate(%d, %d) len = %d, want %d", tt.page, tt.size, len(got.Data), tt.wantLen)
		}
		if got.Pagination.TotalPages != tt.wantPages || got.Pagination.TotalCount != 17 {
			t.Fatalf("Paginate(%d, %d) pagination = %+v", tt.page, tt.size, got.Pagination)
		}
	}
	if got := Paginate(events, 2, 5).Data[0].ID; got != events[5].ID {
		t.Fatalf("page 2 starts with %s, want %s", got, events[5].ID)
	}
}

func newTestServer(t *testing.T) *gridapi.Client {
	t.Helper()
	srv := httptest.NewServer(NewHandler(Options{}))
	t.Cleanup(srv.Close)
	c, err := gridapi.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c.WithDelay(0)
}

func TestHandler_ServesAllEndpoints(t *testing.T) {
	t.Parallel()
	c := newTestServer(t)
	ctx := context.Background()

	power, err := c.FetchPowerUsage(ctx)
	if err != nil || len(power) != 92 {
		t.Fatalf("FetchPowerUsage = %d points, err %v", len(power), err)
	}

	page, err := c.FetchGridEvents(ctx, 4, 5)
	if err != nil {
		t.Fatalf("FetchGridEvents: %v", err)
	}
	if len(page.Data) != 2 || page.Pagination.TotalPages != 4 || page.Pagination.Page != 4 {
		t.Fatalf("page 4 = %d items %+v", len(page.Data), page.Pagination)
	}

	meta, err := c.FetchGridEventsMetadata(ctx)
	if err != nil {
		t.Fatalf("FetchGridEventsMetadata: %v", err)
	}
	if meta != (gridapi.Metadata{TotalCount: 17, TotalPages: 4, PageSize: 5}) {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestHandler_RejectsBadParams(t *testing.T) {
	t.Parallel()
	h := NewHandler(Options{})
	for _, target := range []string{
		"/api/grid-events?page=0",
		"/api/grid-events?pageSize=abc",
		"/api/power-usage?delay=-5",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHandler_DelayHonoursClientCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(NewHandler(Options{}))
	t.Cleanup(srv.Close)
	c, err := gridapi.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.WithDelay(10_000).FetchPowerUsage(ctx); err == nil {
		t.Fatalf("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancel took %v", elapsed)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addrc := make(chan net.Addr, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- ListenAndServe(ctx, "127.0.0.1:0", NewHandler(Options{}), func(a net.Addr) { addrc <- a })
	}()

	addr := <-addrc
	resp, err := http.Get("http://" + addr.String() + "/api/grid-events/metadata")
	if err != nil {
		t.Fatalf("GET metadata: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("ListenAndServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
