// Package dashboard binds the three grid resources to cache keys and exposes
// the page-level actions the UI needs: load a page, refresh, and clear.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/gridwatch/internal/gridapi"
	"github.com/five82/gridwatch/internal/query"
	"github.com/five82/gridwatch/internal/status"
)

// Cache ttls per resource. Zero revalidates on every read.
const (
	PowerTTL    = 0
	MetadataTTL = time.Hour
	EventsTTL   = 0

	DefaultPageSize = 5
)

var (
	PowerKey    = query.NewKey("power-usage")
	MetadataKey = query.NewKey("grid-events-metadata")
)

// EventsKey is the cache key for one page of the event log.
func EventsKey(page int) query.Key {
	return query.NewKey("grid-events", page)
}

// Dashboard is the page composition over a query manager.
type Dashboard struct {
	m        *query.Manager
	api      gridapi.Fetcher
	pageSize int
}

// New returns a Dashboard. A non-positive pageSize uses DefaultPageSize.
func New(m *query.Manager, api gridapi.Fetcher, pageSize int) *Dashboard {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Dashboard{m: m, api: api, pageSize: pageSize}
}

// Manager exposes the underlying cache for subscriptions.
func (d *Dashboard) Manager() *query.Manager { return d.m }

// Power is the handle for the power-usage series.
func (d *Dashboard) Power() *query.Query {
	return d.m.Bind(PowerKey, func(ctx context.Context) (any, error) {
		return d.api.FetchPowerUsage(ctx)
	}, PowerTTL)
}

// Metadata is the handle for the event-log page geometry.
func (d *Dashboard) Metadata() *query.Query {
	return d.m.Bind(MetadataKey, func(ctx context.Context) (any, error) {
		return d.api.FetchGridEventsMetadata(ctx)
	}, MetadataTTL)
}

// Events is the handle for one page of the event log.
func (d *Dashboard) Events(page int) *query.Query {
	return d.m.Bind(EventsKey(page), func(ctx context.Context) (any, error) {
		return d.api.FetchGridEvents(ctx, page, d.pageSize)
	}, EventsTTL)
}

// Snapshot is everything the page renders for one events page.
type Snapshot struct {
	Page     int
	Power    query.Entry
	Metadata query.Entry
	Events   query.Entry
}

// Status is the indicator state. Metadata is excluded: it is long-lived and
// would mask the state of the data the user is looking at.
func (s Snapshot) Status() status.Status {
	return status.Project(s.Power, s.Events)
}

// Busy reports whether any of the three resources has a fetch in flight.
func (s Snapshot) Busy() bool {
	return s.Power.InFlight() || s.Metadata.InFlight() || s.Events.InFlight()
}

// PowerData decodes the power series, if loaded.
func (s Snapshot) PowerData() ([]gridapi.PowerDataPoint, bool) {
	v, ok, err := query.Decode[[]gridapi.PowerDataPoint](s.Power)
	return v, ok && err == nil
}

// EventsData decodes the events page, if loaded.
func (s Snapshot) EventsData() (gridapi.GridEventsPage, bool) {
	v, ok, err := query.Decode[gridapi.GridEventsPage](s.Events)
	return v, ok && err == nil
}

// TotalPages comes from metadata, falling back to the loaded page's own
// pagination and then to one.
func (s Snapshot) TotalPages() int {
	if meta, ok, err := query.Decode[gridapi.Metadata](s.Metadata); ok && err == nil && meta.TotalPages > 0 {
		return meta.TotalPages
	}
	if page, ok := s.EventsData(); ok && page.Pagination.TotalPages > 0 {
		return page.Pagination.TotalPages
	}
	return 1
}

// Load reads all three resources for page, starting fetches for anything
// missing or stale.
func (d *Dashboard) Load(page int) Snapshot {
	return Snapshot{
		Page:     page,
		Power:    d.Power().Get(),
		Metadata: d.Metadata().Get(),
		Events:   d.Events(page).Get(),
	}
}

// Peek reads the current state for page without side effects.
func (d *Dashboard) Peek(page int) Snapshot {
	return Snapshot{
		Page:     page,
		Power:    d.Power().Peek(),
		Metadata: d.Metadata().Peek(),
		Events:   d.Events(page).Peek(),
	}
}

// Refresh forces a fetch of all three resources.
func (d *Dashboard) Refresh(page int) {
	d.Power().Refetch()
	d.Metadata().Refetch()
	d.Events(page).Refetch()
}

// Clear empties the cache, memory and disk, then requests everything again.
// The reload happens even when the durable clear fails.
func (d *Dashboard) Clear(ctx context.Context, page int) error {
	err := d.m.Clear(ctx)
	d.Refresh(page)
	return err
}

// Prewarm fetches power, metadata and the given event pages and waits for
// all of them.
func (d *Dashboard) Prewarm(ctx context.Context, pages ...int) error {
	handles := []*query.Query{d.Power(), d.Metadata()}
	for _, p := range pages {
		handles = append(handles, d.Events(p))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h.Get()
		g.Go(func() error {
			if _, err := h.Await(ctx); err != nil {
				return fmt.Errorf("prewarm %s: %w", h.Key(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
