package mockapi

import (
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/five82/gridwatch/internal/gridapi"
)

// DefaultSeed makes the generated series identical across runs.
const DefaultSeed = 20240701

const powerDays = 92

var powerStart = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

// Day offsets with a fixed deviation of actual from predicted load, in GW.
var powerIncidents = map[int]float64{
	12: 2.8,  // data center offline
	15: -2.5, // plant trip
	28: 3.2,  // solar transition
	35: 1.8,  // heat wave
	42: -1.5, // grid maintenance
	56: 2.2,  // evening surge
	67: -1.8, // outage recovery
	78: 2.0,  // unexpected demand
}

// Dataset is the static content served by the mock endpoints.
type Dataset struct {
	Power  []gridapi.PowerDataPoint
	Events []gridapi.GridEvent
}

// NewDataset builds the power series from seed and the fixed event log.
func NewDataset(seed int64) *Dataset {
	return &Dataset{
		Power:  GeneratePower(seed),
		Events: GridEvents(),
	}
}

// GeneratePower returns 92 daily readings starting 2024-07-01. July and
// August carry a summer air-conditioning boost, weekends run lighter, and
// the incident days deviate sharply from the forecast.
func GeneratePower(seed int64) []gridapi.PowerDataPoint {
	faker := gofakeit.New(seed)
	points := make([]gridapi.PowerDataPoint, 0, powerDays)
	for day := 0; day < powerDays; day++ {
		date := powerStart.AddDate(0, 0, day)

		summer := 0.3
		if date.Month() <= time.August {
			summer = 1.2
		}
		weekday := -0.5
		if wd := date.Weekday(); wd >= time.Monday && wd <= time.Friday {
			weekday = 1.0
		}

		predicted := round1(9.5 + summer + weekday + faker.Float64Range(-0.4, 0.4))
		variance := faker.Float64Range(-0.3, 0.3) + powerIncidents[day]
		if faker.Float64() < 0.05 {
			variance += faker.Float64Range(-1.0, 1.0)
		}

		points = append(points, gridapi.PowerDataPoint{
			Time:      date.Format("2006-01-02"),
			Predicted: predicted,
			Actual:    round1(predicted + variance),
		})
	}
	return points
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Paginate slices events for a 1-based page. Pages past the end are empty.
func Paginate(events []gridapi.GridEvent, page, pageSize int) gridapi.GridEventsPage {
	start := max((page-1)*pageSize, 0)
	end := max(start+pageSize, start)
	if start > len(events) {
		start = len(events)
	}
	if end > len(events) {
		end = len(events)
	}
	data := make([]gridapi.GridEvent, end-start)
	copy(data, events[start:end])
	return gridapi.GridEventsPage{
		Data: data,
		Pagination: gridapi.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: len(events),
			TotalPages: gridapi.TotalPages(len(events), pageSize),
		},
	}
}

// GridEvents returns the fixed July through September 2024 incident log,
// newest first.
func GridEvents() []gridapi.GridEvent {
	return []gridapi.GridEvent{
		{ID: "evt-017", Timestamp: "2024-09-28T18:42:00Z", Type: gridapi.EventDemandSpike, Severity: gridapi.SeverityMedium,
			Description: "Late-season heat pushes evening demand above forecast", Location: "Manhattan", Impact: "Peak load 11.8 GW, reserves at 9%"},
		{ID: "evt-016", Timestamp: "2024-09-24T03:15:00Z", Type: gridapi.EventMaintenance, Severity: gridapi.SeverityLow,
			Description: "Scheduled transformer inspection at Hell Gate substation", Location: "Bronx", Impact: "No customer impact"},
		{ID: "evt-015", Timestamp: "2024-09-17T14:05:00Z", Type: gridapi.EventEquipmentFailure, Severity: gridapi.SeverityHigh,
			Description: "Feeder cable fault trips two distribution circuits", Location: "Brooklyn", Impact: "4,200 customers without power for 3 hours"},
		{ID: "evt-014", Timestamp: "2024-09-09T09:30:00Z", Type: gridapi.EventVoltageFluctuation, Severity: gridapi.SeverityLow,
			Description: "Voltage sag during capacitor bank switching", Location: "Queens", Impact: "Brief flicker reported by 300 customers"},
		{ID: "evt-013", Timestamp: "2024-09-06T21:10:00Z", Type: gridapi.EventOutage, Severity: gridapi.SeverityMedium,
			Description: "Underground vault fire isolates a network segment", Location: "Lower Manhattan", Impact: "1,100 customers out for 5 hours"},
		{ID: "evt-012", Timestamp: "2024-08-26T16:20:00Z", Type: gridapi.EventDemandSpike, Severity: gridapi.SeverityHigh,
			Description: "Evening surge as cooling load coincides with transit peak", Location: "Citywide", Impact: "Demand response program activated"},
		{ID: "evt-011", Timestamp: "2024-08-18T13:45:00Z", Type: gridapi.EventWeather, Severity: gridapi.SeverityHigh,
			Description: "Severe thunderstorm downs overhead lines", Location: "Staten Island", Impact: "8,500 customers affected, restored within 14 hours"},
		{ID: "evt-010", Timestamp: "2024-08-12T02:00:00Z", Type: gridapi.EventMaintenance, Severity: gridapi.SeverityMedium,
			Description: "Planned grid maintenance reduces import capacity", Location: "Westchester tie", Impact: "Import limit lowered by 600 MW overnight"},
		{ID: "evt-009", Timestamp: "2024-08-05T15:30:00Z", Type: gridapi.EventDemandSpike, Severity: gridapi.SeverityCritical,
			Description: "Heat wave drives record August consumption", Location: "Citywide", Impact: "Peak load 13.1 GW, voluntary conservation requested"},
		{ID: "evt-008", Timestamp: "2024-07-29T11:50:00Z", Type: gridapi.EventVoltageFluctuation, Severity: gridapi.SeverityMedium,
			Description: "Solar ramp causes rapid voltage swings on distribution feeders", Location: "Queens", Impact: "Inverters curtailed for 40 minutes"},
		{ID: "evt-007", Timestamp: "2024-07-22T19:05:00Z", Type: gridapi.EventOutage, Severity: gridapi.SeverityHigh,
			Description: "Network protector failure cascades across secondary grid", Location: "Upper East Side", Impact: "6,300 customers out for 9 hours"},
		{ID: "evt-006", Timestamp: "2024-07-16T07:40:00Z", Type: gridapi.EventEquipmentFailure, Severity: gridapi.SeverityCritical,
			Description: "Generating unit trip at Ravenswood plant", Location: "Long Island City", Impact: "1.2 GW lost, reserves deployed"},
		{ID: "evt-005", Timestamp: "2024-07-13T22:15:00Z", Type: gridapi.EventDemandSpike, Severity: gridapi.SeverityMedium,
			Description: "Data center load returns after unplanned shutdown", Location: "Manhattan", Impact: "Load 2.8 GW above forecast for 2 hours"},
		{ID: "evt-004", Timestamp: "2024-07-10T12:00:00Z", Type: gridapi.EventWeather, Severity: gridapi.SeverityMedium,
			Description: "Extreme heat advisory issued for the metro area", Location: "Citywide", Impact: "Forecast raised by 0.8 GW"},
		{ID: "evt-003", Timestamp: "2024-07-07T04:25:00Z", Type: gridapi.EventMaintenance, Severity: gridapi.SeverityLow,
			Description: "Relay firmware update on transmission protection", Location: "Brooklyn", Impact: "No customer impact"},
		{ID: "evt-002", Timestamp: "2024-07-04T23:30:00Z", Type: gridapi.EventVoltageFluctuation, Severity: gridapi.SeverityLow,
			Description: "Holiday fireworks debris causes momentary faults", Impact: "Momentary interruptions only"},
		{ID: "evt-001", Timestamp: "2024-07-01T17:55:00Z", Type: gridapi.EventOutage, Severity: gridapi.SeverityMedium,
			Description: "Overloaded transformer fails during first heat of July", Location: "Bronx", Impact: "2,400 customers out for 4 hours"},
	}
}
