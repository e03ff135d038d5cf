package gridapi

// PowerDataPoint is one day of predicted and actual consumption in GW.
type PowerDataPoint struct {
	Time      string  `json:"time"`
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
}

// EventType classifies a grid event.
type EventType string

const (
	EventOutage             EventType = "outage"
	EventMaintenance        EventType = "maintenance"
	EventDemandSpike        EventType = "demand_spike"
	EventVoltageFluctuation EventType = "voltage_fluctuation"
	EventEquipmentFailure   EventType = "equipment_failure"
	EventWeather            EventType = "weather"
)

// Label returns a human readable name.
func (t EventType) Label() string {
	switch t {
	case EventOutage:
		return "Outage"
	case EventMaintenance:
		return "Maintenance"
	case EventDemandSpike:
		return "Demand Spike"
	case EventVoltageFluctuation:
		return "Voltage Fluctuation"
	case EventEquipmentFailure:
		return "Equipment Failure"
	case EventWeather:
		return "Weather"
	default:
		return string(t)
	}
}

// Severity ranks the impact of an event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// GridEvent is one entry of the event log.
type GridEvent struct {
	ID          string    `json:"id"`
	Timestamp   string    `json:"timestamp"`
	Type        EventType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Impact      string    `json:"impact"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// GridEventsPage is the /api/grid-events payload.
type GridEventsPage struct {
	Data       []GridEvent `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Metadata is the /api/grid-events/metadata payload.
type Metadata struct {
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
	PageSize   int `json:"pageSize"`
}

// TotalPages returns ceil(count/size). A non-positive size yields zero pages.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}
