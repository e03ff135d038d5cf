// Package status folds the state of several cache entries into the single
// indicator the dashboard header shows.
package status

import "github.com/five82/gridwatch/internal/query"

// Status is the aggregate state of a group of queries.
type Status int

const (
	Idle Status = iota
	Loading
	Updating
	Fresh
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Updating:
		return "updating"
	case Fresh:
		return "fresh"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Label is the short indicator caption.
func (s Status) Label() string {
	switch s {
	case Loading:
		return "Loading"
	case Updating:
		return "Updating"
	case Fresh:
		return "Fresh"
	case Error:
		return "Error"
	default:
		return "Idle"
	}
}

// Description is the caption with its explanation, as shown in the legend.
func (s Status) Description() string {
	switch s {
	case Loading:
		return "Loading - Fetching from server"
	case Updating:
		return "Updating - Revalidating with server"
	case Fresh:
		return "Fresh - Data ready"
	case Error:
		return "Error - Failed to load data"
	default:
		return "Idle"
	}
}

// Hint is the longer legend explanation.
func (s Status) Hint() string {
	switch s {
	case Loading:
		return "First visit, no cache available"
	case Updating:
		return "Showing cached data, revalidating in background"
	case Fresh:
		return "Data is ready and up-to-date"
	case Error:
		return "Failed to load data"
	default:
		return "Nothing requested yet"
	}
}

// All lists every status in legend order.
func All() []Status {
	return []Status{Loading, Updating, Fresh, Error, Idle}
}

// Project computes the aggregate status. An entry with no data and a fetch in
// flight wins over everything; errors come next; data being revalidated in
// the background reports Updating.
func Project(entries ...query.Entry) Status {
	if len(entries) == 0 {
		return Idle
	}

	var loading, failed, fetching bool
	allData := true
	for _, e := range entries {
		if !e.HasData() {
			allData = false
			if e.InFlight() {
				loading = true
			}
		}
		if e.Status == query.StatusError {
			failed = true
		}
		if e.Status == query.StatusFetching {
			fetching = true
		}
	}

	switch {
	case loading:
		return Loading
	case failed:
		return Error
	case allData && fetching:
		return Updating
	case allData:
		return Fresh
	default:
		return Idle
	}
}
