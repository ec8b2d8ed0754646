package domain

import "time"

// Timer represents a Harvest time entry in the domain.
type Timer struct {
	ID        *int64 // nil until the entry exists remotely
	ProjectID ProjectID
	TaskID    string
	Hours     *float64
	Active    bool // a running timer in Harvest
	Notes     *string
	SpentAt   time.Time
}

// Persisted reports whether the timer already exists remotely. Persisted
// timers are sent as updates, the rest as creates.
func (t Timer) Persisted() bool { return t.ID != nil }

// Day is what the timer source returns for one date.
type Day struct {
	Date     time.Time
	Timers   []Timer
	Projects []Project
}

// ProjectByID indexes the day's projects for display lookups.
func (d Day) ProjectByID() map[ProjectID]Project {
	m := make(map[ProjectID]Project, len(d.Projects))
	for _, p := range d.Projects {
		m[p.ID] = p
	}
	return m
}
