package domain

import "time"

// StationSnapshot is a station measurement as republished to sinks.
type StationSnapshot struct {
	StationMeasurement
	PublishedAt time.Time `json:"published_at"`
}

// NewSnapshots stamps every station with the same publication time.
func NewSnapshots(stations []StationMeasurement) []StationSnapshot {
	now := clock.Now().UTC()
	out := make([]StationSnapshot, len(stations))
	for i, s := range stations {
		out[i] = StationSnapshot{StationMeasurement: s, PublishedAt: now}
	}
	return out
}
