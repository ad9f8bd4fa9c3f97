package model

import (
	"encoding/json"
	"time"
)

// InstrumentType identifies which hardware instrument a timeline entry drives.
type InstrumentType string

const (
	InstrumentCasioSA1     InstrumentType = "CASIO_SA1"
	InstrumentHexaoxilator InstrumentType = "HEXAOXILATOR"
	InstrumentZoomPedal    InstrumentType = "ZOOM_PEDAL"
	InstrumentAtaripunk    InstrumentType = "ATARIPUNK"
)

// InstrumentTypes lists all valid instrument types in display order. The
// first element is the default for new entries.
var InstrumentTypes = []InstrumentType{
	InstrumentCasioSA1,
	InstrumentHexaoxilator,
	InstrumentZoomPedal,
	InstrumentAtaripunk,
}

// Valid reports whether t is a known instrument type.
func (t InstrumentType) Valid() bool {
	for _, known := range InstrumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Defaults for a freshly added timeline entry.
const (
	DefaultEntryStart = 0
	DefaultEntryEnd   = 60
)

// TimelineEntry is a time-ranged instrument assignment within a song.
// Invariant: 0 <= StartTime < EndTime <= song.Duration.
type TimelineEntry struct {
	ID             string          `json:"id"`
	SongID         string          `json:"songId"`
	InstrumentType InstrumentType  `json:"instrumentType"`
	StartTime      int             `json:"startTime"`
	EndTime        int             `json:"endTime"`
	Notes          string          `json:"notes"`
	Settings       json.RawMessage `json:"settings"` // Freeform per-instrument settings
	CreatedAt      time.Time       `json:"createdAt"`
}

// Duration returns the entry length in seconds.
func (e *TimelineEntry) Duration() int {
	return e.EndTime - e.StartTime
}

// EntryUpdate carries a partial update to a timeline entry. Nil fields are
// left untouched by the repository.
type EntryUpdate struct {
	InstrumentType *InstrumentType `json:"instrumentType,omitempty"`
	StartTime      *int            `json:"startTime,omitempty"`
	EndTime        *int            `json:"endTime,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
}

// ApplyTo mutates e in place with the populated fields of u.
func (u *EntryUpdate) ApplyTo(e *TimelineEntry) {
	if u.InstrumentType != nil {
		e.InstrumentType = *u.InstrumentType
	}
	if u.StartTime != nil {
		e.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		e.EndTime = *u.EndTime
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
	if u.Settings != nil {
		e.Settings = u.Settings
	}
}
