package editor

import (
	"context"

	"MixGrid/core/timeline"
	"MixGrid/model"
)

// Overlay is the modal edit session for a single entry. It holds a staged
// copy that form controls mutate freely; nothing reaches the store until
// Save. Only one overlay is open at a time; opening another replaces it.
type Overlay struct {
	active bool
	staged model.TimelineEntry
}

// Active reports whether an edit session is open.
func (o *Overlay) Active() bool {
	return o.active
}

// Staged returns a copy of the staged entry, or nil when inactive.
func (o *Overlay) Staged() *model.TimelineEntry {
	if !o.active {
		return nil
	}
	staged := o.staged
	return &staged
}

// Open starts an edit session on a copy of the entry, replacing any session
// already open.
func (o *Overlay) Open(entry *model.TimelineEntry) {
	o.active = true
	o.staged = *entry
}

// Stage applies form input to the staged copy. Start and end each clamp to
// the valid sub-range left by the other and by the song duration, the way
// the paired range sliders behave.
func (o *Overlay) Stage(change StageData, songDuration int) {
	if !o.active {
		return
	}
	if change.InstrumentType != nil && change.InstrumentType.Valid() {
		o.staged.InstrumentType = *change.InstrumentType
	}
	if change.StartTime != nil {
		o.staged.StartTime = clampInt(*change.StartTime, 0, o.staged.EndTime-1)
	}
	if change.EndTime != nil {
		o.staged.EndTime = clampInt(*change.EndTime, o.staged.StartTime+1, songDuration)
	}
	if change.Notes != nil {
		o.staged.Notes = *change.Notes
	}
}

// Save commits the staged copy atomically through the store and closes the
// session. A ValidationError leaves the session open for correction; any
// other outcome closes it.
func (o *Overlay) Save(ctx context.Context, store *timeline.Store) error {
	if !o.active {
		return nil
	}

	staged := o.staged
	change := &model.EntryUpdate{
		InstrumentType: &staged.InstrumentType,
		StartTime:      &staged.StartTime,
		EndTime:        &staged.EndTime,
		Notes:          &staged.Notes,
	}

	err := store.Update(ctx, staged.ID, change)
	if _, isValidation := err.(*timeline.ValidationError); isValidation {
		return err
	}
	o.active = false
	return err
}

// Cancel discards the staged copy without touching the store.
func (o *Overlay) Cancel() {
	o.active = false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
