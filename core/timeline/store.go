package timeline

import (
	"context"
	"fmt"
	"sort"

	"MixGrid/logger"
	"MixGrid/model"
	"MixGrid/repository"
)

// Store owns the authoritative in-memory set of timeline entries for one
// song and mediates with the persistence layer. Entries are kept ordered by
// start time ascending; the order is recomputed after every mutation.
//
// Updates are applied eagerly to local state before the persistence write and
// are not rolled back if the write fails; the caller surfaces the
// PersistenceError and the user retries.
//
// Store is not safe for concurrent use; the owning editor session serializes
// access.
type Store struct {
	songID       string
	songDuration int
	repo         repository.EntryRepository
	entries      []*model.TimelineEntry
	loaded       bool
}

// NewStore creates a store for a song. songDuration is the song's duration
// in seconds and bounds every entry.
func NewStore(songID string, songDuration int, repo repository.EntryRepository) *Store {
	return &Store{
		songID:       songID,
		songDuration: songDuration,
		repo:         repo,
	}
}

// SongID returns the song this store belongs to.
func (s *Store) SongID() string {
	return s.songID
}

// SongDuration returns the current song duration bound.
func (s *Store) SongDuration() int {
	return s.songDuration
}

// SetSongDuration updates the duration bound after a song edit. Existing
// entries are left as they are; new mutations validate against the new bound.
func (s *Store) SetSongDuration(duration int) {
	s.songDuration = duration
}

// Entries returns the entries ordered by start time. The returned slice is
// shared; callers must not mutate it.
func (s *Store) Entries() []*model.TimelineEntry {
	return s.entries
}

// Get returns the entry with the given ID, or nil.
func (s *Store) Get(id string) *model.TimelineEntry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Load fetches all entries for the song. On failure the prior in-memory
// state is untouched and a LoadError is returned.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.repo.ListBySong(ctx, s.songID)
	if err != nil {
		logger.Error("timeline load failed",
			logger.String("songId", s.songID),
			logger.ErrorField(err),
		)
		return &LoadError{Err: err}
	}

	s.entries = entries
	s.sortEntries()
	s.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (s *Store) Loaded() bool {
	return s.loaded
}

// Add validates the draft locally, then persists it. The server-assigned
// record is appended to local state only on success.
func (s *Store) Add(ctx context.Context, draft *model.TimelineEntry) (*model.TimelineEntry, error) {
	if err := s.validateRange(draft.StartTime, draft.EndTime); err != nil {
		return nil, err
	}
	if draft.InstrumentType == "" {
		draft.InstrumentType = model.InstrumentTypes[0]
	}
	if !draft.InstrumentType.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown instrument type %q", draft.InstrumentType)}
	}

	draft.SongID = s.songID
	if err := s.repo.Create(ctx, draft); err != nil {
		logger.Error("entry create failed",
			logger.String("songId", s.songID),
			logger.ErrorField(err),
		)
		return nil, &PersistenceError{Op: "add", Err: err}
	}

	s.entries = append(s.entries, draft)
	s.sortEntries()
	return draft, nil
}

// Update applies the change eagerly to local state and issues the
// persistence write. A failed write surfaces a PersistenceError without
// rolling the local change back.
func (s *Store) Update(ctx context.Context, id string, change *model.EntryUpdate) error {
	entry := s.Get(id)
	if entry == nil {
		return &ValidationError{Reason: fmt.Sprintf("entry %s not found", id)}
	}

	next := *entry
	change.ApplyTo(&next)
	if err := s.validateRange(next.StartTime, next.EndTime); err != nil {
		return err
	}
	if !next.InstrumentType.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown instrument type %q", next.InstrumentType)}
	}

	*entry = next
	s.sortEntries()

	if err := s.repo.Update(ctx, id, change); err != nil {
		logger.Error("entry update failed",
			logger.String("entryId", id),
			logger.ErrorField(err),
		)
		return &PersistenceError{Op: "update", Err: err}
	}
	return nil
}

// Remove deletes the entry from persistence, then filters local state on
// success only.
func (s *Store) Remove(ctx context.Context, id string) error {
	if s.Get(id) == nil {
		return &ValidationError{Reason: fmt.Sprintf("entry %s not found", id)}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		logger.Error("entry delete failed",
			logger.String("entryId", id),
			logger.ErrorField(err),
		)
		return &PersistenceError{Op: "remove", Err: err}
	}

	filtered := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	s.entries = filtered
	return nil
}

// validateRange enforces 0 <= start < end <= songDuration.
func (s *Store) validateRange(start, end int) error {
	if start < 0 {
		return &ValidationError{Reason: "start time cannot be negative"}
	}
	if start >= end {
		return &ValidationError{Reason: "start time must be less than end time"}
	}
	if end > s.songDuration {
		return &ValidationError{Reason: "end time cannot be greater than song duration"}
	}
	return nil
}

func (s *Store) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].StartTime < s.entries[j].StartTime
	})
}
