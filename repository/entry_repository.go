package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MixGrid/db"
	"MixGrid/model"

	"github.com/google/uuid"
)

// EntryRepository defines the persistence operations for timeline entries.
// Listing is always ordered by start_time ascending.
type EntryRepository interface {
	ListBySong(ctx context.Context, songID string) ([]*model.TimelineEntry, error)
	GetByID(ctx context.Context, id string) (*model.TimelineEntry, error)
	Create(ctx context.Context, entry *model.TimelineEntry) error
	Update(ctx context.Context, id string, change *model.EntryUpdate) error
	Delete(ctx context.Context, id string) error
	DeleteBySong(ctx context.Context, songID string) error
}

// mysqlEntryRepository implements EntryRepository for MySQL.
type mysqlEntryRepository struct {
	DB *sql.DB
}

// NewMySQLEntryRepository creates a new instance of mysqlEntryRepository.
func NewMySQLEntryRepository(database *sql.DB) EntryRepository {
	if database == nil {
		database = db.DB
	}
	return &mysqlEntryRepository{DB: database}
}

// ListBySong retrieves all entries for a song ordered by start_time ascending.
func (r *mysqlEntryRepository) ListBySong(ctx context.Context, songID string) ([]*model.TimelineEntry, error) {
	query := `SELECT id, song_id, instrument_type, start_time, end_time, notes, settings, created_at
	           FROM timeline_entries WHERE song_id = ? ORDER BY start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for song %s: %w", songID, err)
	}
	defer rows.Close()

	entries := make([]*model.TimelineEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry in ListBySong: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListBySong: %w", err)
	}
	return entries, nil
}

// GetByID retrieves an entry by ID, or nil if it does not exist.
func (r *mysqlEntryRepository) GetByID(ctx context.Context, id string) (*model.TimelineEntry, error) {
	query := `SELECT id, song_id, instrument_type, start_time, end_time, notes, settings, created_at
	           FROM timeline_entries WHERE id = ?`
	row := r.DB.QueryRowContext(ctx, query, id)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Entry not found
		}
		return nil, fmt.Errorf("failed to scan entry by ID %s: %w", id, err)
	}
	return entry, nil
}

// Create inserts a new entry, assigning it a fresh ID.
func (r *mysqlEntryRepository) Create(ctx context.Context, entry *model.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	settings := entry.Settings
	if len(settings) == 0 {
		settings = []byte("{}")
	}

	query := `INSERT INTO timeline_entries (id, song_id, instrument_type, start_time, end_time, notes, settings, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for Create: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, entry.ID, entry.SongID, string(entry.InstrumentType),
		entry.StartTime, entry.EndTime, entry.Notes, string(settings), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute Create for entry: %w", err)
	}
	return nil
}

// Update applies a partial update. Only the populated fields of change are
// written.
func (r *mysqlEntryRepository) Update(ctx context.Context, id string, change *model.EntryUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	if change.InstrumentType != nil {
		sets = append(sets, "instrument_type = ?")
		args = append(args, string(*change.InstrumentType))
	}
	if change.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, *change.StartTime)
	}
	if change.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, *change.EndTime)
	}
	if change.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *change.Notes)
	}
	if change.Settings != nil {
		sets = append(sets, "settings = ?")
		args = append(args, string(change.Settings))
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE timeline_entries SET %s WHERE id = ?", strings.Join(sets, ", "))
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute Update for entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		// Matched zero rows is only an error if the entry is gone; a no-change
		// update also reports zero. Check existence.
		var exists int
		if scanErr := r.DB.QueryRowContext(ctx, "SELECT 1 FROM timeline_entries WHERE id = ?", id).Scan(&exists); scanErr == sql.ErrNoRows {
			return fmt.Errorf("entry %s not found", id)
		}
	}
	return nil
}

// Delete removes an entry by ID.
func (r *mysqlEntryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM timeline_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}

// DeleteBySong removes every entry of a song. Called before the song row
// itself is deleted.
func (r *mysqlEntryRepository) DeleteBySong(ctx context.Context, songID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM timeline_entries WHERE song_id = ?", songID)
	if err != nil {
		return fmt.Errorf("failed to delete entries for song %s: %w", songID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*model.TimelineEntry, error) {
	entry := &model.TimelineEntry{}
	var instrument string
	var notes sql.NullString
	var settings sql.NullString
	err := row.Scan(&entry.ID, &entry.SongID, &instrument, &entry.StartTime,
		&entry.EndTime, &notes, &settings, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.InstrumentType = model.InstrumentType(instrument)
	if notes.Valid {
		entry.Notes = notes.String
	}
	if settings.Valid && settings.String != "" {
		entry.Settings = []byte(settings.String)
	} else {
		entry.Settings = []byte("{}")
	}
	return entry, nil
}
