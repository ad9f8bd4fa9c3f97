package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"MixGrid/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntryRepo keeps entries in memory and can be told to fail.
type fakeEntryRepo struct {
	entries map[string]*model.TimelineEntry
	nextID  int
	failAll bool
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[string]*model.TimelineEntry)}
}

var errRepoDown = errors.New("repo down")

func (r *fakeEntryRepo) ListBySong(_ context.Context, songID string) ([]*model.TimelineEntry, error) {
	if r.failAll {
		return nil, errRepoDown
	}
	var out []*model.TimelineEntry
	for _, e := range r.entries {
		if e.SongID == songID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) GetByID(_ context.Context, id string) (*model.TimelineEntry, error) {
	if r.failAll {
		return nil, errRepoDown
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *model.TimelineEntry) error {
	if r.failAll {
		return errRepoDown
	}
	r.nextID++
	entry.ID = fmt.Sprintf("entry-%d", r.nextID)
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *fakeEntryRepo) Update(_ context.Context, id string, change *model.EntryUpdate) error {
	if r.failAll {
		return errRepoDown
	}
	e, ok := r.entries[id]
	if !ok {
		return errors.New("not found")
	}
	change.ApplyTo(e)
	return nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, id string) error {
	if r.failAll {
		return errRepoDown
	}
	delete(r.entries, id)
	return nil
}

func (r *fakeEntryRepo) DeleteBySong(_ context.Context, songID string) error {
	if r.failAll {
		return errRepoDown
	}
	for id, e := range r.entries {
		if e.SongID == songID {
			delete(r.entries, id)
		}
	}
	return nil
}

func TestStoreAddValidatesRange(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 60},
		{"start equals end", 50, 50},
		{"start after end", 50, 40},
		{"end past duration", 280, 301},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := store.Add(ctx, &model.TimelineEntry{
				InstrumentType: model.InstrumentCasioSA1,
				StartTime:      c.start,
				EndTime:        c.end,
			})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Empty(t, store.Entries())
		})
	}
}

func TestStoreAddDefaultsAndSorts(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())
	ctx := context.Background()

	later, err := store.Add(ctx, &model.TimelineEntry{
		InstrumentType: model.InstrumentZoomPedal,
		StartTime:      100,
		EndTime:        150,
	})
	require.NoError(t, err)
	require.NotEmpty(t, later.ID)
	assert.Equal(t, "song-1", later.SongID)

	earlier, err := store.Add(ctx, &model.TimelineEntry{
		StartTime: 10,
		EndTime:   40,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InstrumentCasioSA1, earlier.InstrumentType)

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, earlier.ID, entries[0].ID)
	assert.Equal(t, later.ID, entries[1].ID)
}

func TestStoreAddRejectsUnknownInstrument(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())

	_, err := store.Add(context.Background(), &model.TimelineEntry{
		InstrumentType: "THEREMIN",
		StartTime:      0,
		EndTime:        30,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestStoreLoadFailureKeepsPriorState(t *testing.T) {
	repo := newFakeEntryRepo()
	store := NewStore("song-1", 300, repo)
	ctx := context.Background()

	_, err := store.Add(ctx, &model.TimelineEntry{StartTime: 0, EndTime: 30})
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx))
	require.True(t, store.Loaded())
	require.Len(t, store.Entries(), 1)

	repo.failAll = true
	err = store.Load(ctx)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.ErrorIs(t, err, errRepoDown)
	assert.Len(t, store.Entries(), 1, "failed load must not clobber prior state")
}

func TestStoreUpdateEagerApplyNoRollback(t *testing.T) {
	repo := newFakeEntryRepo()
	store := NewStore("song-1", 300, repo)
	ctx := context.Background()

	entry, err := store.Add(ctx, &model.TimelineEntry{StartTime: 10, EndTime: 40})
	require.NoError(t, err)

	repo.failAll = true
	newStart, newEnd := 30, 60
	err = store.Update(ctx, entry.ID, &model.EntryUpdate{StartTime: &newStart, EndTime: &newEnd})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "update", perr.Op)

	// The local change stays applied even though the write failed.
	got := store.Get(entry.ID)
	require.NotNil(t, got)
	assert.Equal(t, 30, got.StartTime)
	assert.Equal(t, 60, got.EndTime)
}

func TestStoreUpdateValidatesResult(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())
	ctx := context.Background()

	entry, err := store.Add(ctx, &model.TimelineEntry{StartTime: 10, EndTime: 40})
	require.NoError(t, err)

	badEnd := 400
	err = store.Update(ctx, entry.ID, &model.EntryUpdate{EndTime: &badEnd})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got := store.Get(entry.ID)
	assert.Equal(t, 40, got.EndTime, "invalid update must not touch the entry")
}

func TestStoreUpdateUnknownEntry(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())

	start := 5
	err := store.Update(context.Background(), "missing", &model.EntryUpdate{StartTime: &start})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestStoreRemove(t *testing.T) {
	repo := newFakeEntryRepo()
	store := NewStore("song-1", 300, repo)
	ctx := context.Background()

	entry, err := store.Add(ctx, &model.TimelineEntry{StartTime: 10, EndTime: 40})
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, entry.ID))
	assert.Empty(t, store.Entries())
	assert.Empty(t, repo.entries)
}

func TestStoreRemoveFailureKeepsEntry(t *testing.T) {
	repo := newFakeEntryRepo()
	store := NewStore("song-1", 300, repo)
	ctx := context.Background()

	entry, err := store.Add(ctx, &model.TimelineEntry{StartTime: 10, EndTime: 40})
	require.NoError(t, err)

	repo.failAll = true
	err = store.Remove(ctx, entry.ID)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, store.Entries(), 1)
}

func TestStoreSetSongDuration(t *testing.T) {
	store := NewStore("song-1", 300, newFakeEntryRepo())
	ctx := context.Background()

	_, err := store.Add(ctx, &model.TimelineEntry{StartTime: 200, EndTime: 280})
	require.NoError(t, err)

	store.SetSongDuration(120)
	assert.Equal(t, 120, store.SongDuration())

	// Existing entries are untouched; new mutations see the new bound.
	assert.Len(t, store.Entries(), 1)
	_, err = store.Add(ctx, &model.TimelineEntry{StartTime: 100, EndTime: 130})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
