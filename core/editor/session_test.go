package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"MixGrid/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memEntryRepo is an in-memory EntryRepository for session tests.
type memEntryRepo struct {
	entries map[string]*model.TimelineEntry
	nextID  int
	fail    bool
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[string]*model.TimelineEntry)}
}

var errStoreDown = errors.New("store down")

func (r *memEntryRepo) ListBySong(_ context.Context, songID string) ([]*model.TimelineEntry, error) {
	if r.fail {
		return nil, errStoreDown
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

func (r *memEntryRepo) GetByID(_ context.Context, id string) (*model.TimelineEntry, error) {
	if e, ok := r.entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, nil
}

func (r *memEntryRepo) Create(_ context.Context, entry *model.TimelineEntry) error {
	if r.fail {
		return errStoreDown
	}
	r.nextID++
	entry.ID = fmt.Sprintf("entry-%d", r.nextID)
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *memEntryRepo) Update(_ context.Context, id string, change *model.EntryUpdate) error {
	if r.fail {
		return errStoreDown
	}
	e, ok := r.entries[id]
	if !ok {
		return errors.New("not found")
	}
	change.ApplyTo(e)
	return nil
}

func (r *memEntryRepo) Delete(_ context.Context, id string) error {
	if r.fail {
		return errStoreDown
	}
	delete(r.entries, id)
	return nil
}

func (r *memEntryRepo) DeleteBySong(_ context.Context, songID string) error {
	for id, e := range r.entries {
		if e.SongID == songID {
			delete(r.entries, id)
		}
	}
	return nil
}

// memSongRepo is an in-memory SongRepository for session tests.
type memSongRepo struct {
	songs map[string]*model.Song
	fail  bool
}

func newMemSongRepo(songs ...*model.Song) *memSongRepo {
	r := &memSongRepo{songs: make(map[string]*model.Song)}
	for _, s := range songs {
		copied := *s
		r.songs[s.ID] = &copied
	}
	return r
}

func (r *memSongRepo) GetByID(_ context.Context, id string) (*model.Song, error) {
	if s, ok := r.songs[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (r *memSongRepo) ListByUser(_ context.Context, userID int64) ([]*model.Song, error) {
	var out []*model.Song
	for _, s := range r.songs {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memSongRepo) Create(_ context.Context, song *model.Song) error {
	copied := *song
	r.songs[song.ID] = &copied
	return nil
}

func (r *memSongRepo) Update(_ context.Context, song *model.Song) error {
	if r.fail {
		return errStoreDown
	}
	copied := *song
	r.songs[song.ID] = &copied
	return nil
}

func (r *memSongRepo) Delete(_ context.Context, id string) error {
	delete(r.songs, id)
	return nil
}

// recorder captures every event a session emits. The clock delivers playback
// events from its tick goroutine, so access is locked.
type recorder struct {
	mu       sync.Mutex
	messages []*WSMessage
}

func (r *recorder) emit(msg *WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) ofType(t MessageType) []*WSMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*WSMessage
	for _, m := range r.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) last(t MessageType) *WSMessage {
	msgs := r.ofType(t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func newTestSession(t *testing.T) (*Session, *memEntryRepo, *memSongRepo, *recorder) {
	t.Helper()
	song := &model.Song{ID: "song-1", UserID: 7, Title: "New Song", Duration: 300}
	songs := newMemSongRepo(song)
	entries := newMemEntryRepo()
	rec := &recorder{}
	s := NewSession(song, songs, entries, 800, 600, 0, rec.emit)
	require.NoError(t, s.Open(context.Background()))
	return s, entries, songs, rec
}

func gesture(t *testing.T, msgType MessageType, payload interface{}) *WSMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &WSMessage{Type: msgType, Data: data}
}

func decodeData(t *testing.T, msg *WSMessage, v interface{}) {
	t.Helper()
	require.NotNil(t, msg)
	require.NoError(t, json.Unmarshal(msg.Data, v))
}

func TestSessionSnapshot(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	snap := s.Snapshot()
	require.Equal(t, MsgTypeState, snap.Type)
	require.Equal(t, "song-1", snap.SongID)

	var state StateData
	decodeData(t, snap, &state)
	assert.Equal(t, "New Song", state.Song.Title)
	assert.Equal(t, 300, state.Song.Duration)
	assert.Empty(t, state.Entries)
	assert.Len(t, state.Markers, 61) // 0..300 stepping by 5
	assert.Equal(t, "5:00", state.Markers[60].Label)
	assert.False(t, state.Playback.IsPlaying)
	assert.False(t, state.Overlay.Active)
}

func TestSessionAddEntryAndDrag(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{
		InstrumentType: model.InstrumentCasioSA1,
		StartTime:      10,
		EndTime:        40,
	}))

	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	require.Len(t, entries, 1)
	entryID := entries[0].ID
	assert.Equal(t, 10, entries[0].StartTime)
	assert.Equal(t, 40, entries[0].EndTime)

	// The new entry gets a workflow node.
	var graph GraphData
	decodeData(t, rec.last(MsgTypeGraph), &graph)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, entryID, graph.Nodes[0].ID)

	// Drag right by 40px on a 600px timeline over 300s: +20s.
	s.HandleMessage(ctx, gesture(t, MsgTypePointerDown, PointerData{EntryID: entryID, X: 100}))
	s.HandleMessage(ctx, gesture(t, MsgTypePointerMove, PointerData{X: 140, Width: 600}))
	s.HandleMessage(ctx, gesture(t, MsgTypePointerUp, struct{}{}))

	decodeData(t, rec.last(MsgTypeEntries), &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, 30, entries[0].StartTime)
	assert.Equal(t, 60, entries[0].EndTime)

	// Moves after pointer-up are ignored.
	before := len(rec.ofType(MsgTypeEntries))
	s.HandleMessage(ctx, gesture(t, MsgTypePointerMove, PointerData{X: 200, Width: 600}))
	assert.Len(t, rec.ofType(MsgTypeEntries), before)
}

func TestSessionAddEntryRejectsInvalidRange(t *testing.T) {
	s, _, _, rec := newTestSession(t)

	s.HandleMessage(context.Background(), gesture(t, MsgTypeEntryAdd, EntryAddData{
		InstrumentType: model.InstrumentCasioSA1,
		StartTime:      50,
		EndTime:        40,
	}))

	var errData ErrorData
	decodeData(t, rec.last(MsgTypeError), &errData)
	assert.Equal(t, "validation", errData.Kind)
	assert.Nil(t, rec.last(MsgTypeEntries))
}

func TestSessionDeleteEntryRelayoutsGraph(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 0, EndTime: 30, InstrumentType: model.InstrumentCasioSA1}))
	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 40, EndTime: 80, InstrumentType: model.InstrumentZoomPedal}))

	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	require.Len(t, entries, 2)
	first := entries[0].ID

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryDelete, EntryRefData{EntryID: first}))

	decodeData(t, rec.last(MsgTypeEntries), &entries)
	require.Len(t, entries, 1)

	var graph GraphData
	decodeData(t, rec.last(MsgTypeGraph), &graph)
	require.Len(t, graph.Nodes, 1)
	assert.NotEqual(t, first, graph.Nodes[0].ID)
}

func TestSessionConnectGestureOverWS(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 0, EndTime: 30, InstrumentType: model.InstrumentCasioSA1}))
	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 40, EndTime: 80, InstrumentType: model.InstrumentZoomPedal}))

	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	a, b := entries[0].ID, entries[1].ID

	s.HandleMessage(ctx, gesture(t, MsgTypeNodeClick, NodeData{NodeID: a}))

	var edges EdgesData
	decodeData(t, rec.last(MsgTypeEdges), &edges)
	assert.True(t, edges.Pending.Active)
	assert.Equal(t, a, edges.Pending.NodeID)

	s.HandleMessage(ctx, gesture(t, MsgTypeNodeClick, NodeData{NodeID: b}))

	decodeData(t, rec.last(MsgTypeEdges), &edges)
	assert.False(t, edges.Pending.Active)
	require.Len(t, edges.Connections, 2)
	assert.Equal(t, 1, edges.MixerInputs)
	for _, e := range edges.Connections {
		assert.NotEmpty(t, e.Path)
	}

	s.HandleMessage(ctx, gesture(t, MsgTypeConnRemove, ConnectionData{From: a, To: b}))
	decodeData(t, rec.last(MsgTypeEdges), &edges)
	require.Len(t, edges.Connections, 1)
	assert.Equal(t, "mixer", edges.Connections[0].To)
}

func TestSessionOverlayStageAndSave(t *testing.T) {
	s, entryRepo, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 10, EndTime: 40, InstrumentType: model.InstrumentCasioSA1}))
	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	entryID := entries[0].ID

	s.HandleMessage(ctx, gesture(t, MsgTypeEditOpen, EntryRefData{EntryID: entryID}))

	var overlay OverlayData
	decodeData(t, rec.last(MsgTypeOverlay), &overlay)
	require.True(t, overlay.Active)
	assert.Equal(t, entryID, overlay.Staged.ID)

	// Stage an end past the song duration: clamps to 300.
	end := 500
	instrument := model.InstrumentAtaripunk
	s.HandleMessage(ctx, gesture(t, MsgTypeEditStage, StageData{EndTime: &end, InstrumentType: &instrument}))

	decodeData(t, rec.last(MsgTypeOverlay), &overlay)
	assert.Equal(t, 300, overlay.Staged.EndTime)
	assert.Equal(t, model.InstrumentAtaripunk, overlay.Staged.InstrumentType)

	// Staging never touches the store before save.
	assert.Equal(t, 40, entryRepo.entries[entryID].EndTime)

	s.HandleMessage(ctx, gesture(t, MsgTypeEditSave, struct{}{}))

	decodeData(t, rec.last(MsgTypeOverlay), &overlay)
	assert.False(t, overlay.Active)
	assert.Equal(t, 300, entryRepo.entries[entryID].EndTime)
	assert.Equal(t, model.InstrumentAtaripunk, entryRepo.entries[entryID].InstrumentType)
}

func TestSessionOverlayCancelDiscards(t *testing.T) {
	s, entryRepo, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 10, EndTime: 40, InstrumentType: model.InstrumentCasioSA1}))
	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	entryID := entries[0].ID

	s.HandleMessage(ctx, gesture(t, MsgTypeEditOpen, EntryRefData{EntryID: entryID}))
	start := 20
	s.HandleMessage(ctx, gesture(t, MsgTypeEditStage, StageData{StartTime: &start}))
	s.HandleMessage(ctx, gesture(t, MsgTypeEditCancel, struct{}{}))

	var overlay OverlayData
	decodeData(t, rec.last(MsgTypeOverlay), &overlay)
	assert.False(t, overlay.Active)
	assert.Equal(t, 10, entryRepo.entries[entryID].StartTime)
}

func TestSessionDeleteEntryClosesItsOverlay(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeEntryAdd, EntryAddData{StartTime: 10, EndTime: 40, InstrumentType: model.InstrumentCasioSA1}))
	var entries []*model.TimelineEntry
	decodeData(t, rec.last(MsgTypeEntries), &entries)
	entryID := entries[0].ID

	s.HandleMessage(ctx, gesture(t, MsgTypeEditOpen, EntryRefData{EntryID: entryID}))
	s.HandleMessage(ctx, gesture(t, MsgTypeEntryDelete, EntryRefData{EntryID: entryID}))

	var overlay OverlayData
	decodeData(t, rec.last(MsgTypeOverlay), &overlay)
	assert.False(t, overlay.Active)
}

func TestSessionPlayPause(t *testing.T) {
	s, _, _, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypePlay, struct{}{}))

	var pb PlaybackData
	decodeData(t, rec.last(MsgTypePlayback), &pb)
	assert.True(t, pb.IsPlaying)

	s.HandleMessage(ctx, gesture(t, MsgTypePause, struct{}{}))
	decodeData(t, rec.last(MsgTypePlayback), &pb)
	assert.False(t, pb.IsPlaying)
}

func TestSessionSongUpdate(t *testing.T) {
	s, _, songRepo, rec := newTestSession(t)
	ctx := context.Background()

	s.HandleMessage(ctx, gesture(t, MsgTypeSongUpdate, SongUpdateData{Title: "Night Mix", Duration: 180}))

	var state StateData
	decodeData(t, rec.last(MsgTypeState), &state)
	assert.Equal(t, "Night Mix", state.Song.Title)
	assert.Equal(t, 180, state.Song.Duration)
	assert.Equal(t, "Night Mix", songRepo.songs["song-1"].Title)

	// Negative duration is refused.
	s.HandleMessage(ctx, gesture(t, MsgTypeSongUpdate, SongUpdateData{Title: "x", Duration: 0}))
	var errData ErrorData
	decodeData(t, rec.last(MsgTypeError), &errData)
	assert.Equal(t, "validation", errData.Kind)
	assert.Equal(t, "Night Mix", s.Song().Title)
}

func TestSessionPlaybackEventsDuringSongUpdates(t *testing.T) {
	song := &model.Song{ID: "song-1", UserID: 7, Title: "New Song", Duration: 300}
	songs := newMemSongRepo(song)
	rec := &recorder{}
	s := NewSession(song, songs, newMemEntryRepo(), 800, 600, time.Millisecond, rec.emit)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	// Tick events fire off the session mutex while song edits replace the
	// song under it; both must carry the stable song ID.
	s.HandleMessage(ctx, gesture(t, MsgTypePlay, struct{}{}))
	for i := 0; i < 50; i++ {
		s.HandleMessage(ctx, gesture(t, MsgTypeSongUpdate, SongUpdateData{
			Title:    fmt.Sprintf("take %d", i),
			Duration: 300,
		}))
	}
	s.HandleMessage(ctx, gesture(t, MsgTypePause, struct{}{}))
	s.Close()

	events := rec.ofType(MsgTypePlayback)
	require.NotEmpty(t, events)
	for _, msg := range events {
		assert.Equal(t, "song-1", msg.SongID)
	}
	assert.Equal(t, "take 49", s.Song().Title)
}

func TestSessionPersistenceErrorSurfaced(t *testing.T) {
	s, _, songRepo, rec := newTestSession(t)

	songRepo.fail = true
	s.HandleMessage(context.Background(), gesture(t, MsgTypeSongUpdate, SongUpdateData{Title: "x", Duration: 100}))

	var errData ErrorData
	decodeData(t, rec.last(MsgTypeError), &errData)
	assert.Equal(t, "persistence", errData.Kind)
	assert.Equal(t, "New Song", s.Song().Title)
}

func TestSessionRestorePlayback(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	s.RestorePlayback(120)
	assert.Equal(t, 120.0, s.PlaybackPosition())

	// Out-of-range snapshots are ignored.
	s.RestorePlayback(-1)
	assert.Equal(t, 120.0, s.PlaybackPosition())
	s.RestorePlayback(300)
	assert.Equal(t, 120.0, s.PlaybackPosition())
}
