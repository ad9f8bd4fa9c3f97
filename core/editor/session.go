package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"MixGrid/core/playback"
	"MixGrid/core/timeline"
	"MixGrid/core/workflow"
	"MixGrid/logger"
	"MixGrid/model"
	"MixGrid/repository"
)

// Session is the single logical owner of one song's editing state: the
// entry store, the workflow graph, the playback clock, the drag machine and
// the edit overlay. Every gesture is serialized through the session mutex in
// arrival order; there is no concurrent mutation.
type Session struct {
	mu sync.Mutex

	// songID never changes for the lifetime of the session; the tick
	// goroutine reads it without the mutex.
	songID string

	song  *model.Song
	songs repository.SongRepository

	store   *timeline.Store
	graph   *workflow.Graph
	clock   *playback.Clock
	dragger timeline.Dragger
	overlay Overlay

	// saving disables redundant submit gestures while a persistence call
	// for an add or overlay save is outstanding. It does not queue them.
	saving bool

	emit func(*WSMessage)
}

// NewSession builds the session for a song. tickInterval drives the playback
// broadcast loop; emit receives every event the session produces.
func NewSession(song *model.Song, songs repository.SongRepository, entries repository.EntryRepository,
	canvasWidth, canvasHeight float64, tickInterval time.Duration, emit func(*WSMessage)) *Session {

	s := &Session{
		songID: song.ID,
		song:   song,
		songs:  songs,
		store:  timeline.NewStore(song.ID, song.Duration, entries),
		graph:  workflow.NewGraph(canvasWidth, canvasHeight),
		clock:  playback.NewClock(float64(song.Duration), tickInterval),
		emit:   emit,
	}
	if s.emit == nil {
		s.emit = func(*WSMessage) {}
	}

	s.clock.OnTick = func(position float64) {
		s.emitPlayback(position, true)
	}
	s.clock.OnStop = func() {
		s.emitPlayback(0, false)
	}
	return s
}

// Open loads the entry set and lays the workflow graph out.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(ctx); err != nil {
		return err
	}
	s.graph.Layout(s.entryIDs())
	return nil
}

// Close stops the playback clock. Pause tears the tick loop down, so no
// playback event fires after Close returns.
func (s *Session) Close() {
	s.clock.Pause()
}

// Song returns the song metadata.
func (s *Session) Song() *model.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	song := *s.song
	return &song
}

// PlaybackPosition returns the cursor position for snapshotting.
func (s *Session) PlaybackPosition() float64 {
	return s.clock.CurrentTime()
}

// RestorePlayback seeds the cursor from a snapshot, clamped to the song.
func (s *Session) RestorePlayback(position float64) {
	if position < 0 || position >= float64(s.Song().Duration) {
		return
	}
	s.clock.Seek(position)
}

// HandleMessage dispatches one client gesture. Unknown types are ignored.
func (s *Session) HandleMessage(ctx context.Context, msg *WSMessage) {
	switch msg.Type {
	case MsgTypeSync:
		s.emitState()

	case MsgTypeCanvasSize:
		var data CanvasData
		if unmarshal(msg.Data, &data) {
			s.resizeCanvas(data)
		}

	case MsgTypePointerDown:
		var data PointerData
		if unmarshal(msg.Data, &data) {
			s.pointerDown(data)
		}

	case MsgTypePointerMove:
		var data PointerData
		if unmarshal(msg.Data, &data) {
			s.pointerMove(ctx, data)
		}

	case MsgTypePointerUp:
		s.pointerUp()

	case MsgTypeNodeClick:
		var data NodeData
		if unmarshal(msg.Data, &data) {
			s.nodeClick(data.NodeID)
		}

	case MsgTypeNodeDragStart:
		var data NodeData
		if unmarshal(msg.Data, &data) {
			s.nodeDragStart(data)
		}

	case MsgTypeNodeDragMove:
		var data NodeData
		if unmarshal(msg.Data, &data) {
			s.nodeDragMove(data)
		}

	case MsgTypeNodeDragEnd:
		s.nodeDragEnd()

	case MsgTypeConnRemove:
		var data ConnectionData
		if unmarshal(msg.Data, &data) {
			s.removeConnection(data)
		}

	case MsgTypePlay:
		s.play()

	case MsgTypePause:
		s.pause()

	case MsgTypeEntryAdd:
		var data EntryAddData
		if unmarshal(msg.Data, &data) {
			s.addEntry(ctx, data)
		}

	case MsgTypeEntryDelete:
		var data EntryRefData
		if unmarshal(msg.Data, &data) {
			s.deleteEntry(ctx, data.EntryID)
		}

	case MsgTypeEditOpen:
		var data EntryRefData
		if unmarshal(msg.Data, &data) {
			s.editOpen(data.EntryID)
		}

	case MsgTypeEditStage:
		var data StageData
		if unmarshal(msg.Data, &data) {
			s.editStage(data)
		}

	case MsgTypeEditSave:
		s.editSave(ctx)

	case MsgTypeEditCancel:
		s.editCancel()

	case MsgTypeSongUpdate:
		var data SongUpdateData
		if unmarshal(msg.Data, &data) {
			s.updateSong(ctx, data)
		}
	}
}

// ---------- timeline gestures ----------

func (s *Session) pointerDown(data PointerData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.store.Get(data.EntryID)
	if entry == nil {
		return
	}
	// A new drag implicitly ends any prior one.
	s.dragger.End()
	s.dragger.Begin(entry.ID, data.X, entry.StartTime, entry.EndTime)
}

func (s *Session) pointerMove(ctx context.Context, data PointerData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end, ok := s.dragger.Move(data.X, s.store.SongDuration(), data.Width)
	if !ok {
		return
	}

	entryID := s.dragger.EntryID()
	entry := s.store.Get(entryID)
	if entry == nil || (entry.StartTime == start && entry.EndTime == end) {
		return
	}

	change := &model.EntryUpdate{StartTime: &start, EndTime: &end}
	if err := s.store.Update(ctx, entryID, change); err != nil {
		s.emitErrorLocked(err)
		return
	}
	s.emitEntriesLocked()
}

func (s *Session) pointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragger.End()
}

func (s *Session) addEntry(ctx context.Context, data EntryAddData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving {
		return
	}
	s.saving = true
	defer func() { s.saving = false }()

	draft := &model.TimelineEntry{
		InstrumentType: data.InstrumentType,
		StartTime:      data.StartTime,
		EndTime:        data.EndTime,
		Notes:          data.Notes,
		Settings:       data.Settings,
	}
	if _, err := s.store.Add(ctx, draft); err != nil {
		s.emitErrorLocked(err)
		return
	}

	s.graph.Layout(s.entryIDs())
	s.emitEntriesLocked()
	s.emitGraphLocked()
	s.emitEdgesLocked()
}

func (s *Session) deleteEntry(ctx context.Context, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, entryID); err != nil {
		s.emitErrorLocked(err)
		return
	}
	if s.dragger.EntryID() == entryID {
		s.dragger.End()
	}
	if staged := s.overlay.Staged(); staged != nil && staged.ID == entryID {
		s.overlay.Cancel()
		s.emitOverlayLocked()
	}

	s.graph.Layout(s.entryIDs())
	s.emitEntriesLocked()
	s.emitGraphLocked()
	s.emitEdgesLocked()
}

// ---------- workflow gestures ----------

func (s *Session) resizeCanvas(data CanvasData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.SetCanvasSize(data.Width, data.Height)
	s.emitGraphLocked()
	s.emitEdgesLocked()
}

func (s *Session) nodeClick(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.ClickNode(nodeID)
	s.emitEdgesLocked()
}

func (s *Session) nodeDragStart(data NodeData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.BeginNodeDrag(data.NodeID, workflow.Position{X: data.X, Y: data.Y})
}

func (s *Session) nodeDragMove(data NodeData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graph.MoveNodeDrag(workflow.Position{X: data.X, Y: data.Y}); ok {
		s.emitGraphLocked()
		s.emitEdgesLocked()
	}
}

func (s *Session) nodeDragEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.EndNodeDrag()
}

func (s *Session) removeConnection(data ConnectionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph.RemoveConnection(data.From, data.To) {
		s.emitEdgesLocked()
	}
}

// ---------- playback ----------

func (s *Session) play() {
	s.clock.Start()
	s.emitPlayback(s.clock.CurrentTime(), s.clock.State() == playback.Running)
}

func (s *Session) pause() {
	s.clock.Pause()
	s.emitPlayback(s.clock.CurrentTime(), false)
}

// ---------- edit overlay ----------

func (s *Session) editOpen(entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.store.Get(entryID)
	if entry == nil {
		s.emitErrorLocked(&timeline.ValidationError{Reason: "entry not found"})
		return
	}
	s.overlay.Open(entry)
	s.emitOverlayLocked()
}

func (s *Session) editStage(data StageData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.Stage(data, s.store.SongDuration())
	s.emitOverlayLocked()
}

func (s *Session) editSave(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saving || !s.overlay.Active() {
		return
	}
	s.saving = true
	defer func() { s.saving = false }()

	if err := s.overlay.Save(ctx, s.store); err != nil {
		s.emitErrorLocked(err)
	}
	s.graph.Layout(s.entryIDs())
	s.emitOverlayLocked()
	s.emitEntriesLocked()
}

func (s *Session) editCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.Cancel()
	s.emitOverlayLocked()
}

// ---------- song metadata ----------

func (s *Session) updateSong(ctx context.Context, data SongUpdateData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.Duration <= 0 {
		s.emitErrorLocked(&timeline.ValidationError{Reason: "duration must be positive"})
		return
	}

	next := *s.song
	next.Title = data.Title
	next.Duration = data.Duration
	if err := s.songs.Update(ctx, &next); err != nil {
		s.emitErrorLocked(&timeline.PersistenceError{Op: "song update", Err: err})
		return
	}

	s.song = &next
	s.store.SetSongDuration(next.Duration)
	s.clock.SetDuration(float64(next.Duration))
	s.emitStateLocked()
}

// ---------- events ----------

// Snapshot builds a full state view for a newly attached client.
func (s *Session) Snapshot() *WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateMessage()
}

func (s *Session) stateMessage() *WSMessage {
	song := *s.song
	state := StateData{
		Song:    &song,
		Entries: s.store.Entries(),
		Markers: convertMarkers(timeline.GenerateMarkers(song.Duration)),
		Graph:   s.graphData(),
		Edges:   s.edgesData(),
		Playback: PlaybackData{
			Position:  s.clock.CurrentTime(),
			IsPlaying: s.clock.State() == playback.Running,
		},
		Overlay: OverlayData{Active: s.overlay.Active(), Staged: s.overlay.Staged()},
	}
	return envelope(MsgTypeState, s.songID, state)
}

func (s *Session) entryIDs() []string {
	entries := s.store.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func (s *Session) graphData() GraphData {
	return GraphData{Mixer: s.graph.Center(), Nodes: s.graph.Nodes()}
}

func (s *Session) edgesData() EdgesData {
	connections := s.graph.Connections()
	views := make([]EdgeView, 0, len(connections))
	for _, c := range connections {
		if path, ok := s.graph.ConnectionPath(c); ok {
			views = append(views, EdgeView{From: c.From, To: c.To, Path: path})
		}
	}
	return EdgesData{
		Connections: views,
		Pending:     s.graph.Pending(),
		MixerInputs: s.graph.MixerInputCount(),
	}
}

func (s *Session) emitState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitStateLocked()
}

func (s *Session) emitStateLocked() {
	s.emit(s.stateMessage())
}

func (s *Session) emitEntriesLocked() {
	s.emit(envelope(MsgTypeEntries, s.songID, s.store.Entries()))
}

func (s *Session) emitGraphLocked() {
	s.emit(envelope(MsgTypeGraph, s.songID, s.graphData()))
}

func (s *Session) emitEdgesLocked() {
	s.emit(envelope(MsgTypeEdges, s.songID, s.edgesData()))
}

func (s *Session) emitOverlayLocked() {
	s.emit(envelope(MsgTypeOverlay, s.songID, OverlayData{
		Active: s.overlay.Active(),
		Staged: s.overlay.Staged(),
	}))
}

// emitPlayback runs without the session mutex; the clock invokes it from its
// tick goroutine. It must only touch immutable session state.
func (s *Session) emitPlayback(position float64, isPlaying bool) {
	s.emit(envelope(MsgTypePlayback, s.songID, PlaybackData{
		Position:  position,
		IsPlaying: isPlaying,
	}))
}

func (s *Session) emitErrorLocked(err error) {
	kind := "internal"
	var validationErr *timeline.ValidationError
	var persistenceErr *timeline.PersistenceError
	var loadErr *timeline.LoadError
	switch {
	case errors.As(err, &validationErr):
		kind = "validation"
	case errors.As(err, &persistenceErr):
		kind = "persistence"
	case errors.As(err, &loadErr):
		kind = "load"
	}
	s.emit(envelope(MsgTypeError, s.songID, ErrorData{Kind: kind, Message: err.Error()}))
}

func envelope(msgType MessageType, songID string, payload interface{}) *WSMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal editor event",
			logger.String("type", string(msgType)),
			logger.ErrorField(err))
		data = []byte("{}")
	}
	return &WSMessage{
		Type:      msgType,
		SongID:    songID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

func unmarshal(data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("invalid gesture payload", logger.ErrorField(err))
		return false
	}
	return true
}

func convertMarkers(markers []timeline.Marker) []timelineMarker {
	out := make([]timelineMarker, len(markers))
	for i, m := range markers {
		out[i] = timelineMarker{Time: m.Time, IsMajor: m.IsMajor, Label: m.Label}
	}
	return out
}
