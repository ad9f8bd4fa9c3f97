package editor

import (
	"encoding/json"

	"MixGrid/core/workflow"
	"MixGrid/model"
)

// MessageType tags editor websocket messages.
type MessageType string

const (
	// Client -> server gestures
	MsgTypeSync       MessageType = "sync"        // Request a full state snapshot
	MsgTypeCanvasSize MessageType = "canvas_size" // Client reports canvas dimensions

	MsgTypePointerDown MessageType = "pointer_down" // Begin timeline entry drag
	MsgTypePointerMove MessageType = "pointer_move" // Drag in progress
	MsgTypePointerUp   MessageType = "pointer_up"   // End drag (also sent on pointer-leave)

	MsgTypeNodeClick     MessageType = "node_click"      // Two-phase connect gesture
	MsgTypeNodeDragStart MessageType = "node_drag_start" // Begin free node drag
	MsgTypeNodeDragMove  MessageType = "node_drag_move"
	MsgTypeNodeDragEnd   MessageType = "node_drag_end"
	MsgTypeConnRemove    MessageType = "connection_remove" // Right-click on an edge

	MsgTypePlay  MessageType = "play"
	MsgTypePause MessageType = "pause"

	MsgTypeEntryAdd    MessageType = "entry_add"
	MsgTypeEntryDelete MessageType = "entry_delete"

	MsgTypeEditOpen   MessageType = "edit_open"   // Open the edit overlay for one entry
	MsgTypeEditStage  MessageType = "edit_stage"  // Mutate the staged copy
	MsgTypeEditSave   MessageType = "edit_save"   // Commit staged copy atomically
	MsgTypeEditCancel MessageType = "edit_cancel" // Discard staged copy

	MsgTypeSongUpdate MessageType = "song_update" // Title/duration edit

	// Server -> client events
	MsgTypeState    MessageType = "state"    // Full snapshot
	MsgTypeEntries  MessageType = "entries"  // Entry set changed
	MsgTypeGraph    MessageType = "graph"    // Node positions changed
	MsgTypeEdges    MessageType = "edges"    // Connection set or pending source changed
	MsgTypePlayback MessageType = "playback" // Cursor position / play state
	MsgTypeOverlay  MessageType = "overlay"  // Edit overlay state
	MsgTypeError    MessageType = "error"
)

// WSMessage is the envelope for every editor websocket frame.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	SongID    string          `json:"songId,omitempty"`
	UserID    int64           `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PointerData carries a timeline drag gesture position. Width is the
// client's rendered timeline width in pixels.
type PointerData struct {
	EntryID string  `json:"entryId,omitempty"`
	X       float64 `json:"x"`
	Width   float64 `json:"width,omitempty"`
}

// NodeData carries a workflow node gesture.
type NodeData struct {
	NodeID string  `json:"nodeId"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
}

// ConnectionData names an edge for removal.
type ConnectionData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CanvasData reports client canvas dimensions.
type CanvasData struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EntryAddData is the draft for a new timeline entry.
type EntryAddData struct {
	InstrumentType model.InstrumentType `json:"instrumentType"`
	StartTime      int                  `json:"startTime"`
	EndTime        int                  `json:"endTime"`
	Notes          string               `json:"notes"`
	Settings       json.RawMessage      `json:"settings,omitempty"`
}

// EntryRefData names an entry.
type EntryRefData struct {
	EntryID string `json:"entryId"`
}

// StageData mutates the staged copy in the edit overlay. Nil fields are
// untouched.
type StageData struct {
	InstrumentType *model.InstrumentType `json:"instrumentType,omitempty"`
	StartTime      *int                  `json:"startTime,omitempty"`
	EndTime        *int                  `json:"endTime,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
}

// SongUpdateData edits song metadata.
type SongUpdateData struct {
	Title    string `json:"title"`
	Duration int    `json:"duration"`
}

// PlaybackData is the server's playback event payload.
type PlaybackData struct {
	Position  float64 `json:"position"`
	IsPlaying bool    `json:"isPlaying"`
}

// EdgeView pairs a connection with its rendered curve path.
type EdgeView struct {
	From string `json:"from"`
	To   string `json:"to"`
	Path string `json:"path"`
}

// EdgesData is the server's connection-set event payload.
type EdgesData struct {
	Connections []EdgeView             `json:"connections"`
	Pending     workflow.PendingSource `json:"pending"`
	MixerInputs int                    `json:"mixerInputs"`
}

// GraphData is the server's node-layout event payload.
type GraphData struct {
	Mixer workflow.Position `json:"mixer"`
	Nodes []workflow.Node   `json:"nodes"`
}

// OverlayData is the server's edit-overlay event payload.
type OverlayData struct {
	Active bool                 `json:"active"`
	Staged *model.TimelineEntry `json:"staged,omitempty"`
}

// ErrorData is the server's error event payload. Kind is one of
// "validation", "persistence", "load" or "internal".
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StateData is the full snapshot sent on sync and on attach.
type StateData struct {
	Song     *model.Song            `json:"song"`
	Entries  []*model.TimelineEntry `json:"entries"`
	Markers  []timelineMarker       `json:"markers"`
	Graph    GraphData              `json:"graph"`
	Edges    EdgesData              `json:"edges"`
	Playback PlaybackData           `json:"playback"`
	Overlay  OverlayData            `json:"overlay"`
}

// timelineMarker mirrors timeline.Marker without importing it into every
// client payload path.
type timelineMarker struct {
	Time    int    `json:"time"`
	IsMajor bool   `json:"isMajor"`
	Label   string `json:"label,omitempty"`
}
