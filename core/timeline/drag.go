package timeline

import "math"

// DragState is the state of the drag-to-retime machine.
type DragState int

const (
	DragIdle DragState = iota
	DragActive
)

// Dragger converts pointer movement into time shifts for one entry. The
// entry's duration is invariant across the drag and the entry never leaves
// [0, songDuration]. Only one drag can be active; beginning a new drag
// implicitly ends the previous one.
type Dragger struct {
	state         DragState
	entryID       string
	pointerStartX float64
	originalStart int
	originalEnd   int
}

// State returns the current drag state.
func (d *Dragger) State() DragState {
	return d.state
}

// EntryID returns the entry being dragged, or "" when idle.
func (d *Dragger) EntryID() string {
	if d.state != DragActive {
		return ""
	}
	return d.entryID
}

// Begin starts a drag on pointer-down, capturing the pointer origin and the
// entry's original time range.
func (d *Dragger) Begin(entryID string, pointerX float64, startTime, endTime int) {
	d.state = DragActive
	d.entryID = entryID
	d.pointerStartX = pointerX
	d.originalStart = startTime
	d.originalEnd = endTime
}

// Move computes the retimed range for the current pointer position.
// timelineWidth is the pixel width of the rendered timeline; songDuration
// maps onto it linearly. Returns ok=false when no drag is active or the
// geometry is degenerate.
func (d *Dragger) Move(pointerX float64, songDuration int, timelineWidth float64) (start, end int, ok bool) {
	if d.state != DragActive || timelineWidth <= 0 || songDuration <= 0 {
		return 0, 0, false
	}

	duration := d.originalEnd - d.originalStart
	timePerPixel := float64(songDuration) / timelineWidth
	rawStart := float64(d.originalStart) + (pointerX-d.pointerStartX)*timePerPixel

	maxStart := float64(songDuration - duration)
	clamped := math.Min(math.Max(rawStart, 0), maxStart)

	start = int(math.Round(clamped))
	// Rounding must not push the entry past the song end.
	if start > songDuration-duration {
		start = songDuration - duration
	}
	if start < 0 {
		start = 0
	}
	return start, start + duration, true
}

// End finishes the drag on pointer-up or pointer-leave. Later Move calls are
// ignored until the next Begin.
func (d *Dragger) End() {
	d.state = DragIdle
	d.entryID = ""
}
