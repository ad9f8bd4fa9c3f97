package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraggerShiftPreservesDuration(t *testing.T) {
	var d Dragger

	// 600px timeline over a 300s song: 0.5s per pixel.
	d.Begin("entry-1", 100, 10, 40)
	require.Equal(t, DragActive, d.State())
	require.Equal(t, "entry-1", d.EntryID())

	start, end, ok := d.Move(140, 300, 600) // +40px = +20s
	require.True(t, ok)
	assert.Equal(t, 30, start)
	assert.Equal(t, 60, end)
	assert.Equal(t, 30, end-start)

	start, end, ok = d.Move(60, 300, 600) // -40px = -20s from origin
	require.True(t, ok)
	assert.Equal(t, 0, start)
	assert.Equal(t, 30, end)
}

func TestDraggerClampsToSongBounds(t *testing.T) {
	var d Dragger
	d.Begin("entry-1", 0, 10, 40)

	// Way left of the origin: pinned at the song start.
	start, end, ok := d.Move(-10000, 300, 600)
	require.True(t, ok)
	assert.Equal(t, 0, start)
	assert.Equal(t, 30, end)

	// Way right: pinned so the entry end hits the song duration.
	start, end, ok = d.Move(10000, 300, 600)
	require.True(t, ok)
	assert.Equal(t, 270, start)
	assert.Equal(t, 300, end)
}

func TestDraggerRoundsToWholeSeconds(t *testing.T) {
	var d Dragger
	d.Begin("entry-1", 0, 10, 40)

	// +3px at 0.5s per pixel is +1.5s, which rounds to +2s.
	start, end, ok := d.Move(3, 300, 600)
	require.True(t, ok)
	assert.Equal(t, 12, start)
	assert.Equal(t, 42, end)
}

func TestDraggerIgnoresMoveWhenIdle(t *testing.T) {
	var d Dragger

	_, _, ok := d.Move(50, 300, 600)
	assert.False(t, ok)
	assert.Equal(t, DragIdle, d.State())
	assert.Empty(t, d.EntryID())

	d.Begin("entry-1", 0, 10, 40)
	d.End()
	_, _, ok = d.Move(50, 300, 600)
	assert.False(t, ok)
}

func TestDraggerDegenerateGeometry(t *testing.T) {
	var d Dragger
	d.Begin("entry-1", 0, 10, 40)

	_, _, ok := d.Move(50, 300, 0)
	assert.False(t, ok)
	_, _, ok = d.Move(50, 0, 600)
	assert.False(t, ok)
}

func TestDraggerBeginReplacesActiveDrag(t *testing.T) {
	var d Dragger
	d.Begin("entry-1", 0, 10, 40)
	d.Begin("entry-2", 200, 100, 160)

	assert.Equal(t, "entry-2", d.EntryID())
	start, end, ok := d.Move(200, 300, 600)
	require.True(t, ok)
	assert.Equal(t, 100, start)
	assert.Equal(t, 160, end)
}
