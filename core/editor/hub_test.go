package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastReachesSongClientsOnly(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	a := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 1}
	b := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 2}
	other := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-2", UserID: 3}

	hub.Register(a)
	hub.Register(b)
	hub.Register(other)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 2 })

	hub.Broadcast("song-1", []byte("hello"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(time.Second):
			t.Fatalf("client %d got no broadcast", c.UserID)
		}
	}

	select {
	case <-other.Send:
		t.Fatal("broadcast leaked to another song")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubOnEmptyFiresWhenLastClientLeaves(t *testing.T) {
	emptied := make(chan string, 1)
	hub := NewHub(func(songID string) { emptied <- songID })
	go hub.Run()
	defer hub.Stop()

	a := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 1}
	b := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 2}
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 2 })

	hub.Unregister(a)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 1 })
	select {
	case <-emptied:
		t.Fatal("onEmpty fired while a client remained")
	default:
	}

	hub.Unregister(b)
	select {
	case songID := <-emptied:
		assert.Equal(t, "song-1", songID)
	case <-time.After(time.Second):
		t.Fatal("onEmpty never fired")
	}
}

func TestHubDropsStalledClientWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	// A stalled connection has an unbuffered send channel nobody reads.
	stalled := &Client{Hub: hub, Send: make(chan []byte), SongID: "song-1", UserID: 1}
	healthy := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 2}
	hub.Register(stalled)
	hub.Register(healthy)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 2 })

	hub.Broadcast("song-1", []byte("one"))
	hub.Broadcast("song-1", []byte("two"))

	for _, want := range []string{"one", "two"} {
		select {
		case msg := <-healthy.Send:
			assert.Equal(t, want, string(msg))
		case <-time.After(2 * time.Second):
			t.Fatalf("healthy client never received %q", want)
		}
	}

	waitFor(t, func() bool { return hub.ClientCount("song-1") == 1 })
}

func TestHubDroppingLastStalledClientFiresOnEmpty(t *testing.T) {
	emptied := make(chan string, 1)
	hub := NewHub(func(songID string) { emptied <- songID })
	go hub.Run()
	defer hub.Stop()

	stalled := &Client{Hub: hub, Send: make(chan []byte), SongID: "song-1", UserID: 1}
	hub.Register(stalled)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 1 })

	hub.Broadcast("song-1", []byte("one"))

	select {
	case songID := <-emptied:
		assert.Equal(t, "song-1", songID)
	case <-time.After(time.Second):
		t.Fatal("onEmpty never fired for the dropped client")
	}
	assert.Equal(t, 0, hub.ClientCount("song-1"))
}

func TestHubBroadcastWSMessage(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	c := &Client{Hub: hub, Send: make(chan []byte, 4), SongID: "song-1", UserID: 1}
	hub.Register(c)
	waitFor(t, func() bool { return hub.ClientCount("song-1") == 1 })

	require.NoError(t, hub.BroadcastWSMessage("song-1", &WSMessage{Type: MsgTypePlayback, SongID: "song-1"}))

	select {
	case msg := <-c.Send:
		assert.Contains(t, string(msg), `"playback"`)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
