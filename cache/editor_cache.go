package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"MixGrid/db"

	"github.com/redis/go-redis/v9"
)

// EditorCache keeps transient editor state in redis: which users currently
// hold a song's editor open, and the last playback cursor position so a
// reopened session resumes where the user left off.
type EditorCache struct {
	client      *redis.Client
	snapshotTTL time.Duration
}

// NewEditorCache creates a cache on the shared redis client.
func NewEditorCache(snapshotTTL time.Duration) *EditorCache {
	if snapshotTTL <= 0 {
		snapshotTTL = time.Hour
	}
	return &EditorCache{client: db.RedisClient, snapshotTTL: snapshotTTL}
}

func presenceKey(songID string) string {
	return fmt.Sprintf("mixgrid:editor:presence:%s", songID)
}

func snapshotKey(songID string) string {
	return fmt.Sprintf("mixgrid:editor:playback:%s", songID)
}

// AddPresence records a user as attached to a song's editor.
func (c *EditorCache) AddPresence(ctx context.Context, songID string, userID int64) error {
	if c.client == nil {
		return nil
	}
	key := presenceKey(songID)
	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// RemovePresence removes a user from a song's editor presence set.
func (c *EditorCache) RemovePresence(ctx context.Context, songID string, userID int64) error {
	if c.client == nil {
		return nil
	}
	return c.client.SRem(ctx, presenceKey(songID), userID).Err()
}

// PresenceCount returns how many users hold the editor open.
func (c *EditorCache) PresenceCount(ctx context.Context, songID string) (int64, error) {
	if c.client == nil {
		return 0, nil
	}
	return c.client.SCard(ctx, presenceKey(songID)).Result()
}

// SavePlaybackSnapshot stores the cursor position with a TTL.
func (c *EditorCache) SavePlaybackSnapshot(ctx context.Context, songID string, position float64) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, snapshotKey(songID),
		strconv.FormatFloat(position, 'f', 3, 64), c.snapshotTTL).Err()
}

// LoadPlaybackSnapshot returns the stored cursor position, or ok=false when
// none exists.
func (c *EditorCache) LoadPlaybackSnapshot(ctx context.Context, songID string) (float64, bool, error) {
	if c.client == nil {
		return 0, false, nil
	}
	val, err := c.client.Get(ctx, snapshotKey(songID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	position, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt playback snapshot for song %s: %w", songID, err)
	}
	return position, true, nil
}

// ClearSong removes all cached editor state for a song, called when the
// song is deleted.
func (c *EditorCache) ClearSong(ctx context.Context, songID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, presenceKey(songID), snapshotKey(songID)).Err()
}
