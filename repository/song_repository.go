package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MixGrid/db"
	"MixGrid/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SongRepository defines the persistence operations for songs.
type SongRepository interface {
	GetByID(ctx context.Context, id string) (*model.Song, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Song, error)
	Create(ctx context.Context, song *model.Song) error
	Update(ctx context.Context, song *model.Song) error
	Delete(ctx context.Context, id string) error
}

// gormSongRepository implements SongRepository on GORM.
type gormSongRepository struct {
	DB *gorm.DB
}

// NewGormSongRepository creates a new instance of gormSongRepository.
func NewGormSongRepository(database *gorm.DB) SongRepository {
	if database == nil {
		database = db.GormDB
	}
	return &gormSongRepository{DB: database}
}

// GetByID returns the song or nil if it does not exist.
func (r *gormSongRepository) GetByID(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	err := r.DB.WithContext(ctx).First(&song, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query song %s: %w", id, err)
	}
	return &song, nil
}

// ListByUser returns the user's songs, newest first.
func (r *gormSongRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Song, error) {
	songs := make([]*model.Song, 0)
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query songs for user %d: %w", userID, err)
	}
	return songs, nil
}

// Create inserts a new song, filling defaults for missing fields.
func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	if song.ID == "" {
		song.ID = uuid.New().String()
	}
	if song.Title == "" {
		song.Title = model.DefaultSongTitle
	}
	if song.Duration <= 0 {
		song.Duration = model.DefaultSongDuration
	}
	now := time.Now()
	song.CreatedAt = now
	song.UpdatedAt = now

	if err := r.DB.WithContext(ctx).Create(song).Error; err != nil {
		return fmt.Errorf("failed to create song: %w", err)
	}
	return nil
}

// Update writes title, duration and updated_at.
func (r *gormSongRepository) Update(ctx context.Context, song *model.Song) error {
	song.UpdatedAt = time.Now()
	err := r.DB.WithContext(ctx).Model(&model.Song{}).
		Where("id = ?", song.ID).
		Updates(map[string]interface{}{
			"title":      song.Title,
			"duration":   song.Duration,
			"updated_at": song.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update song %s: %w", song.ID, err)
	}
	return nil
}

// Delete removes the song row. The caller is responsible for deleting the
// song's timeline entries first.
func (r *gormSongRepository) Delete(ctx context.Context, id string) error {
	if err := r.DB.WithContext(ctx).Delete(&model.Song{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete song %s: %w", id, err)
	}
	return nil
}
