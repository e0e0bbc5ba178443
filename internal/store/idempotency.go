// Package store — idempotency records.
//
// Message sends are the only side-effecting operation a flaky client retries,
// so POST message endpoints accept an Idempotency-Key header. Records are
// keyed by (room_id, key) and expire after a TTL enforced at lookup time.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (room_id, key) tuple.
var ErrDuplicate = errors.New("store: duplicate idempotency key")

// IdempotencyKey records a previously processed message send so retries can
// be detected without re-running side effects (reply scheduling included).
type IdempotencyKey struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	RoomID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_room_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_room_key,priority:2"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyKey) TableName() string { return "idempotency_keys" }

// GetIdempotency returns a non-expired record or ErrNotFound.
func (s *Store) GetIdempotency(ctx context.Context, roomID, key string, now time.Time) (*IdempotencyKey, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrNotFound
	}
	var rec IdempotencyKey
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND key = ? AND expires_at > ?", roomID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func (s *Store) CreateIdempotency(ctx context.Context, roomID, key, messageID string, ttl time.Duration) (*IdempotencyKey, error) {
	now := time.Now().UTC()
	rec := &IdempotencyKey{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Key:       key,
		MessageID: messageID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
