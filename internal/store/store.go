package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"geoattend-backend/internal/model"
)

var (
	// ErrDuplicateRecord is returned when appending a record whose
	// remote log id already exists.
	ErrDuplicateRecord = errors.New("store: duplicate record")
	// ErrNotFound is returned for lookups and updates of unknown records.
	ErrNotFound = errors.New("store: record not found")
)

// LogUpdate carries the mutable fields of an attendance record. Nil
// fields are left untouched.
type LogUpdate struct {
	CheckOutTime *time.Time
	SyncStatus   *model.SyncStatus
}

// Store defines the interface for all database operations. Attendance
// records are append-only: there is no delete.
type Store interface {
	Append(ctx context.Context, record *model.AttendanceLog) error
	Update(ctx context.Context, localID uint64, changes LogUpdate) error
	QueryPending(ctx context.Context) ([]model.AttendanceLog, error)
	QueryByRemoteLogID(ctx context.Context, remoteLogID string) (*model.AttendanceLog, error)
	OpenRecord(ctx context.Context, userID string) (*model.AttendanceLog, error)
	QueryByUser(ctx context.Context, userID string, limit int) ([]model.AttendanceLog, error)
	RequeueFailed(ctx context.Context) (int64, error)
	Sites(ctx context.Context) ([]model.Site, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Append inserts a new attendance record. The remote log id must be
// unique; a collision means the caller is retrying an insert that
// already happened.
func (s *gormStore) Append(ctx context.Context, record *model.AttendanceLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.AttendanceLog{}).
			Where("remote_log_id = ?", record.RemoteLogID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for duplicate record: %w", err)
		}
		if count > 0 {
			return ErrDuplicateRecord
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to append attendance record: %w", err)
		}
		return nil
	})
}

// Update merges the given changes into an existing record and refreshes
// its updated-at marker.
func (s *gormStore) Update(ctx context.Context, localID uint64, changes LogUpdate) error {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if changes.CheckOutTime != nil {
		fields["check_out_time"] = *changes.CheckOutTime
	}
	if changes.SyncStatus != nil {
		fields["sync_status"] = *changes.SyncStatus
	}

	res := s.db.WithContext(ctx).Model(&model.AttendanceLog{}).
		Where("id = ?", localID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update attendance record %d: %w", localID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryPending returns all records awaiting sync, in insertion order.
func (s *gormStore) QueryPending(ctx context.Context) ([]model.AttendanceLog, error) {
	var records []model.AttendanceLog
	if err := s.db.WithContext(ctx).
		Where("sync_status = ?", model.SyncPending).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query pending records: %w", err)
	}
	return records, nil
}

// QueryByRemoteLogID is the point lookup used to reconcile sync verdicts.
func (s *gormStore) QueryByRemoteLogID(ctx context.Context, remoteLogID string) (*model.AttendanceLog, error) {
	var record model.AttendanceLog
	err := s.db.WithContext(ctx).
		Where("remote_log_id = ?", remoteLogID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record %s: %w", remoteLogID, err)
	}
	return &record, nil
}

// OpenRecord returns the user's record without a check-out time, or
// ErrNotFound when no session is open.
func (s *gormStore) OpenRecord(ctx context.Context, userID string) (*model.AttendanceLog, error) {
	var record model.AttendanceLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND check_out_time IS NULL", userID).
		Order("id ASC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open record for user %s: %w", userID, err)
	}
	return &record, nil
}

// QueryByUser lists a user's records, newest first.
func (s *gormStore) QueryByUser(ctx context.Context, userID string, limit int) ([]model.AttendanceLog, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []model.AttendanceLog
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query records for user %s: %w", userID, err)
	}
	return records, nil
}

// RequeueFailed flips failed records back to pending so the next sync
// attempt picks them up again. Returns the number of requeued records.
func (s *gormStore) RequeueFailed(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.AttendanceLog{}).
		Where("sync_status = ?", model.SyncFailed).
		Updates(map[string]any{
			"sync_status": model.SyncPending,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to requeue failed records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Sites returns the configured geofence sites in insertion order.
func (s *gormStore) Sites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	return sites, nil
}
