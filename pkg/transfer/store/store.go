// Package store persists transfer, part and preference records in SQLite.
// Every worker and the engine write through this store; it is the durable
// half of crash recovery.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store wraps the GORM connection.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at config.Path, creating the file
// and schema as needed. WAL mode allows concurrent worker reads alongside
// serialized writes.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// journal_mode(WAL) for concurrent readers with a single writer,
	// busy_timeout(5000) to wait up to 5s when the database is locked.
	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateTransfer inserts a new transfer record, assigning its id.
func (s *Store) CreateTransfer(t *Transfer) error {
	if t.Status == "" {
		t.Status = StatusQueued
	}
	if err := s.db.Create(t).Error; err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// GetTransfer loads one transfer by id.
func (s *Store) GetTransfer(id uint) (*Transfer, error) {
	var t Transfer
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, convertNotFoundError(err, "transfer")
	}
	return &t, nil
}

// SetStatus moves a transfer to the given status.
func (s *Store) SetStatus(id uint, status Status) error {
	return s.updateTransfer(id, map[string]interface{}{"status": status})
}

// SetTotalBytes records the transfer's total size once known.
func (s *Store) SetTotalBytes(id uint, n int64) error {
	return s.updateTransfer(id, map[string]interface{}{"total_bytes": n})
}

// SetTransferredBytes records absolute progress for a transfer.
func (s *Store) SetTransferredBytes(id uint, n int64) error {
	return s.updateTransfer(id, map[string]interface{}{"transferred_bytes": n})
}

// AddTransferredBytes advances a transfer's progress by delta bytes.
func (s *Store) AddTransferredBytes(id uint, delta int64) error {
	return s.updateTransfer(id, map[string]interface{}{
		"transferred_bytes": gorm.Expr("transferred_bytes + ?", delta),
	})
}

// SetUploadID persists the multipart upload id as soon as it is created, so
// a crash between create and first part can still resume or be cleaned up.
func (s *Store) SetUploadID(id uint, uploadID string) error {
	return s.updateTransfer(id, map[string]interface{}{"upload_id": uploadID})
}

// MarkFailed moves a transfer to failed with a non-empty error message.
func (s *Store) MarkFailed(id uint, message string) error {
	return s.updateTransfer(id, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": message,
	})
}

// MarkCompleted moves a transfer to completed and clears any stale error.
func (s *Store) MarkCompleted(id uint) error {
	return s.updateTransfer(id, map[string]interface{}{
		"status":        StatusCompleted,
		"error_message": "",
	})
}

// ResetForRetry puts a failed transfer back in the queue with a clean slate.
func (s *Store) ResetForRetry(id uint) error {
	return s.updateTransfer(id, map[string]interface{}{
		"status":        StatusQueued,
		"retry_count":   0,
		"error_message": "",
	})
}

// ListByStatuses returns all transfers in any of the given statuses, oldest
// first.
func (s *Store) ListByStatuses(statuses ...Status) ([]Transfer, error) {
	var transfers []Transfer
	err := s.db.
		Where("status IN ?", statuses).
		Order("created_at asc, id asc").
		Find(&transfers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

// NextQueued returns the oldest queued transfer for a bucket, skipping the
// given ids. Returns ErrNotFound when the queue is empty.
func (s *Store) NextQueued(bucket string, exclude []uint) (*Transfer, error) {
	var t Transfer
	q := s.db.
		Where("bucket = ? AND status = ?", bucket, StatusQueued).
		Order("created_at asc, id asc")
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	if err := q.First(&t).Error; err != nil {
		return nil, convertNotFoundError(err, "queued transfer")
	}
	return &t, nil
}

// PausedTransfers returns all paused transfers for a bucket, oldest first.
func (s *Store) PausedTransfers(bucket string) ([]Transfer, error) {
	var transfers []Transfer
	err := s.db.
		Where("bucket = ? AND status = ?", bucket, StatusPaused).
		Order("created_at asc, id asc").
		Find(&transfers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list paused transfers: %w", err)
	}
	return transfers, nil
}

// KnownUploadIDs returns every multipart upload id recorded for a bucket,
// regardless of transfer status. Used to tell our uploads apart from
// orphans during cleanup.
func (s *Store) KnownUploadIDs(bucket string) (map[string]struct{}, error) {
	var ids []string
	err := s.db.Model(&Transfer{}).
		Where("bucket = ? AND upload_id <> ''", bucket).
		Pluck("upload_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list upload ids: %w", err)
	}

	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

// CreateParts bulk-inserts part rows for a transfer. Inserting the same
// (transfer, part number) twice is a no-op so a crash between create and
// restart cannot duplicate rows.
func (s *Store) CreateParts(parts []Part) error {
	if len(parts) == 0 {
		return nil
	}
	err := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transfer_id"}, {Name: "part_number"}},
			DoNothing: true,
		}).
		Create(&parts).Error
	if err != nil {
		return fmt.Errorf("failed to create parts: %w", err)
	}
	return nil
}

// MarkPartCompleted records a part's etag and completion.
func (s *Store) MarkPartCompleted(transferID uint, partNumber int, etag string) error {
	result := s.db.Model(&Part{}).
		Where("transfer_id = ? AND part_number = ?", transferID, partNumber).
		Updates(map[string]interface{}{"completed": true, "etag": etag})
	if result.Error != nil {
		return fmt.Errorf("failed to mark part completed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Parts returns all parts of a transfer in ascending part-number order.
func (s *Store) Parts(transferID uint) ([]Part, error) {
	return s.partsWhere("transfer_id = ?", transferID)
}

// PendingParts returns a transfer's incomplete parts in ascending order.
func (s *Store) PendingParts(transferID uint) ([]Part, error) {
	return s.partsWhere("transfer_id = ? AND completed = ?", transferID, false)
}

// CompletedParts returns a transfer's completed parts in ascending order.
func (s *Store) CompletedParts(transferID uint) ([]Part, error) {
	return s.partsWhere("transfer_id = ? AND completed = ?", transferID, true)
}

// SumCompletedPartBytes returns the byte total of a transfer's completed
// parts, the resume offset for progress reporting.
func (s *Store) SumCompletedPartBytes(transferID uint) (int64, error) {
	var total int64
	err := s.db.Model(&Part{}).
		Where("transfer_id = ? AND completed = ?", transferID, true).
		Select("COALESCE(SUM(length), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum completed parts: %w", err)
	}
	return total, nil
}

// GetPreference returns the value for a preference key.
func (s *Store) GetPreference(key string) (string, error) {
	var p Preference
	if err := s.db.First(&p, "key = ?", key).Error; err != nil {
		return "", convertNotFoundError(err, "preference")
	}
	return p.Value, nil
}

// SetPreference inserts or updates a preference key.
func (s *Store) SetPreference(key, value string) error {
	err := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&Preference{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

func (s *Store) updateTransfer(id uint, fields map[string]interface{}) error {
	result := s.db.Model(&Transfer{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update transfer %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) partsWhere(query string, args ...interface{}) ([]Part, error) {
	var parts []Part
	err := s.db.
		Where(query, args...).
		Order("part_number asc").
		Find(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	return parts, nil
}

// convertNotFoundError maps gorm.ErrRecordNotFound to ErrNotFound.
func convertNotFoundError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
