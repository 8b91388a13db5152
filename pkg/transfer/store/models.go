package store

import "time"

// Direction says which way a transfer moves data.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Status is a transfer's position in its state machine.
//
//	queued -> in_progress -> {completed | failed | cancelled | paused}
//	paused -> queued (explicit resume) -> in_progress -> ...
//
// completed, failed and cancelled are terminal; paused is suspended.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusPaused     Status = "paused"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transfer is one upload or download of exactly one object. Rows are never
// deleted automatically; terminal rows are kept for history until purged
// externally.
type Transfer struct {
	ID               uint      `gorm:"primarykey"`
	Direction        Direction `gorm:"size:16;not null"`
	Bucket           string    `gorm:"size:255;not null;index"`
	LocalPath        string    `gorm:"not null"`
	RemoteKey        string    `gorm:"not null"`
	Status           Status    `gorm:"size:16;not null;index"`
	TotalBytes       int64
	TransferredBytes int64
	UploadID         string
	ErrorMessage     string
	RetryCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Part is one chunk of a multipart upload. Part numbers are contiguous 1..N
// for a given transfer.
type Part struct {
	ID         uint `gorm:"primarykey"`
	TransferID uint `gorm:"not null;uniqueIndex:idx_transfer_part"`
	PartNumber int  `gorm:"not null;uniqueIndex:idx_transfer_part"`
	Offset     int64
	Length     int64
	Completed  bool   `gorm:"not null;default:false"`
	ETag       string `gorm:"column:etag"`
}

// Preference is a key-value row for bucket/profile bookkeeping outside the
// transfer core.
type Preference struct {
	Key       string `gorm:"primarykey;size:255"`
	Value     string
	UpdatedAt time.Time
}

// AllModels lists every model for schema migration.
func AllModels() []interface{} {
	return []interface{}{&Transfer{}, &Part{}, &Preference{}}
}
