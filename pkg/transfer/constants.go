package transfer

import "time"

const (
	// MultipartThreshold is the size at or above which uploads switch to
	// multipart and downloads switch to ranged chunks.
	MultipartThreshold = 8 * 1024 * 1024

	// DownloadChunkSize is the byte-range length for chunked downloads.
	DownloadChunkSize = 8 * 1024 * 1024

	// MaxRetryAttempts bounds per-part and per-chunk attempts before the
	// whole transfer fails.
	MaxRetryAttempts = 3

	// OrphanGracePeriod is how old an unknown multipart upload must be
	// before cleanup aborts it. Younger uploads may belong to another
	// process and are left alone.
	OrphanGracePeriod = 24 * time.Hour

	speedWindow       = 3 * time.Second
	speedEmitInterval = 500 * time.Millisecond
)

// Part size tiers keep the part count under the backend's 10,000-part
// ceiling. Boundaries are inclusive: exactly 50 GiB still uses 8 MiB parts.
const (
	partSizeSmall  = 8 * 1024 * 1024
	partSizeMedium = 64 * 1024 * 1024
	partSizeLarge  = 512 * 1024 * 1024

	smallFileLimit  = 50 * 1024 * 1024 * 1024
	mediumFileLimit = 500 * 1024 * 1024 * 1024
)

// selectPartSize picks the multipart part size for a file of the given size.
func selectPartSize(totalBytes int64) int64 {
	switch {
	case totalBytes <= smallFileLimit:
		return partSizeSmall
	case totalBytes <= mediumFileLimit:
		return partSizeMedium
	default:
		return partSizeLarge
	}
}
