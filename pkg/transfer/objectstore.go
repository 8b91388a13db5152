package transfer

import (
	"context"
	"io"

	"github.com/s3desk/s3desk/pkg/objectstore"
)

// ObjectStore is the slice of the bucket-scoped client the workers and
// engine use. *objectstore.Client satisfies it; tests substitute a fake.
type ObjectStore interface {
	Head(ctx context.Context, key string) (objectstore.Item, error)
	Get(ctx context.Context, key, byteRange string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body []byte) error

	CreateMultipartUpload(ctx context.Context, key string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, body []byte) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []objectstore.Part) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	ListParts(ctx context.Context, key, uploadID string) ([]objectstore.Part, error)
	ListMultipartUploads(ctx context.Context) ([]objectstore.Upload, error)
}
