package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3desk/s3desk/pkg/logging"
)

const deleteBatchMax = 1000

// Item is one object or one "folder" (common prefix) within a listing.
type Item struct {
	// Name is the display name, relative to the listing's prefix.
	Name string
	// Key is the full object key (or the full common prefix).
	Key          string
	IsPrefix     bool
	Size         int64
	LastModified time.Time
	StorageClass string
	ETag         string
}

// Part describes one uploaded part of a multipart upload.
type Part struct {
	PartNumber int
	ETag       string
	Size       int64
}

// Upload describes one in-progress multipart upload on the backend.
type Upload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// s3API is the slice of the SDK client the Client needs. Narrowed so tests
// can substitute a mock.
type s3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
}

// Client is a bucket-scoped S3 client. It translates every transport error
// into a typed *Error with a user-facing message and raw detail.
type Client struct {
	api    s3API
	bucket string
	logger logging.Interface
}

// New creates a Client for the configured bucket.
func New(ctx context.Context, cfg *Config, logger logging.Interface) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil objectstore config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid objectstore config: %w", err)
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	logger.WithField("bucket", cfg.Bucket).
		WithField("region", cfg.Region).
		WithField("endpoint", cfg.Endpoint).
		Info("Object store client initialized")

	return &Client{api: api, bucket: cfg.Bucket, logger: logger}, nil
}

// Bucket returns the bucket this client is scoped to.
func (c *Client) Bucket() string {
	return c.bucket
}

// ListBuckets returns the names of all buckets visible to the credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	resp, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translateError("list_buckets", err)
	}
	names := make([]string, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// List returns all objects and common prefixes under a prefix, paginating
// transparently. An object whose key equals the queried prefix is skipped
// (some backends return the folder marker itself as an object).
func (c *Client) List(ctx context.Context, prefix, delimiter string) ([]Item, []string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	var items []Item
	var prefixes []string

	paginator := s3.NewListObjectsV2Paginator(c.api, input)
	pages := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, translateError("list_objects", err)
		}
		pages++

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			item := Item{
				Name:         strings.TrimPrefix(key, prefix),
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				StorageClass: string(obj.StorageClass),
			}
			if obj.ETag != nil {
				item.ETag = strings.Trim(*obj.ETag, "\"")
			}
			items = append(items, item)
		}

		for _, cp := range page.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			prefixes = append(prefixes, p)
			items = append(items, Item{
				Name:     strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/"),
				Key:      p,
				IsPrefix: true,
			})
		}
	}

	c.logger.Debugf("list_objects prefix=%q returned %d items, %d prefixes across %d pages",
		prefix, len(items), len(prefixes), pages)
	return items, prefixes, nil
}

// Head returns metadata for a single object. Fails with ErrNotFound if the
// key is absent.
func (c *Client) Head(ctx context.Context, key string) (Item, error) {
	resp, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Item{}, translateError("head_object", err)
	}

	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	item := Item{
		Name:         name,
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
		StorageClass: string(resp.StorageClass),
	}
	if resp.ETag != nil {
		item.ETag = strings.Trim(*resp.ETag, "\"")
	}
	return item, nil
}

// Get downloads an object. byteRange is either empty or an inclusive HTTP
// range like "bytes=0-1023". The caller owns the returned stream.
func (c *Client) Get(ctx context.Context, key, byteRange string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if byteRange != "" {
		input.Range = aws.String(byteRange)
	}

	resp, err := c.api.GetObject(ctx, input)
	if err != nil {
		return nil, translateError("get_object", err)
	}
	return resp.Body, nil
}

// Put uploads a whole object in a single request.
func (c *Client) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return translateError("put_object", err)
	}
	return nil
}

// Delete removes a single object.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateError("delete_object", err)
	}
	return nil
}

// DeleteBatch deletes objects in batches of up to 1000 and returns the keys
// that failed. A partial failure is not an error; callers reconcile the
// returned keys against the requested set.
func (c *Client) DeleteBatch(ctx context.Context, keys []string) ([]string, error) {
	var failed []string

	for start := 0; start < len(keys); start += deleteBatchMax {
		end := start + deleteBatchMax
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		resp, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return failed, translateError("delete_objects", err)
		}
		for _, e := range resp.Errors {
			failed = append(failed, aws.ToString(e.Key))
		}
	}

	if len(failed) > 0 {
		c.logger.Warnf("delete_objects partial failure: %d of %d keys failed", len(failed), len(keys))
	}
	return failed, nil
}

// Copy performs a server-side copy within the bucket, preserving metadata.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(c.bucket),
		Key:               aws.String(dstKey),
		CopySource:        aws.String(fmt.Sprintf("%s/%s", c.bucket, srcKey)),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	if err != nil {
		return translateError("copy_object", err)
	}
	return nil
}

// CreateMultipartUpload initiates a multipart upload and returns its ID.
func (c *Client) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	resp, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", translateError("create_multipart_upload", err)
	}
	uploadID := aws.ToString(resp.UploadId)
	c.logger.Debugf("multipart upload initiated: key=%q upload_id=%s", key, uploadID)
	return uploadID, nil
}

// UploadPart uploads one part and returns its ETag (unquoted).
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int, body []byte) (string, error) {
	resp, err := c.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNumber)),
		Body:       bytes.NewReader(body),
	})
	if err != nil {
		return "", translateError("upload_part", err)
	}
	return strings.Trim(aws.ToString(resp.ETag), "\""), nil
}

// CompleteMultipartUpload finalizes a multipart upload. parts must be the
// full set, ordered by part number.
func (c *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []Part) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(int32(p.PartNumber)),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return translateError("complete_multipart_upload", err)
	}
	return nil
}

// AbortMultipartUpload aborts a multipart upload, releasing its parts.
func (c *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return translateError("abort_multipart_upload", err)
	}
	return nil
}

// ListParts returns all parts uploaded so far for a multipart upload,
// paginating transparently.
func (c *Client) ListParts(ctx context.Context, key, uploadID string) ([]Part, error) {
	var parts []Part
	var marker *string

	for {
		resp, err := c.api.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(c.bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(uploadID),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, translateError("list_parts", err)
		}

		for _, p := range resp.Parts {
			parts = append(parts, Part{
				PartNumber: int(aws.ToInt32(p.PartNumber)),
				ETag:       strings.Trim(aws.ToString(p.ETag), "\""),
				Size:       aws.ToInt64(p.Size),
			})
		}

		if !aws.ToBool(resp.IsTruncated) {
			return parts, nil
		}
		marker = resp.NextPartNumberMarker
	}
}

// ListMultipartUploads returns all in-progress multipart uploads in the
// bucket, paginating transparently. Used for orphan cleanup.
func (c *Client) ListMultipartUploads(ctx context.Context) ([]Upload, error) {
	var uploads []Upload
	var keyMarker, uploadIDMarker *string

	for {
		resp, err := c.api.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
			Bucket:         aws.String(c.bucket),
			KeyMarker:      keyMarker,
			UploadIdMarker: uploadIDMarker,
		})
		if err != nil {
			return nil, translateError("list_multipart_uploads", err)
		}

		for _, u := range resp.Uploads {
			uploads = append(uploads, Upload{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}

		if !aws.ToBool(resp.IsTruncated) {
			return uploads, nil
		}
		keyMarker = resp.NextKeyMarker
		uploadIDMarker = resp.NextUploadIdMarker
	}
}
