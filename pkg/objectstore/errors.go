package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ErrNotFound indicates the requested object or bucket was not found.
var ErrNotFound = errors.New("objectstore: object not found")

// Error carries a plain-language message for the UI plus the raw diagnostic
// string. Callers never see SDK error types.
type Error struct {
	Op          string // operation that failed, e.g. "head_object"
	UserMessage string // short message suitable for an error dialog
	Detail      string // raw error text for a "Show Details" expander
	Err         error  // sentinel classification if any, else the raw error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	return fmt.Sprintf("objectstore: %s failed: %s", e.Op, e.UserMessage)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// errorMessages maps AWS error codes to user-facing messages. Codes not in
// this table fall back to the raw AWS message.
var errorMessages = map[string]string{
	"InvalidAccessKeyId":      "Invalid access key. Check that your Access Key ID is correct in Settings.",
	"SignatureDoesNotMatch":   "Invalid secret key. Check that your Secret Access Key is correct in Settings.",
	"AccessDenied":            "Access denied. Your credentials don't have permission for this action. Check your IAM policy.",
	"NoSuchBucket":            "Bucket not found. The bucket may have been deleted or you may have a typo in the name.",
	"NoSuchKey":               "File not found. The file may have been deleted or moved by someone else.",
	"BucketAlreadyOwnedByYou": "You already own this bucket.",
	"BucketNotEmpty":          "Bucket is not empty. Delete all files in the bucket before deleting it.",
	"EntityTooLarge":          "File is too large for a single upload. This shouldn't happen; the app should use multipart upload. Please report this bug.",
	"SlowDown":                "S3 is asking us to slow down. Too many requests. The app will retry automatically.",
	"ServiceUnavailable":      "S3 is temporarily unavailable. Try again in a few moments.",
	"InternalError":           "S3 encountered an internal error. Try again in a few moments.",
	"RequestTimeout":          "The request timed out. Check your network connection and try again.",
	"ExpiredToken":            "Your credentials have expired. Update your credentials in Settings.",
	"InvalidBucketName":       "Invalid bucket name. Bucket names must be 3-63 characters, lowercase letters, numbers, and hyphens.",
	"KeyTooLongError":         "File name is too long. S3 keys can be at most 1024 bytes.",
}

// translateError converts any failure from the SDK into a typed *Error.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	detail := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()

		classified := error(nil)
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			classified = ErrNotFound
		}

		userMsg, ok := errorMessages[code]
		if !ok {
			if msg := apiErr.ErrorMessage(); msg != "" {
				userMsg = fmt.Sprintf("AWS error: %s", msg)
			} else {
				userMsg = "An AWS error occurred."
			}
		}

		if classified == nil {
			classified = err
		}
		return &Error{Op: op, UserMessage: userMsg, Detail: detail, Err: classified}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Op:          op,
			UserMessage: "The connection timed out. Check your network connection.",
			Detail:      detail,
			Err:         err,
		}
	}

	return &Error{
		Op:          op,
		UserMessage: "Could not reach S3. Check your network connection and try again.",
		Detail:      detail,
		Err:         err,
	}
}

// IsNotFound reports whether the error describes a missing object or bucket.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserMessage extracts the user-facing message from an error, falling back
// to the raw error text for errors that did not come from this package.
func UserMessage(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.UserMessage
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Detail extracts the raw diagnostic string from an error.
func Detail(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
