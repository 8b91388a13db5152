package objectstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateErrorKnownCodes(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantInMsg  string
		isNotFound bool
	}{
		{name: "invalid access key", code: "InvalidAccessKeyId", wantInMsg: "Access Key ID"},
		{name: "bad signature", code: "SignatureDoesNotMatch", wantInMsg: "Secret Access Key"},
		{name: "access denied", code: "AccessDenied", wantInMsg: "IAM policy"},
		{name: "missing bucket", code: "NoSuchBucket", wantInMsg: "Bucket not found"},
		{name: "missing key", code: "NoSuchKey", wantInMsg: "File not found", isNotFound: true},
		{name: "head not found", code: "NotFound", isNotFound: true},
		{name: "throttled", code: "SlowDown", wantInMsg: "retry automatically"},
		{name: "expired token", code: "ExpiredToken", wantInMsg: "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &smithy.GenericAPIError{Code: tt.code, Message: "server says no"}
			err := translateError("test_op", raw)
			require.Error(t, err)

			var oe *Error
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, "test_op", oe.Op)
			assert.Contains(t, oe.Detail, "server says no")
			if tt.wantInMsg != "" {
				assert.Contains(t, oe.UserMessage, tt.wantInMsg)
			}
			assert.Equal(t, tt.isNotFound, IsNotFound(err))
		})
	}
}

func TestTranslateErrorUnknownCode(t *testing.T) {
	raw := &smithy.GenericAPIError{Code: "SomethingNew", Message: "strange failure"}
	err := translateError("get_object", raw)

	assert.Equal(t, "AWS error: strange failure", UserMessage(err))
	assert.False(t, IsNotFound(err))
}

func TestTranslateErrorNetwork(t *testing.T) {
	err := translateError("list_objects", fmt.Errorf("dial tcp: connection refused"))
	assert.Contains(t, UserMessage(err), "Could not reach S3")
	assert.Contains(t, Detail(err), "connection refused")
}

func TestTranslateErrorTimeout(t *testing.T) {
	err := translateError("get_object", fmt.Errorf("request: %w", context.DeadlineExceeded))
	assert.Contains(t, UserMessage(err), "timed out")
}

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, translateError("noop", nil))
}

func TestUserMessagePassthrough(t *testing.T) {
	plain := errors.New("plain failure")
	assert.Equal(t, "plain failure", UserMessage(plain))
	assert.Equal(t, "plain failure", Detail(plain))
	assert.Equal(t, "", UserMessage(nil))
}
