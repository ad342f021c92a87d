package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

// S3 and COS error codes mapped to sentinel errors.
var apiErrorCodes = map[string]error{
	"NoSuchKey":             uperrors.ErrObjectNotFound,
	"NotFound":              uperrors.ErrObjectNotFound,
	"NoSuchBucket":          uperrors.ErrBucketNotFound,
	"AccessDenied":          uperrors.ErrAccessDenied,
	"Forbidden":             uperrors.ErrAccessDenied,
	"InvalidAccessKeyId":    uperrors.ErrInvalidCredentials,
	"SignatureDoesNotMatch": uperrors.ErrInvalidCredentials,
	"ExpiredToken":          uperrors.ErrInvalidCredentials,
	"SlowDown":              uperrors.ErrTooManyRequests,
	"Throttling":            uperrors.ErrTooManyRequests,
	"TooManyRequests":       uperrors.ErrTooManyRequests,
	"RequestLimitExceeded":  uperrors.ErrTooManyRequests,
	"RequestTimeout":        uperrors.ErrTimeout,
	"InternalError":         uperrors.ErrServiceUnavailable,
	"ServiceUnavailable":    uperrors.ErrServiceUnavailable,
	"InvalidArgument":       uperrors.ErrInvalidInput,
	"InvalidBucketName":     uperrors.ErrInvalidInput,
	"KeyTooLongError":       uperrors.ErrInvalidInput,
	"EntityTooLarge":        uperrors.ErrInvalidInput,
	"EntityTooSmall":        uperrors.ErrInvalidInput,
}

// httpStatusCoder is implemented by the SDK's HTTP response errors.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// translateError wraps an SDK error with operation context and, when the
// failure is recognized, the matching sentinel error.
func translateError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return uperrors.NewObjectError(op, bucket, key, err)
	}

	if sentinel := classify(err); sentinel != nil {
		return uperrors.NewObjectError(op, bucket, key, fmt.Errorf("%w: %w", sentinel, err))
	}
	return uperrors.NewObjectError(op, bucket, key, err)
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel, ok := apiErrorCodes[apiErr.ErrorCode()]; ok {
			return sentinel
		}
	}

	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.HTTPStatusCode())
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status == 404:
		return uperrors.ErrObjectNotFound
	case status == 401:
		return uperrors.ErrInvalidCredentials
	case status == 403:
		return uperrors.ErrAccessDenied
	case status == 408:
		return uperrors.ErrTimeout
	case status == 429:
		return uperrors.ErrTooManyRequests
	case status >= 500:
		return uperrors.ErrServiceUnavailable
	case status >= 400:
		return uperrors.ErrInvalidInput
	}
	return nil
}
