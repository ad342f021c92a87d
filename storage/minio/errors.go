package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

// translateError maps MinIO error responses onto sentinel errors.
func translateError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return uperrors.NewObjectError(op, bucket, key, err)
	}

	resp := minio.ToErrorResponse(err)
	var sentinel error
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		sentinel = uperrors.ErrObjectNotFound
	case "NoSuchBucket":
		sentinel = uperrors.ErrBucketNotFound
	case "AccessDenied":
		sentinel = uperrors.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		sentinel = uperrors.ErrInvalidCredentials
	case "SlowDown", "SlowDownWrite", "SlowDownRead", "TooManyRequests":
		sentinel = uperrors.ErrTooManyRequests
	case "RequestTimeout":
		sentinel = uperrors.ErrTimeout
	case "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		sentinel = uperrors.ErrServiceUnavailable
	default:
		sentinel = classifyStatus(resp.StatusCode)
	}

	if sentinel == nil {
		return uperrors.NewObjectError(op, bucket, key, err)
	}
	return uperrors.NewObjectError(op, bucket, key, fmt.Errorf("%w: %w", sentinel, err))
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return uperrors.ErrObjectNotFound
	case status == http.StatusUnauthorized:
		return uperrors.ErrInvalidCredentials
	case status == http.StatusForbidden:
		return uperrors.ErrAccessDenied
	case status == http.StatusTooManyRequests:
		return uperrors.ErrTooManyRequests
	case status >= http.StatusInternalServerError:
		return uperrors.ErrServiceUnavailable
	}
	return nil
}
