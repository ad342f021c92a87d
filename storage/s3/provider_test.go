package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/testutil"
	"github.com/mmyddd/modpack-uploader/storage"
)

func responseError(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New("http error"),
	}
}

func TestProvider_Put_Simple(t *testing.T) {
	mock := &testutil.MockS3Client{}
	mock.PutObjectFunc = func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		assert.Equal(t, "pack-bucket", aws.ToString(params.Bucket))
		assert.Equal(t, "a/b/c", aws.ToString(params.Key))
		assert.Equal(t, "application/json", aws.ToString(params.ContentType))
		assert.Equal(t, "deflate", aws.ToString(params.ContentEncoding))
		assert.Equal(t, map[string]string{"sha256": "abc"}, params.Metadata)
		assert.Equal(t, int64(5), aws.ToInt64(params.ContentLength))

		body, err := io.ReadAll(params.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
		return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
	}

	p := NewWithClient(mock, "pack-bucket")
	err := p.Put(t.Context(), "a/b/c", strings.NewReader("hello"), 5, storage.PutOptions{
		ContentType:     "application/json",
		ContentEncoding: "deflate",
		Metadata:        map[string]string{"sha256": "abc"},
	})
	require.NoError(t, err)
}

func TestProvider_Put_OmitsEmptyHeaders(t *testing.T) {
	mock := &testutil.MockS3Client{}
	mock.PutObjectFunc = func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		assert.Nil(t, params.ContentType)
		assert.Nil(t, params.ContentEncoding)
		assert.Nil(t, params.Metadata)
		return &s3.PutObjectOutput{}, nil
	}

	p := NewWithClient(mock, "b")
	require.NoError(t, p.Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{}))
}

func TestProvider_Put_EmptyKey(t *testing.T) {
	p := NewWithClient(&testutil.MockS3Client{}, "b")
	err := p.Put(t.Context(), "", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrInvalidInput)
}

func TestProvider_Put_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"access denied", testutil.NewAPIError("AccessDenied", "denied"), uperrors.ErrAccessDenied, false},
		{"bad credentials", testutil.NewAPIError("SignatureDoesNotMatch", "sig"), uperrors.ErrInvalidCredentials, false},
		{"slow down", testutil.NewAPIError("SlowDown", "slow"), uperrors.ErrTooManyRequests, true},
		{"internal", testutil.NewAPIError("InternalError", "oops"), uperrors.ErrServiceUnavailable, true},
		{"no bucket", testutil.NewAPIError("NoSuchBucket", "nope"), uperrors.ErrBucketNotFound, false},
		{"http 503", responseError(503), uperrors.ErrServiceUnavailable, true},
		{"http 429", responseError(429), uperrors.ErrTooManyRequests, true},
		{"http 400", responseError(400), uperrors.ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{}
			mock.PutObjectFunc = func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				return nil, tt.err
			}

			err := NewWithClient(mock, "b").Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.retryable, uperrors.IsRetryable(err))

			var e *uperrors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "put", e.Op)
			assert.Equal(t, "k", e.Key)
		})
	}
}

func TestProvider_Put_ContextCancelled(t *testing.T) {
	mock := &testutil.MockS3Client{}
	mock.PutObjectFunc = func(ctx context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, context.Canceled
	}

	err := NewWithClient(mock, "b").Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, uperrors.IsRetryable(err))
}

func TestProvider_Put_Multipart(t *testing.T) {
	data := testutil.GenerateRandomData(25)

	var mu sync.Mutex
	var received bytes.Buffer
	var partNumbers []int32
	var completed []awstypes.CompletedPart

	mock := &testutil.MockS3Client{}
	mock.CreateMultipartUploadFunc = func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		assert.Equal(t, "application/java-archive", aws.ToString(params.ContentType))
		return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
	}
	mock.UploadPartFunc = func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "upload-1", aws.ToString(params.UploadId))
		body, err := io.ReadAll(params.Body)
		require.NoError(t, err)
		assert.Equal(t, int64(len(body)), aws.ToInt64(params.ContentLength))
		received.Write(body)
		partNumbers = append(partNumbers, aws.ToInt32(params.PartNumber))
		return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
	}
	mock.CompleteMultipartUploadFunc = func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		completed = params.MultipartUpload.Parts
		return &s3.CompleteMultipartUploadOutput{}, nil
	}
	mock.AbortMultipartUploadFunc = func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		t.Fatal("abort must not be called")
		return nil, nil
	}

	p := NewWithClient(mock, "b", WithMultipartThreshold(10))
	p.partSize = 10

	err := p.Put(t.Context(), "big.jar", bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: "application/java-archive",
	})
	require.NoError(t, err)

	assert.Equal(t, data, received.Bytes())
	assert.Equal(t, []int32{1, 2, 3}, partNumbers)
	require.Len(t, completed, 3)
	assert.Equal(t, int32(3), aws.ToInt32(completed[2].PartNumber))
}

func TestProvider_Put_MultipartAbortsOnFailure(t *testing.T) {
	aborted := false
	mock := &testutil.MockS3Client{}
	mock.UploadPartFunc = func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		if aws.ToInt32(params.PartNumber) == 2 {
			return nil, testutil.NewAPIError("InternalError", "boom")
		}
		return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
	}
	mock.AbortMultipartUploadFunc = func(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		aborted = true
		assert.Equal(t, "mock-upload-id", aws.ToString(params.UploadId))
		return &s3.AbortMultipartUploadOutput{}, nil
	}

	p := NewWithClient(mock, "b", WithMultipartThreshold(4))
	p.partSize = 4

	err := p.Put(t.Context(), "big.jar", strings.NewReader("0123456789"), 10, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrServiceUnavailable)
	assert.True(t, aborted)
}

func TestProvider_Exists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr error
	}{
		{name: "present", want: true},
		{name: "not found code", err: &awstypes.NotFound{}, want: false},
		{name: "404 status", err: responseError(404), want: false},
		{name: "forbidden", err: responseError(403), wantErr: uperrors.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{}
			mock.HeadObjectFunc = func(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "k", aws.ToString(params.Key))
				if tt.err != nil {
					return nil, tt.err
				}
				return &s3.HeadObjectOutput{}, nil
			}

			ok, err := NewWithClient(mock, "b").Exists(t.Context(), "k")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestProvider_Get(t *testing.T) {
	mock := &testutil.MockS3Client{}
	mock.GetObjectFunc = func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		if aws.ToString(params.Key) == "missing" {
			return nil, &awstypes.NoSuchKey{}
		}
		return testutil.CreateGetObjectOutput([]byte("payload"), "deflate"), nil
	}
	p := NewWithClient(mock, "b")

	obj, err := p.Get(t.Context(), "present")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "deflate", obj.ContentEncoding)
	assert.Equal(t, int64(7), obj.Size)

	_, err = p.Get(t.Context(), "missing")
	assert.ErrorIs(t, err, uperrors.ErrObjectNotFound)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(t.Context(), storage.Config{Type: storage.TypeS3})
	assert.ErrorIs(t, err, uperrors.ErrInvalidConfig)
}

func TestNew_StaticCredentials(t *testing.T) {
	p, err := New(t.Context(), storage.Config{
		Type:      storage.TypeCOS,
		Region:    "ap-guangzhou",
		Bucket:    "pack-125",
		AccessKey: "AKID",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "cos", p.Name())
	assert.Equal(t, "pack-125", p.Bucket())
	assert.NoError(t, p.Close())
}

func TestWithPartSize_Minimum(t *testing.T) {
	p := NewWithClient(&testutil.MockS3Client{}, "b", WithPartSize(1024))
	assert.Equal(t, minPartSize, p.partSize)
}
