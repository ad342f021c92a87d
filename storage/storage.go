// Package storage defines the object-storage abstraction the uploader writes
// to, and a factory that opens a configured provider by type.
//
// Providers live in sub-packages:
//
//   - storage/s3: Amazon S3 and S3-compatible services (Tencent COS, MinIO gateways)
//   - storage/minio: the MinIO client
//   - storage/memory: an in-memory bucket for tests and dry runs
package storage

import (
	"context"
	"io"
	"strings"
)

// Provider types understood by the factory.
const (
	TypeS3     = "s3"
	TypeCOS    = "cos"
	TypeMinio  = "minio"
	TypeMemory = "memory"
)

// PutOptions carries the object headers set on upload.
type PutOptions struct {
	// ContentType is the MIME type of the stored object.
	ContentType string

	// ContentEncoding is set when the body is compressed (for example "deflate").
	ContentEncoding string

	// Metadata is stored as user-defined object metadata.
	Metadata map[string]string
}

// Object is a stored object opened for reading. The caller must close Body.
type Object struct {
	Body            io.ReadCloser
	Size            int64
	ContentType     string
	ContentEncoding string
}

// Provider is an object-storage bucket.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider type (e.g. "s3", "minio", "memory").
	Name() string

	// Bucket returns the bucket the provider writes to.
	Bucket() string

	// Put stores size bytes read from body under key, replacing any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Get opens the object stored under key. A missing object yields an error
	// matching errors.ErrObjectNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Close releases resources held by the provider.
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	// Type is one of the Type* constants.
	Type string

	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// ForcePathStyle addresses the bucket as a path segment instead of a host prefix.
	ForcePathStyle bool

	// MultipartThreshold overrides the size at which uploads switch to multipart.
	MultipartThreshold int64
}

// EndpointURL returns the service endpoint. An explicit endpoint wins, with
// https assumed when it is a bare host[:port]; COS derives one from the
// region; plain S3 returns "" to use the SDK default.
func (c Config) EndpointURL() string {
	if c.Endpoint != "" {
		endpoint := strings.TrimRight(c.Endpoint, "/")
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		return endpoint
	}
	if strings.EqualFold(c.Type, TypeCOS) && c.Region != "" {
		return "https://cos." + c.Region + ".myqcloud.com"
	}
	return ""
}

// DefaultDownloadURL returns the public base URL of objects in the bucket.
func (c Config) DefaultDownloadURL() string {
	switch {
	case strings.EqualFold(c.Type, TypeCOS):
		return "https://" + c.Bucket + ".cos." + c.Region + ".myqcloud.com"
	case c.Endpoint != "":
		return c.EndpointURL() + "/" + c.Bucket
	case c.Region != "":
		return "https://" + c.Bucket + ".s3." + c.Region + ".amazonaws.com"
	default:
		return "https://" + c.Bucket + ".s3.amazonaws.com"
	}
}
