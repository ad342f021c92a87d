// Package minio implements storage.Provider on the MinIO client.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/storage"
)

var _ storage.Provider = (*Provider)(nil)

// Provider stores objects in one bucket through a MinIO client.
type Provider struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New creates a provider from storage configuration. The endpoint may be a
// bare host:port (TLS assumed) or a URL whose scheme selects TLS.
func New(cfg storage.Config, logger *slog.Logger) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, uperrors.NewConfigError("storage bucket is required")
	}

	endpoint := cfg.EndpointURL()
	if endpoint == "" {
		return nil, uperrors.NewConfigError("storage endpoint is required for the minio provider")
	}

	host, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, uperrors.NewConfigError(err.Error())
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	}
	if cfg.ForcePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, opts)
	if err != nil {
		return nil, uperrors.NewError("client initialization", err).WithBucket(cfg.Bucket)
	}

	return &Provider{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Open is a storage.Opener for MinIO.
//
//nolint:ireturn // matches storage.Opener.
func Open(_ context.Context, cfg storage.Config, logger *slog.Logger) (storage.Provider, error) {
	return New(cfg, logger)
}

func parseEndpoint(endpoint string) (host string, secure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), true, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid storage endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return "", false, fmt.Errorf("invalid storage endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid storage endpoint %q: missing host", endpoint)
	}
	return u.Host, secure, nil
}

// Name returns the provider type.
func (p *Provider) Name() string {
	return storage.TypeMinio
}

// Bucket returns the bucket name.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Put uploads size bytes from body to key. The client switches to multipart
// on its own for large bodies.
func (p *Provider) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	if key == "" {
		return uperrors.NewObjectError("put", p.bucket, key, fmt.Errorf("%w: empty key", uperrors.ErrInvalidInput))
	}

	info, err := p.client.PutObject(ctx, p.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		UserMetadata:    opts.Metadata,
	})
	if err != nil {
		return translateError("put", p.bucket, key, err)
	}

	if p.logger != nil {
		p.logger.DebugContext(ctx, "object stored", "bucket", p.bucket, "key", key, "size", info.Size)
	}
	return nil
}

// Exists stats key. A missing object is reported as false with no error.
func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	err = translateError("head", p.bucket, key, err)
	if uperrors.IsObjectNotFound(err) {
		return false, nil
	}
	return false, err
}

// Get opens the object stored under key.
func (p *Provider) Get(ctx context.Context, key string) (*storage.Object, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError("get", p.bucket, key, err)
	}

	// GetObject is lazy; Stat performs the request and surfaces missing keys.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translateError("get", p.bucket, key, err)
	}

	return &storage.Object{
		Body:            obj,
		Size:            stat.Size,
		ContentType:     stat.ContentType,
		ContentEncoding: stat.Metadata.Get("Content-Encoding"),
	}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}
