// Package s3 implements storage.Provider on the AWS SDK for Go v2.
//
// It works against Amazon S3 and S3-compatible services such as Tencent COS
// and MinIO: an explicit endpoint replaces the AWS one, and path-style
// addressing can be forced for services without virtual-hosted buckets.
// Small bodies are uploaded with a single PutObject; bodies at or above the
// multipart threshold are split into parts.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/s3api"
	"github.com/mmyddd/modpack-uploader/storage"
)

var _ storage.Provider = (*Provider)(nil)

// Provider stores objects in one S3 bucket.
//
// Thread Safety: the SDK client is safe for concurrent use and the provider
// holds no other mutable state.
type Provider struct {
	api    s3api.S3API
	name   string
	bucket string
	logger *slog.Logger

	multipartThreshold int64
	partSize           int64
}

// New creates a provider from storage configuration. Static credentials are
// used when an access key is configured; otherwise the default AWS credential
// chain applies.
func New(ctx context.Context, cfg storage.Config, opts ...Option) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, uperrors.NewConfigError("storage bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	endpoint := cfg.EndpointURL()
	if endpoint != "" {
		// third-party services reject the SDK's default CRC32 trailers
		loadOpts = append(loadOpts,
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
			config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
		)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, uperrors.NewError("client initialization", err).WithBucket(cfg.Bucket)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	name := cfg.Type
	if name == "" {
		name = storage.TypeS3
	}
	if cfg.MultipartThreshold > 0 {
		opts = append(opts, WithMultipartThreshold(cfg.MultipartThreshold))
	}

	p := NewWithClient(client, cfg.Bucket, opts...)
	p.name = name
	return p, nil
}

// NewWithClient creates a provider on a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(api s3api.S3API, bucket string, opts ...Option) *Provider {
	p := &Provider{
		api:                api,
		name:               storage.TypeS3,
		bucket:             bucket,
		multipartThreshold: DefaultMultipartThreshold,
		partSize:           DefaultPartSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open is a storage.Opener for S3 and COS.
//
//nolint:ireturn // matches storage.Opener.
func Open(ctx context.Context, cfg storage.Config, logger *slog.Logger) (storage.Provider, error) {
	return New(ctx, cfg, WithLogger(logger))
}

// Name returns the provider type.
func (p *Provider) Name() string {
	return p.name
}

// Bucket returns the bucket name.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Put uploads size bytes from body to key.
func (p *Provider) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	if key == "" {
		return uperrors.NewObjectError("put", p.bucket, key, fmt.Errorf("%w: empty key", uperrors.ErrInvalidInput))
	}

	if size >= p.multipartThreshold {
		return p.putMultipart(ctx, key, body, size, opts)
	}
	return p.putSimple(ctx, key, body, opts)
}

func (p *Provider) putSimple(ctx context.Context, key string, body io.Reader, opts storage.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return uperrors.NewObjectError("put", p.bucket, key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := p.api.PutObject(ctx, input); err != nil {
		return translateError("put", p.bucket, key, err)
	}

	p.debug(ctx, "object stored", "key", key, "size", len(data))
	return nil
}

// Exists issues a HEAD request for key. A 404 means the object is absent.
func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
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
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError("get", p.bucket, key, err)
	}

	body := out.Body
	if body == nil {
		body = io.NopCloser(bytes.NewReader(nil))
	}

	return &storage.Object{
		Body:            body,
		Size:            aws.ToInt64(out.ContentLength),
		ContentType:     aws.ToString(out.ContentType),
		ContentEncoding: aws.ToString(out.ContentEncoding),
	}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) debug(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.DebugContext(ctx, msg, append([]any{"bucket", p.bucket}, args...)...)
	}
}
