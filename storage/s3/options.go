package s3

import (
	"log/slog"
)

const (
	// DefaultMultipartThreshold is the body size at which Put switches to multipart upload.
	DefaultMultipartThreshold int64 = 64 * 1024 * 1024

	// DefaultPartSize is the multipart part size. S3 requires at least 5MB for all but the last part.
	DefaultPartSize int64 = 8 * 1024 * 1024

	minPartSize int64 = 5 * 1024 * 1024
)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for request-level debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithMultipartThreshold sets the size at which uploads switch to multipart.
func WithMultipartThreshold(threshold int64) Option {
	return func(p *Provider) {
		if threshold > 0 {
			p.multipartThreshold = threshold
		}
	}
}

// WithPartSize sets the multipart part size. Values below 5MB are raised to 5MB.
func WithPartSize(partSize int64) Option {
	return func(p *Provider) {
		if partSize > 0 {
			p.partSize = max(partSize, minPartSize)
		}
	}
}
