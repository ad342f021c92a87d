// Package upload runs ordered batches of file uploads against a storage
// provider.
//
// The Orchestrator returns exactly one Result per Job, in input order, for
// any input. A failing job never stops the others: local read errors,
// compression errors and remote errors are recorded in that job's Result.
// Retryable remote failures are retried with backoff before being recorded.
// Jobs run sequentially unless a concurrency above one is configured; results
// are still reported in input order.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/compress"
	"github.com/mmyddd/modpack-uploader/internal/retry"
	"github.com/mmyddd/modpack-uploader/internal/scanner"
	"github.com/mmyddd/modpack-uploader/storage"
)

// MetadataHash is the object metadata key holding the file's SHA-256 digest.
const MetadataHash = "sha256"

// Tracker receives job start and finish notifications.
type Tracker interface {
	Start(name string)
	Done(name string)
}

// Orchestrator uploads jobs to a storage provider.
type Orchestrator struct {
	provider    storage.Provider
	filesystem  billy.Filesystem
	policy      retry.Policy
	concurrency int
	tracker     Tracker
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the number of jobs run at once. Values below one mean one.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.concurrency = max(n, 1)
	}
}

// WithRetryPolicy sets the per-job retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithFilesystem sets the filesystem local paths are read from.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(o *Orchestrator) {
		if fsys != nil {
			o.filesystem = fsys
		}
	}
}

// WithTracker sets the progress tracker.
func WithTracker(t Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock sets the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator creates an orchestrator that writes to provider. By default
// it reads the host filesystem, runs one job at a time and uses
// retry.DefaultPolicy.
func NewOrchestrator(provider storage.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		filesystem:  scanner.HostFS(),
		policy:      retry.DefaultPolicy(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run uploads every job and returns one result per job in input order.
// Cancelling ctx stops new jobs from starting; they are recorded as failed
// with the context error.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	// plain Group: one failed job must not cancel the rest
	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, job := range jobs {
		if ctx.Err() != nil {
			results[i] = o.cancelled(ctx, job)
			continue
		}
		g.Go(func() error {
			results[i] = o.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) cancelled(ctx context.Context, job Job) Result {
	err := uperrors.NewObjectError("upload", o.provider.Bucket(), job.Key, context.Cause(ctx))
	return Result{
		Job:       job,
		Status:    StatusFailed,
		Err:       err,
		Error:     err.Error(),
		Timestamp: o.now(),
	}
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) Result {
	if ctx.Err() != nil {
		return o.cancelled(ctx, job)
	}

	name := job.Name()
	if o.tracker != nil {
		o.tracker.Start(name)
		defer o.tracker.Done(name)
	}

	start := time.Now()
	var (
		skipped bool
		sent    int64
	)

	attempts, err := o.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		skipped, sent, err = o.attempt(ctx, job)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		o.log(ctx, slog.LevelWarn, "retrying upload",
			"file", name, "key", job.Key, "attempt", attempt, "wait", wait, "error", err)
	})

	result := Result{
		Job:       job,
		Timestamp: o.now(),
		Attempts:  attempts,
		Duration:  time.Since(start),
	}

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		result.Error = err.Error()
		o.log(ctx, slog.LevelError, "upload failed",
			"file", name, "key", job.Key, "attempts", attempts, "error", err)
		return result
	}

	result.Status = StatusSucceeded
	result.Skipped = skipped
	result.BytesSent = sent
	if skipped {
		o.log(ctx, slog.LevelInfo, "skipped existing object", "file", name, "key", job.Key)
	} else {
		o.log(ctx, slog.LevelInfo, "upload completed",
			"file", name, "key", job.Key, "bytes", sent, "attempts", attempts)
	}
	return result
}

// attempt performs one upload attempt and reports whether it was skipped and
// how many bytes were sent.
func (o *Orchestrator) attempt(ctx context.Context, job Job) (bool, int64, error) {
	bucket := o.provider.Bucket()

	if job.Key == "" {
		return false, 0, uperrors.NewObjectError("upload", bucket, job.Key,
			fmt.Errorf("%w: empty object key for %s", uperrors.ErrInvalidInput, job.LocalPath))
	}

	if job.SkipIfExists {
		exists, err := o.provider.Exists(ctx, job.Key)
		if err != nil {
			return false, 0, err
		}
		if exists {
			return true, 0, nil
		}
	}

	f, err := o.filesystem.Open(job.LocalPath)
	if err != nil {
		return false, 0, uperrors.NewObjectError("open", bucket, job.Key, err)
	}
	defer f.Close()

	info, err := o.filesystem.Stat(job.LocalPath)
	if err != nil {
		return false, 0, uperrors.NewObjectError("stat", bucket, job.Key, err)
	}
	if info.IsDir() {
		return false, 0, uperrors.NewObjectError("open", bucket, job.Key,
			fmt.Errorf("%w: %s is a directory", uperrors.ErrInvalidInput, job.LocalPath))
	}

	contentType, err := detectContentType(f)
	if err != nil {
		return false, 0, uperrors.NewObjectError("read", bucket, job.Key, err)
	}

	opts := storage.PutOptions{ContentType: contentType}
	if job.Hash != "" {
		opts.Metadata = map[string]string{MetadataHash: job.Hash}
	}

	var (
		body io.Reader = f
		size           = info.Size()
	)
	if job.Compress {
		data, err := compress.Deflate(f)
		if err != nil {
			return false, 0, uperrors.NewObjectError("compress", bucket, job.Key, err).
				WithCode(uperrors.CodeExecutionFailed)
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
		opts.ContentEncoding = compress.ContentEncoding
	}

	if err := o.provider.Put(ctx, job.Key, body, size, opts); err != nil {
		return false, 0, err
	}
	return false, size, nil
}

// detectContentType sniffs the file header and rewinds the file.
func detectContentType(f billy.File) (string, error) {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

func (o *Orchestrator) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Log(ctx, level, msg, append(args, "bucket", o.provider.Bucket())...)
	}
}
