package upload

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

// Job describes one file to upload. Jobs are values and are not modified
// after planning.
type Job struct {
	// LocalPath is the path of the file to read.
	LocalPath string

	// Key is the target object key, prefix included.
	Key string

	// Size is the file size at planning time. Informational only.
	Size int64

	// RelPath is the slash-separated path relative to the source root.
	RelPath string

	// Hash is the SHA-256 hex digest of the file, when known.
	Hash string

	// Compress uploads the deflate-compressed body instead of the raw file.
	Compress bool

	// SkipIfExists leaves an existing object in place instead of overwriting it.
	SkipIfExists bool
}

// Name returns the label used for the job in logs and progress reports.
func (j Job) Name() string {
	if j.RelPath != "" {
		return j.RelPath
	}
	return j.LocalPath
}

// Status is the outcome of a job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result records the outcome of one job. Results are not modified after
// they are recorded.
type Result struct {
	Job    Job
	Status Status

	// Err is the final error; nil on success.
	Err error

	// Error is the failure detail suitable for reports; empty on success.
	Error string

	// Timestamp is when the last attempt finished.
	Timestamp time.Time

	// Skipped is set when the object already existed and nothing was sent.
	Skipped bool

	// Attempts is the number of attempts made (0 if the job never started).
	Attempts int

	// BytesSent is the body size sent on the successful attempt.
	BytesSent int64

	Duration time.Duration
}

// Succeeded reports whether the job succeeded.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Summary aggregates a run's results.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Bytes     int64
	Duration  time.Duration
}

// Summarize counts results. Skipped jobs are also counted as succeeded.
func Summarize(results []Result, elapsed time.Duration) Summary {
	s := Summary{Total: len(results), Duration: elapsed}
	for _, r := range results {
		if !r.Succeeded() {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Bytes += r.BytesSent
		if r.Skipped {
			s.Skipped++
		}
	}
	return s
}

// Err returns errors.ErrAllFailed when there were jobs and none succeeded.
// Partial failure is not an error.
func (s Summary) Err() error {
	if s.Total > 0 && s.Succeeded == 0 {
		return uperrors.NewError("upload", uperrors.ErrAllFailed).
			WithCode(uperrors.CodeExecutionFailed).
			WithMessage(fmt.Sprintf("%d of %d files failed", s.Failed, s.Total))
	}
	return nil
}

// String renders a one-line report.
func (s Summary) String() string {
	return fmt.Sprintf("%d files: %d uploaded, %d skipped, %d failed (%s in %s)",
		s.Total,
		s.Succeeded-s.Skipped,
		s.Skipped,
		s.Failed,
		humanize.Bytes(uint64(max(s.Bytes, 0))),
		s.Duration.Round(time.Millisecond),
	)
}

// Failures returns the failed results in input order.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Succeeded() {
			failed = append(failed, r)
		}
	}
	return failed
}
