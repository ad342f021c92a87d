// Package publish publishes a modpack version: it uploads every file of a
// source directory under a content-addressed key and then writes the
// modpack.json, versions.json and meta.json documents a launcher reads.
//
// Metadata is only written after every file upload succeeded, so a published
// version never references a missing object.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/compress"
	"github.com/mmyddd/modpack-uploader/internal/hashing"
	"github.com/mmyddd/modpack-uploader/internal/progress"
	"github.com/mmyddd/modpack-uploader/internal/retry"
	"github.com/mmyddd/modpack-uploader/internal/scanner"
	"github.com/mmyddd/modpack-uploader/storage"
	"github.com/mmyddd/modpack-uploader/upload"
)

const contentTypeJSON = "application/json"

// Request describes the version to publish.
type Request struct {
	ProjectID   string
	VersionName string

	// SourceDir holds the files shared by client and server.
	SourceDir string

	// ServerDir and ClientDir optionally hold side-specific files. They may be
	// nested inside SourceDir, in which case they are not scanned twice, but
	// must not equal or contain SourceDir or each other.
	ServerDir string
	ClientDir string

	Libraries map[string]string

	// Include and Exclude filter the scanned files by relative path.
	Include []string
	Exclude []string
}

// Result reports a publish run. After a failed upload only Uploads and
// Summary are set.
type Result struct {
	Version VersionInfo

	ModpackURL  string
	VersionsURL string
	MetaURL     string

	Files   []ModpackFile
	Uploads []upload.Result
	Summary upload.Summary
}

// Publisher publishes versions to a storage provider.
type Publisher struct {
	provider    storage.Provider
	filesystem  billy.Filesystem
	downloadURL string
	uploadOpts  []upload.Option
	policy      retry.Policy
	listener    progress.Listener
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFilesystem sets the filesystem source directories are read from.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(p *Publisher) {
		if fsys != nil {
			p.filesystem = fsys
		}
	}
}

// WithDownloadURL sets the base URL download links are built from.
func WithDownloadURL(u string) Option {
	return func(p *Publisher) {
		p.downloadURL = strings.TrimRight(u, "/")
	}
}

// WithUploadOptions sets the options of the orchestrator that uploads the files.
func WithUploadOptions(opts ...upload.Option) Option {
	return func(p *Publisher) {
		p.uploadOpts = append(p.uploadOpts, opts...)
	}
}

// WithRetryPolicy sets the retry policy for metadata documents.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Publisher) {
		p.policy = policy
	}
}

// WithProgress reports file upload progress to listener every interval.
func WithProgress(listener progress.Listener, interval time.Duration) Option {
	return func(p *Publisher) {
		p.listener = listener
		p.interval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock sets the time source for version dates.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a publisher writing to provider.
func New(provider storage.Provider, opts ...Option) *Publisher {
	p := &Publisher{
		provider:   provider,
		filesystem: scanner.HostFS(),
		policy:     retry.DefaultPolicy(),
		interval:   progress.DefaultInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish uploads the files of req and publishes them as a new version.
//
// It fails with errors.ErrVersionExists, before uploading anything, when the
// version is already listed in versions.json. When any file fails to upload it
// returns the partial result with an error wrapping errors.ErrIncompleteUpload
// and leaves the metadata untouched.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	bucket := p.provider.Bucket()
	versionsKey := VersionsKey(req.ProjectID)

	versions, err := p.loadVersions(ctx, versionsKey)
	if err != nil {
		return nil, err
	}
	if versions.Contains(req.VersionName) {
		return nil, uperrors.NewObjectError("publish", bucket, versionsKey,
			fmt.Errorf("%w: %s", uperrors.ErrVersionExists, req.VersionName))
	}

	entries, err := p.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	p.logInfo(ctx, "publishing version",
		"project", req.ProjectID, "version", req.VersionName, "files", len(entries))

	start := time.Now()
	uploads := p.upload(ctx, entries)

	result := &Result{
		Uploads: uploads,
		Summary: upload.Summarize(uploads, time.Since(start)),
	}
	if result.Summary.Failed > 0 {
		p.logError(ctx, "publish aborted, metadata not written",
			"version", req.VersionName, "failed", result.Summary.Failed, "total", result.Summary.Total)
		return result, uperrors.NewError("publish",
			fmt.Errorf("%w: %d of %d files failed", uperrors.ErrIncompleteUpload,
				result.Summary.Failed, result.Summary.Total)).
			WithCode(uperrors.CodePublishFailed)
	}

	result.Files = p.modpackFiles(entries)

	modpackKey := ModpackKey(req.ProjectID, req.VersionName)
	modpack := Modpack{
		Version:   req.VersionName,
		Libraries: maps.Clone(req.Libraries),
		Files:     result.Files,
	}
	if modpack.Libraries == nil {
		modpack.Libraries = map[string]string{}
	}
	if err := p.putJSON(ctx, modpackKey, modpack); err != nil {
		return result, err
	}

	info := VersionInfo{
		VersionName:   req.VersionName,
		VersionDate:   p.now().Format(DateLayout),
		PackFilePath:  p.link(modpackKey),
		ChangelogPath: p.link(ChangelogKey(req.ProjectID, req.VersionName)),
	}
	versions.Versions = append(versions.Versions, info)
	if err := p.putJSON(ctx, versionsKey, versions); err != nil {
		return result, err
	}

	metaKey := MetaKey(req.ProjectID)
	meta := ModpackMeta{
		VersionsPath:  p.link(versionsKey),
		LatestVersion: info,
	}
	if err := p.putJSON(ctx, metaKey, meta); err != nil {
		return result, err
	}

	result.Version = info
	result.ModpackURL = p.link(modpackKey)
	result.VersionsURL = p.link(versionsKey)
	result.MetaURL = p.link(metaKey)

	p.logInfo(ctx, "version published",
		"project", req.ProjectID, "version", req.VersionName, "modpack", result.ModpackURL)

	return result, nil
}

func (r Request) validate() error {
	var missing []string
	if r.ProjectID == "" {
		missing = append(missing, "project id")
	}
	if r.VersionName == "" {
		missing = append(missing, "version name")
	}
	if r.SourceDir == "" {
		missing = append(missing, "source directory")
	}
	if len(missing) > 0 {
		return uperrors.NewError("publish",
			fmt.Errorf("%w: missing %s", uperrors.ErrInvalidInput, strings.Join(missing, ", ")))
	}

	for _, field := range [][2]string{{"project id", r.ProjectID}, {"version name", r.VersionName}} {
		name, v := field[0], field[1]
		if strings.ContainsAny(v, `/\`) || v == "." || v == ".." {
			return uperrors.NewError("publish",
				fmt.Errorf("%w: %s %q must be a single path segment", uperrors.ErrInvalidInput, name, v))
		}
	}
	return r.validateDirs()
}

// validateDirs rejects directory layouts that would publish a file twice.
// Side directories may be nested inside SourceDir, nothing else may overlap.
func (r Request) validateDirs() error {
	sides := [][2]string{{"client directory", r.ClientDir}, {"server directory", r.ServerDir}}
	for _, side := range sides {
		name, dir := side[0], side[1]
		if dir == "" {
			continue
		}
		if sameDir(r.SourceDir, dir) {
			return overlapError(name, dir, "equals the source directory")
		}
		if _, ok := nestedDir(dir, r.SourceDir); ok {
			return overlapError(name, dir, "contains the source directory")
		}
	}

	if r.ClientDir == "" || r.ServerDir == "" {
		return nil
	}
	_, clientInServer := nestedDir(r.ServerDir, r.ClientDir)
	_, serverInClient := nestedDir(r.ClientDir, r.ServerDir)
	if sameDir(r.ClientDir, r.ServerDir) || clientInServer || serverInClient {
		return overlapError("client directory", r.ClientDir, "overlaps the server directory")
	}
	return nil
}

func sameDir(a, b string) bool {
	rel, err := filepath.Rel(a, b)
	return err == nil && rel == "."
}

func overlapError(name, dir, reason string) error {
	return uperrors.NewError("publish",
		fmt.Errorf("%w: %s %s", uperrors.ErrInvalidInput, name, reason)).WithKey(dir)
}

// loadVersions reads versions.json. A missing document is an empty list.
func (p *Publisher) loadVersions(ctx context.Context, key string) (*VersionList, error) {
	obj, err := p.provider.Get(ctx, key)
	if err != nil {
		if uperrors.IsObjectNotFound(err) {
			p.logInfo(ctx, "no published versions yet", "key", key)
			return &VersionList{}, nil
		}
		return nil, err
	}
	defer obj.Body.Close()

	data, err := readDocument(obj)
	if err != nil {
		return nil, uperrors.NewObjectError("read", p.provider.Bucket(), key, err)
	}

	var list VersionList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, uperrors.NewObjectError("decode", p.provider.Bucket(), key,
			fmt.Errorf("%w: %w", uperrors.ErrInvalidInput, err))
	}
	return &list, nil
}

// readDocument returns the JSON bytes of a metadata object. Documents written
// without a Content-Encoding header are recognized by their zlib header.
func readDocument(obj *storage.Object) ([]byte, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	if obj.ContentEncoding == compress.ContentEncoding || isZlib(data) {
		return compress.InflateBytes(data)
	}
	return data, nil
}

func isZlib(data []byte) bool {
	if len(data) < 2 || data[0]&0x0f != 8 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// entry is a planned content upload.
type entry struct {
	job  upload.Job
	dist string
}

type source struct {
	dir     string
	dist    string
	exclude []string
}

// plan scans the source directories and hashes every file.
func (p *Publisher) plan(ctx context.Context, req Request) ([]entry, error) {
	sources := []source{{dir: req.SourceDir, exclude: slices.Clone(req.Exclude)}}
	for _, side := range []source{{dir: req.ClientDir, dist: DistClient}, {dir: req.ServerDir, dist: DistServer}} {
		if side.dir == "" {
			continue
		}
		if rel, ok := nestedDir(req.SourceDir, side.dir); ok {
			sources[0].exclude = append(sources[0].exclude, rel+"/")
		}
		side.exclude = req.Exclude
		sources = append(sources, side)
	}

	sc := scanner.New(p.filesystem)

	var entries []entry
	for _, src := range sources {
		files, err := sc.Scan(ctx, src.dir, req.Include, src.exclude)
		if err != nil {
			return nil, uperrors.NewError("scan", err).WithKey(src.dir)
		}
		for _, f := range files {
			entries = append(entries, entry{
				job: upload.Job{
					LocalPath:    f.Path,
					Size:         f.Size,
					RelPath:      f.RelPath,
					Compress:     compress.ShouldCompress(f.RelPath),
					SkipIfExists: true,
				},
				dist: src.dist,
			})
		}
	}

	if err := p.hash(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// hash fills in the digest and content key of every entry.
func (p *Publisher) hash(ctx context.Context, entries []entry) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			job := &entries[i].job
			digest, _, err := hashing.File(p.filesystem, job.LocalPath)
			if err != nil {
				return uperrors.NewObjectError("hash", p.provider.Bucket(), job.RelPath, err)
			}
			key, err := hashing.ContentKey(digest)
			if err != nil {
				return uperrors.NewObjectError("hash", p.provider.Bucket(), job.RelPath, err)
			}
			job.Hash = digest
			job.Key = key
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) upload(ctx context.Context, entries []entry) []upload.Result {
	jobs := make([]upload.Job, len(entries))
	for i, e := range entries {
		jobs[i] = e.job
	}

	opts := slices.Clone(p.uploadOpts)
	opts = append(opts, upload.WithFilesystem(p.filesystem))
	if p.listener != nil {
		tracker := progress.New(len(jobs), p.listener, progress.WithInterval(p.interval))
		tracker.StartReporting(ctx)
		defer tracker.Stop()
		opts = append(opts, upload.WithTracker(tracker))
	}

	return upload.NewOrchestrator(p.provider, opts...).Run(ctx, jobs)
}

// modpackFiles lists the uploaded files sorted by path, then distribution.
func (p *Publisher) modpackFiles(entries []entry) []ModpackFile {
	files := make([]ModpackFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, ModpackFile{
			File:       e.job.RelPath,
			Hash:       e.job.Hash,
			Link:       p.link(e.job.Key),
			Size:       e.job.Size,
			Dist:       e.dist,
			Compressed: e.job.Compress,
		})
	}
	slices.SortStableFunc(files, func(a, b ModpackFile) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return strings.Compare(a.Dist, b.Dist)
	})
	return files
}

// putJSON uploads v as indented, deflate-compressed JSON.
func (p *Publisher) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return uperrors.NewObjectError("encode", p.provider.Bucket(), key, err).
			WithCode(uperrors.CodeInternal)
	}
	data, err := compress.Deflate(bytes.NewReader(raw))
	if err != nil {
		return uperrors.NewObjectError("compress", p.provider.Bucket(), key, err).
			WithCode(uperrors.CodeExecutionFailed)
	}

	opts := storage.PutOptions{
		ContentType:     contentTypeJSON,
		ContentEncoding: compress.ContentEncoding,
	}
	_, err = p.policy.Do(ctx, func(ctx context.Context, _ int) error {
		return p.provider.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts)
	}, func(attempt int, err error, wait time.Duration) {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "retrying metadata upload",
				"key", key, "attempt", attempt, "wait", wait, "error", err)
		}
	})
	if err != nil {
		p.logError(ctx, "metadata upload failed", "key", key, "error", err)
		return err
	}

	p.logInfo(ctx, "metadata uploaded", "key", key, "bytes", len(data))
	return nil
}

// link returns the download URL of key.
func (p *Publisher) link(key string) string {
	if p.downloadURL == "" {
		return key
	}
	return p.downloadURL + "/" + key
}

// nestedDir reports whether dir lies inside root and returns its slash path
// relative to root.
func nestedDir(root, dir string) (string, bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (p *Publisher) logInfo(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.InfoContext(ctx, msg, append(args, "bucket", p.provider.Bucket())...)
	}
}

func (p *Publisher) logError(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.ErrorContext(ctx, msg, append(args, "bucket", p.provider.Bucket())...)
	}
}
