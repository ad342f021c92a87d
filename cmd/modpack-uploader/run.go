package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/mmyddd/modpack-uploader/config"
	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/progress"
	"github.com/mmyddd/modpack-uploader/internal/retry"
	"github.com/mmyddd/modpack-uploader/internal/scanner"
	"github.com/mmyddd/modpack-uploader/logging"
	"github.com/mmyddd/modpack-uploader/publish"
	"github.com/mmyddd/modpack-uploader/storage"
	"github.com/mmyddd/modpack-uploader/storage/memory"
	"github.com/mmyddd/modpack-uploader/storage/minio"
	"github.com/mmyddd/modpack-uploader/storage/s3"
	"github.com/mmyddd/modpack-uploader/upload"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2

	dryRunBucket = "dry-run"
)

// run executes the command line and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("modpack-uploader", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultPath, "path of the JSON config file")
	dryRun := fs.Bool("dry-run", false, "upload to an in-memory bucket instead of the configured one")
	config.RegisterFlags(fs)
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	mode, files, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr, fs)
		return exitConfig
	}

	cfg, err := config.Load(config.Options{Path: *configPath, Flags: fs})
	if err != nil {
		if errors.Is(err, config.ErrTemplateCreated) {
			fmt.Fprintf(stderr, "config file %s was not found; an empty template was written there.\n", *configPath)
			fmt.Fprintln(stderr, "Fill in the storage settings and run again.")
			return exitConfig
		}
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}

	downloadURL := cfg.DownloadURL()
	if *dryRun {
		cfg.Storage.Provider = storage.TypeMemory
		if cfg.Storage.BucketName == "" {
			cfg.Storage.BucketName = dryRunBucket
		}
	}
	if err := cfg.Validate(mode); err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}

	logger := logging.New(stderr, cfg.LoggingOptions())

	provider, err := newFactory().Open(ctx, cfg.ToStorageConfig(), logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open storage", "provider", cfg.Storage.Provider, "error", err)
		return exitCode(err)
	}
	defer provider.Close()

	if *dryRun {
		logger.InfoContext(ctx, "dry run, nothing leaves this process", "bucket", provider.Bucket())
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Upload.MaxRetries

	switch mode {
	case config.ModePublish:
		err = runPublish(ctx, cfg, provider, policy, downloadURL, logger, stdout)
	default:
		err = runUpload(ctx, cfg, provider, policy, files, logger, stdout)
	}
	if err != nil {
		logger.ErrorContext(ctx, "run failed", "mode", mode, "error", err, "code", uperrors.CodeOf(err))
		return exitCode(err)
	}
	return exitOK
}

func parseCommand(args []string) (config.Mode, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New("missing command")
	}
	switch config.Mode(args[0]) {
	case config.ModePublish:
		if len(args) > 1 {
			return "", nil, fmt.Errorf("publish takes no arguments, got %q", args[1:])
		}
		return config.ModePublish, nil, nil
	case config.ModeUpload:
		if len(args) < 2 {
			return "", nil, errors.New("upload needs at least one file")
		}
		return config.ModeUpload, args[1:], nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func newFactory() *storage.Factory {
	f := storage.NewFactory()
	for typ, open := range map[string]storage.Opener{
		storage.TypeS3:     s3.Open,
		storage.TypeCOS:    s3.Open,
		storage.TypeMinio:  minio.Open,
		storage.TypeMemory: memory.Open,
	} {
		if err := f.Register(typ, open); err != nil {
			panic(err)
		}
	}
	return f
}

func runUpload(
	ctx context.Context,
	cfg *config.Config,
	provider storage.Provider,
	policy retry.Policy,
	files []string,
	logger *slog.Logger,
	stdout io.Writer,
) error {
	jobs := upload.PlanPaths(scanner.HostFS(), files, cfg.Upload.Prefix)

	tracker := progress.New(len(jobs), progress.LogListener{Logger: logger})
	tracker.StartReporting(ctx)

	orchestrator := upload.NewOrchestrator(provider,
		upload.WithConcurrency(cfg.Upload.Concurrency),
		upload.WithRetryPolicy(policy),
		upload.WithTracker(tracker),
		upload.WithLogger(logger),
	)

	start := time.Now()
	results := orchestrator.Run(ctx, jobs)
	tracker.Stop()

	summary := upload.Summarize(results, time.Since(start))
	printResults(stdout, results)
	fmt.Fprintln(stdout, summary)

	return summary.Err()
}

func runPublish(
	ctx context.Context,
	cfg *config.Config,
	provider storage.Provider,
	policy retry.Policy,
	downloadURL string,
	logger *slog.Logger,
	stdout io.Writer,
) error {
	publisher := publish.New(provider,
		publish.WithDownloadURL(downloadURL),
		publish.WithRetryPolicy(policy),
		publish.WithLogger(logger),
		publish.WithProgress(progress.LogListener{Logger: logger}, progress.DefaultInterval),
		publish.WithUploadOptions(
			upload.WithConcurrency(cfg.Upload.Concurrency),
			upload.WithRetryPolicy(policy),
			upload.WithLogger(logger),
		),
	)

	result, err := publisher.Publish(ctx, publish.Request{
		ProjectID:   cfg.Storage.ProjectID,
		VersionName: cfg.VersionName,
		SourceDir:   cfg.SourceDir,
		ServerDir:   cfg.SourceServerDir,
		ClientDir:   cfg.SourceClientDir,
		Libraries:   cfg.Libraries,
		Include:     cfg.Upload.Include,
		Exclude:     cfg.Upload.Exclude,
	})
	if result != nil {
		for _, r := range upload.Failures(result.Uploads) {
			fmt.Fprintf(stdout, "FAIL %s: %s\n", r.Job.Name(), r.Error)
		}
		fmt.Fprintln(stdout, result.Summary)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "published %s (%s)\n", result.Version.VersionName, result.Version.VersionDate)
	fmt.Fprintf(stdout, "  modpack:  %s\n", result.ModpackURL)
	fmt.Fprintf(stdout, "  versions: %s\n", result.VersionsURL)
	fmt.Fprintf(stdout, "  meta:     %s\n", result.MetaURL)
	return nil
}

func printResults(w io.Writer, results []upload.Result) {
	for _, r := range results {
		switch {
		case !r.Succeeded():
			fmt.Fprintf(w, "FAIL %s: %s\n", r.Job.Name(), r.Error)
		case r.Skipped:
			fmt.Fprintf(w, "skip %s -> %s\n", r.Job.Name(), r.Job.Key)
		default:
			fmt.Fprintf(w, "ok   %s -> %s\n", r.Job.Name(), r.Job.Key)
		}
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case uperrors.IsInvalidConfig(err):
		return exitConfig
	default:
		return exitFailed
	}
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  modpack-uploader [flags] publish")
	fmt.Fprintln(w, "  modpack-uploader [flags] upload <file>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
