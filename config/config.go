// Package config loads the uploader configuration.
//
// Values come, in increasing order of precedence, from built-in defaults, the
// JSON config file (mup-config.json by default), the environment (MUP_ prefix,
// with a .env file loaded first) and command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/logging"
	"github.com/mmyddd/modpack-uploader/storage"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "mup-config.json"

// Mode selects which settings Validate requires.
type Mode string

const (
	// ModePublish publishes a modpack version.
	ModePublish Mode = "publish"

	// ModeUpload uploads a list of files.
	ModeUpload Mode = "upload"
)

// Config is the complete uploader configuration.
type Config struct {
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	SourceDir       string `json:"sourceDir"       mapstructure:"sourceDir"`
	SourceServerDir string `json:"sourceServerDir" mapstructure:"sourceServerDir"`
	SourceClientDir string `json:"sourceClientDir" mapstructure:"sourceClientDir"`
	VersionName     string `json:"versionName"     mapstructure:"versionName"`

	// Libraries maps library names (e.g. net.minecraftforge) to versions.
	// Names keep their case, so they are decoded from the file directly.
	Libraries map[string]string `json:"libraries" mapstructure:"-"`

	Upload UploadConfig `json:"upload" mapstructure:"upload"`
	Log    LogConfig    `json:"log"    mapstructure:"log"`
}

// StorageConfig holds the bucket connection settings.
type StorageConfig struct {
	// Provider is one of cos, s3, minio or memory.
	Provider string `json:"provider" mapstructure:"provider"`

	SecretID   string `json:"secretId"   mapstructure:"secretId"`
	SecretKey  string `json:"secretKey"  mapstructure:"secretKey"`
	Region     string `json:"region"     mapstructure:"region"`
	BucketName string `json:"bucketName" mapstructure:"bucketName"`
	Endpoint   string `json:"endpoint"   mapstructure:"endpoint"`

	// DownloadURL is the public base URL of the bucket. Derived from the
	// provider settings when empty.
	DownloadURL string `json:"downloadUrl" mapstructure:"downloadUrl"`

	ProjectID      string `json:"projectId"      mapstructure:"projectId"`
	ForcePathStyle bool   `json:"forcePathStyle" mapstructure:"forcePathStyle"`

	// MultipartThreshold is the object size in bytes above which uploads
	// switch to multipart. Zero keeps the provider default.
	MultipartThreshold int64 `json:"multipartThreshold" mapstructure:"multipartThreshold"`
}

// UploadConfig tunes the upload run.
type UploadConfig struct {
	Concurrency int      `json:"concurrency" mapstructure:"concurrency"`
	MaxRetries  int      `json:"maxRetries"  mapstructure:"maxRetries"`
	Prefix      string   `json:"prefix"      mapstructure:"prefix"`
	Include     []string `json:"include"     mapstructure:"include"`
	Exclude     []string `json:"exclude"     mapstructure:"exclude"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Default returns the configuration used for unset values.
func Default() Config {
	return Config{
		Storage: StorageConfig{Provider: storage.TypeCOS},
		Libraries: map[string]string{
			"net.minecraft":      "1.20.1",
			"net.minecraftforge": "47.4.0",
		},
		Upload: UploadConfig{
			Concurrency: 16,
			MaxRetries:  3,
			Include:     []string{},
			Exclude:     []string{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
	}
}

var (
	providers  = []string{storage.TypeCOS, storage.TypeS3, storage.TypeMinio, storage.TypeMemory}
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{string(logging.FormatText), string(logging.FormatJSON)}
)

// Validate checks that every setting required by mode is present and that
// the values are in range. All problems are reported in one config error.
func (c *Config) Validate(mode Mode) error {
	var missing, invalid []string

	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	provider := strings.ToLower(c.Storage.Provider)
	switch {
	case provider == "":
		missing = append(missing, "storage.provider")
	case !slices.Contains(providers, provider):
		invalid = append(invalid, fmt.Sprintf("storage.provider %q (want one of %s)",
			c.Storage.Provider, strings.Join(providers, ", ")))
	}

	require("storage.bucketName", c.Storage.BucketName)
	switch provider {
	case storage.TypeCOS:
		require("storage.secretId", c.Storage.SecretID)
		require("storage.secretKey", c.Storage.SecretKey)
		require("storage.region", c.Storage.Region)
	case storage.TypeMinio:
		require("storage.secretId", c.Storage.SecretID)
		require("storage.secretKey", c.Storage.SecretKey)
		require("storage.endpoint", c.Storage.Endpoint)
	case storage.TypeS3:
		if (c.Storage.SecretID == "") != (c.Storage.SecretKey == "") {
			invalid = append(invalid, "storage.secretId and storage.secretKey must be set together")
		}
	}

	if mode == ModePublish {
		require("storage.projectId", c.Storage.ProjectID)
		require("sourceDir", c.SourceDir)
		require("versionName", c.VersionName)
	}

	if c.Upload.Concurrency < 1 {
		invalid = append(invalid, fmt.Sprintf("upload.concurrency %d (must be at least 1)", c.Upload.Concurrency))
	}
	if c.Upload.MaxRetries < 0 {
		invalid = append(invalid, fmt.Sprintf("upload.maxRetries %d (must not be negative)", c.Upload.MaxRetries))
	}
	if c.Storage.MultipartThreshold < 0 {
		invalid = append(invalid, "storage.multipartThreshold must not be negative")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		invalid = append(invalid, fmt.Sprintf("log.level %q", c.Log.Level))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		invalid = append(invalid, fmt.Sprintf("log.format %q", c.Log.Format))
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return uperrors.NewConfigError(strings.Join(problems, "; "))
	}
	return nil
}

// ToStorageConfig returns the provider settings for storage.Factory.Open.
func (c *Config) ToStorageConfig() storage.Config {
	return storage.Config{
		Type:               strings.ToLower(c.Storage.Provider),
		Region:             c.Storage.Region,
		Bucket:             c.Storage.BucketName,
		Endpoint:           c.Storage.Endpoint,
		AccessKey:          c.Storage.SecretID,
		SecretKey:          c.Storage.SecretKey,
		ForcePathStyle:     c.Storage.ForcePathStyle,
		MultipartThreshold: c.Storage.MultipartThreshold,
	}
}

// DownloadURL returns the configured download URL or the provider default.
func (c *Config) DownloadURL() string {
	if c.Storage.DownloadURL != "" {
		return strings.TrimRight(c.Storage.DownloadURL, "/")
	}
	return c.ToStorageConfig().DefaultDownloadURL()
}

// LoggingOptions returns the options for logging.New.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Format: logging.Format(strings.ToLower(c.Log.Format)),
	}
}
