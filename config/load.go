package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

const (
	// EnvPrefix prefixes every environment override, e.g. MUP_STORAGE_SECRETKEY.
	EnvPrefix = "MUP"

	// DefaultEnvFile is loaded into the environment before the config is read.
	DefaultEnvFile = ".env"

	// library names contain dots, so viper must split keys on something else
	keyDelimiter = "::"
)

// ErrTemplateCreated is returned, wrapped in a config error, after a missing
// config file was replaced by an empty template.
var ErrTemplateCreated = errors.New("config template created")

// Options configures Load.
type Options struct {
	// Path is the JSON config file. Defaults to DefaultPath.
	Path string

	// EnvFile is a dotenv file loaded before reading the environment.
	// Defaults to DefaultEnvFile. A missing file is ignored.
	EnvFile string

	// Flags, when set, override the file and the environment for every flag
	// registered by RegisterFlags that was given on the command line.
	Flags *pflag.FlagSet
}

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"source":      "sourceDir",
	"version":     "versionName",
	"project":     "storage.projectId",
	"prefix":      "upload.prefix",
	"concurrency": "upload.concurrency",
	"retries":     "upload.maxRetries",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// RegisterFlags defines the flags that override config values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("source", "", "source directory of the modpack (sourceDir)")
	fs.String("version", "", "version name to publish (versionName)")
	fs.String("project", "", "project id (storage.projectId)")
	fs.String("prefix", "", "key prefix for plain uploads (upload.prefix)")
	fs.Int("concurrency", 0, "number of parallel uploads (upload.concurrency)")
	fs.Int("retries", 0, "retries per file after the first attempt (upload.maxRetries)")
	fs.String("log-level", "", "log level: debug, info, warn or error (log.level)")
	fs.String("log-format", "", "log format: text or json (log.format)")
}

// Load reads the configuration. When the config file does not exist, an empty
// template is written in its place and an error wrapping ErrTemplateCreated
// is returned. The result is not validated; call Validate.
func Load(opts Options) (*Config, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setDefaults(v)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, templateCreated(path)
		}
		return nil, uperrors.NewConfigError(fmt.Sprintf("failed to read %s: %v", path, err))
	}

	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, uperrors.NewConfigError(fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	libraries, err := decodeLibraries(data)
	if err != nil {
		return nil, uperrors.NewConfigError(fmt.Sprintf("failed to decode libraries in %s: %v", path, err))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(viperKey(key), flag); err != nil {
				return nil, uperrors.NewConfigError(fmt.Sprintf("failed to bind flag --%s: %v", name, err))
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, uperrors.NewConfigError(fmt.Sprintf("failed to decode %s: %v", path, err))
	}
	// a file listing its own libraries replaces the defaults instead of merging
	cfg.Libraries = libraries
	if cfg.Libraries == nil {
		cfg.Libraries = Default().Libraries
	}
	return &cfg, nil
}

// decodeLibraries reads the libraries object as written. viper lowercases
// map keys, which would rename net.minecraftForge and friends.
func decodeLibraries(data []byte) (map[string]string, error) {
	var doc struct {
		Libraries map[string]string `json:"libraries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Libraries, nil
}

// WriteTemplate writes a config file with every key present and empty
// credentials. Parent directories are created as needed.
func WriteTemplate(path string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// holds credentials once filled in
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func templateCreated(path string) error {
	if err := WriteTemplate(path); err != nil {
		return uperrors.NewConfigError(fmt.Sprintf("config file %s not found and template could not be written: %v", path, err))
	}
	return &uperrors.Error{
		Op:   "config",
		Key:  path,
		Code: uperrors.CodeInvalidConfig,
		Err: fmt.Errorf("%w: %w: fill in %s and run again",
			uperrors.ErrInvalidConfig, ErrTemplateCreated, path),
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return uperrors.NewConfigError(fmt.Sprintf("failed to load %s: %v", path, err))
	}
	return nil
}

// setDefaults registers every key so that environment overrides apply to
// keys missing from the file.
func setDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]any{
		"storage.provider":           d.Storage.Provider,
		"storage.secretId":           "",
		"storage.secretKey":          "",
		"storage.region":             "",
		"storage.bucketName":         "",
		"storage.endpoint":           "",
		"storage.downloadUrl":        "",
		"storage.projectId":          "",
		"storage.forcePathStyle":     false,
		"storage.multipartThreshold": int64(0),
		"sourceDir":                  "",
		"sourceServerDir":            "",
		"sourceClientDir":            "",
		"versionName":                "",
		"upload.concurrency":         d.Upload.Concurrency,
		"upload.maxRetries":          d.Upload.MaxRetries,
		"upload.prefix":              "",
		"upload.include":             d.Upload.Include,
		"upload.exclude":             d.Upload.Exclude,
		"log.level":                  d.Log.Level,
		"log.format":                 d.Log.Format,
	}
	for key, value := range defaults {
		v.SetDefault(viperKey(key), value)
	}
}

func viperKey(key string) string {
	return strings.ReplaceAll(key, ".", keyDelimiter)
}
