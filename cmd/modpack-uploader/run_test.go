package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmyddd/modpack-uploader/config"
	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/internal/testutil"
)

const memoryConfig = `{
  "storage": {"provider": "memory", "bucketName": "packs"},
  "upload": {"concurrency": 2, "maxRetries": 0},
  "log": {"level": "error"}
}`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(t.Context(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_MissingConfigWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultPath)

	code, _, stderr := runCLI(t, "--config", path, "publish")

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "template")
	assert.FileExists(t, path)
}

func TestRun_UsageErrors(t *testing.T) {
	path := writeConfigFile(t, memoryConfig)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: []string{"--config", path}},
		{name: "unknown command", args: []string{"--config", path, "sync"}},
		{name: "upload without files", args: []string{"--config", path, "upload"}},
		{name: "publish with arguments", args: []string{"--config", path, "publish", "extra"}},
		{name: "unknown flag", args: []string{"--nope", "publish"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitConfig, code)
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "modpack-uploader [flags] publish")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `{"storage": {"provider": "cos", "bucketName": "packs"}}`)

	code, _, stderr := runCLI(t, "--config", path, "upload", "a.txt")

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "storage.secretId")
	assert.Contains(t, stderr, "storage.region")
}

func TestRun_UploadPartialFailureSucceeds(t *testing.T) {
	path := writeConfigFile(t, memoryConfig)
	dir := testutil.WriteOSFiles(t, map[string]string{
		"a.txt":      "alpha",
		"mods/b.jar": "bravo",
	})

	code, stdout, _ := runCLI(t, "--config", path, "--prefix", "uploads",
		"upload", filepath.Join(dir, "a.txt"), filepath.Join(dir, "missing.txt"), filepath.Join(dir, "mods", "b.jar"))

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "-> uploads/a.txt")
	assert.Contains(t, stdout, "-> uploads/b.jar")
	assert.Contains(t, stdout, "FAIL missing.txt")
	assert.Contains(t, stdout, "3 files: 2 uploaded, 0 skipped, 1 failed")
}

func TestRun_UploadAllFailed(t *testing.T) {
	path := writeConfigFile(t, memoryConfig)
	dir := t.TempDir()

	code, stdout, _ := runCLI(t, "--config", path,
		"upload", filepath.Join(dir, "x.txt"), filepath.Join(dir, "y.txt"))

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "2 files: 0 uploaded, 0 skipped, 2 failed")
}

func TestRun_PublishDryRun(t *testing.T) {
	source := testutil.WriteOSFiles(t, map[string]string{
		"mods/jei.jar":    "jar",
		"config/jei.toml": "a = 1",
	})
	path := writeConfigFile(t, `{
  "storage": {"provider": "cos", "secretId": "id", "secretKey": "key",
              "region": "ap-guangzhou", "bucketName": "packs-125", "projectId": "sky"},
  "log": {"level": "error"}
}`)

	code, stdout, stderr := runCLI(t, "--config", path, "--dry-run",
		"--source", source, "--version", "1.0.0", "publish")

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "2 files: 2 uploaded, 0 skipped, 0 failed")
	assert.Contains(t, stdout, "published 1.0.0")
	assert.Contains(t, stdout,
		"https://packs-125.cos.ap-guangzhou.myqcloud.com/stable/sky/versions/1.0.0/modpack.json")
	assert.Contains(t, stdout, "https://packs-125.cos.ap-guangzhou.myqcloud.com/stable/sky/meta.json")
}

func TestRun_PublishMissingSource(t *testing.T) {
	path := writeConfigFile(t, memoryConfig)

	code, _, _ := runCLI(t, "--config", path,
		"--project", "sky", "--version", "1.0.0", "--source", filepath.Join(t.TempDir(), "nope"), "publish")

	assert.Equal(t, exitFailed, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfig, exitCode(uperrors.NewConfigError("bad")))
	assert.Equal(t, exitFailed, exitCode(uperrors.NewError("publish", uperrors.ErrIncompleteUpload)))
	assert.Equal(t, exitFailed, exitCode(uperrors.NewError("publish", uperrors.ErrVersionExists)))
}

func TestParseCommand(t *testing.T) {
	mode, files, err := parseCommand([]string{"upload", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, config.ModeUpload, mode)
	assert.Equal(t, []string{"a", "b"}, files)

	mode, files, err = parseCommand([]string{"publish"})
	require.NoError(t, err)
	assert.Equal(t, config.ModePublish, mode)
	assert.Empty(t, files)
}
