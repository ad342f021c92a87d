package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

// GenerateRandomData generates random bytes of the specified size.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return data
}

// WriteFiles creates each file (slash-separated path relative to root) with
// the given content on fsys.
func WriteFiles(t *testing.T, fsys billy.Filesystem, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := fsys.Join(root, filepath.FromSlash(name))
		require.NoError(t, util.WriteFile(fsys, p, []byte(content), 0o644), "write %s", p)
	}
}

// WriteOSFiles creates files under a fresh temporary directory and returns it.
func WriteOSFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// NewAPIError builds a smithy API error as returned by the S3 client.
func NewAPIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

// CreateGetObjectOutput creates a GetObject output carrying data.
func CreateGetObjectOutput(data []byte, contentEncoding string) *s3.GetObjectOutput {
	out := &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentEncoding != "" {
		out.ContentEncoding = aws.String(contentEncoding)
	}
	return out
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
