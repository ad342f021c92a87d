// Package compress decides which modpack files are stored compressed and
// implements the zlib stream behind the "deflate" content encoding.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/mmyddd/modpack-uploader/internal/pool"
)

// ContentEncoding is the HTTP content encoding of compressed objects.
const ContentEncoding = "deflate"

var (
	compressible = []string{".json", ".txt", ".xml", ".toml", ".js", ".cfg", ".properties"}

	// already compressed formats; checked first
	incompressible = []string{".png", ".zip", ".jar"}
)

// ShouldCompress reports whether the file name has a text-like extension worth compressing.
func ShouldCompress(name string) bool {
	lower := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))

	for _, ext := range incompressible {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	for _, ext := range compressible {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Deflate compresses everything read from r at best compression and returns the
// compressed bytes. The slice is owned by the caller.
func Deflate(r io.Reader) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}

	bufPtr := pool.GetCopyBuffer()
	defer pool.PutCopyBuffer(bufPtr)

	if _, err := io.CopyBuffer(zw, r, *bufPtr); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}

	return bytes.Clone(buf.Bytes()), nil
}

// Inflate returns a reader that decompresses r. Closing it closes only the
// decompressor; the caller still owns r.
func Inflate(r io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create inflate reader: %w", err)
	}
	return zr, nil
}

// InflateBytes decompresses data in full.
func InflateBytes(data []byte) ([]byte, error) {
	zr, err := Inflate(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
