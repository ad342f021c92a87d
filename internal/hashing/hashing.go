// Package hashing computes content digests and the content-addressed object keys
// that modpack files are stored under.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/mmyddd/modpack-uploader/internal/pool"
)

// MinHashLength is the shortest digest ContentKey accepts.
const MinHashLength = 13

// SHA256 returns the lowercase hex SHA-256 digest of r and the number of bytes read.
func SHA256(r io.Reader) (string, int64, error) {
	bufPtr := pool.GetCopyBuffer()
	defer pool.PutCopyBuffer(bufPtr)

	h := sha256.New()
	n, err := io.CopyBuffer(h, r, *bufPtr)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// File hashes the file at path inside fsys.
func File(fsys billy.Filesystem, path string) (string, int64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return SHA256(f)
}

// ContentKey maps a digest to its storage key: h[0]/h[1]/h[2:12]/h[12:].
func ContentKey(hash string) (string, error) {
	if len(hash) < MinHashLength {
		return "", fmt.Errorf("invalid file hash %q: need at least %d characters", hash, MinHashLength)
	}
	for i := 0; i < len(hash); i++ {
		if !isHex(hash[i]) {
			return "", fmt.Errorf("invalid file hash %q: non-hex character at %d", hash, i)
		}
	}

	return hash[0:1] + "/" + hash[1:2] + "/" + hash[2:12] + "/" + hash[12:], nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
