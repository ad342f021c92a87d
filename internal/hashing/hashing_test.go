package hashing

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("hello world")
const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestSHA256(t *testing.T) {
	digest, n, err := SHA256(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, digest)
	assert.Equal(t, int64(11), n)
}

func TestFile(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/pack/mods/a.txt", []byte("hello world"), 0o644))

	digest, n, err := File(fsys, "/pack/mods/a.txt")
	require.NoError(t, err)
	assert.Equal(t, helloDigest, digest)
	assert.Equal(t, int64(11), n)

	_, _, err = File(fsys, "/pack/missing.txt")
	assert.Error(t, err)
}

func TestContentKey(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		want    string
		wantErr bool
	}{
		{
			name: "full digest",
			hash: helloDigest,
			want: "b/9/4d27b9934d/3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			name: "minimum length",
			hash: "0123456789abc",
			want: "0/1/23456789ab/c",
		},
		{
			name:    "too short",
			hash:    "0123456789ab",
			wantErr: true,
		},
		{
			name:    "not hex",
			hash:    "0123456789abz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContentKey(tt.hash)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
