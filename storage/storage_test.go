package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

type stubProvider struct{ cfg Config }

func (s *stubProvider) Name() string   { return s.cfg.Type }
func (s *stubProvider) Bucket() string { return s.cfg.Bucket }
func (s *stubProvider) Put(context.Context, string, io.Reader, int64, PutOptions) error {
	return nil
}
func (s *stubProvider) Exists(context.Context, string) (bool, error) { return false, nil }
func (s *stubProvider) Get(context.Context, string) (*Object, error) { return nil, nil }
func (s *stubProvider) Close() error                                 { return nil }

func stubOpener(_ context.Context, cfg Config, _ *slog.Logger) (Provider, error) {
	return &stubProvider{cfg: cfg}, nil
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Register(TypeS3, stubOpener))
	require.NoError(t, f.Register(TypeCOS, stubOpener))

	assert.Error(t, f.Register("S3", stubOpener), "duplicate registration")
	assert.Error(t, f.Register("", stubOpener))
	assert.Error(t, f.Register("x", nil))
	assert.Equal(t, []string{"cos", "s3"}, f.Types())

	p, err := f.Open(t.Context(), Config{Type: " COS ", Bucket: "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cos", p.Name())

	_, err = f.Open(t.Context(), Config{Type: "ftp"}, nil)
	assert.ErrorIs(t, err, uperrors.ErrInvalidConfig)
	assert.ErrorContains(t, err, "available: cos, s3")
}

func TestFactory_OpenerError(t *testing.T) {
	f := NewFactory()
	boom := errors.New("boom")
	require.NoError(t, f.Register(TypeMinio, func(context.Context, Config, *slog.Logger) (Provider, error) {
		return nil, boom
	}))

	_, err := f.Open(t.Context(), Config{Type: TypeMinio}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestConfig_URLs(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantEndpoint string
		wantDownload string
	}{
		{
			name:         "cos",
			cfg:          Config{Type: TypeCOS, Region: "ap-shanghai", Bucket: "pack-1250000000"},
			wantEndpoint: "https://cos.ap-shanghai.myqcloud.com",
			wantDownload: "https://pack-1250000000.cos.ap-shanghai.myqcloud.com",
		},
		{
			name:         "aws",
			cfg:          Config{Type: TypeS3, Region: "eu-west-1", Bucket: "pack"},
			wantEndpoint: "",
			wantDownload: "https://pack.s3.eu-west-1.amazonaws.com",
		},
		{
			name:         "custom endpoint",
			cfg:          Config{Type: TypeMinio, Endpoint: "http://localhost:9000/", Bucket: "pack"},
			wantEndpoint: "http://localhost:9000",
			wantDownload: "http://localhost:9000/pack",
		},
		{
			name:         "bare endpoint host",
			cfg:          Config{Type: TypeMinio, Endpoint: "minio:9000", Bucket: "pack"},
			wantEndpoint: "https://minio:9000",
			wantDownload: "https://minio:9000/pack",
		},
		{
			name:         "no region",
			cfg:          Config{Type: TypeS3, Bucket: "pack"},
			wantDownload: "https://pack.s3.amazonaws.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEndpoint, tt.cfg.EndpointURL())
			assert.Equal(t, tt.wantDownload, tt.cfg.DefaultDownloadURL())
		})
	}
}
