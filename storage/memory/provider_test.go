package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/storage"
)

func TestProvider_PutGetExists(t *testing.T) {
	p := New("pack-bucket")
	ctx := t.Context()

	assert.Equal(t, "memory", p.Name())
	assert.Equal(t, "pack-bucket", p.Bucket())

	ok, err := p.Exists(ctx, "a/b")
	require.NoError(t, err)
	assert.False(t, ok)

	err = p.Put(ctx, "a/b", strings.NewReader("data"), 4, storage.PutOptions{
		ContentType:     "text/plain",
		ContentEncoding: "deflate",
		Metadata:        map[string]string{"sha256": "abc"},
	})
	require.NoError(t, err)

	ok, err = p.Exists(ctx, "a/b")
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := p.Get(ctx, "a/b")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "deflate", obj.ContentEncoding)

	stored, ok := p.Object("a/b")
	require.True(t, ok)
	assert.Equal(t, "abc", stored.Metadata["sha256"])
	assert.Equal(t, []string{"a/b"}, p.Keys())
	assert.Equal(t, 1, p.PutCalls("a/b"))
}

func TestProvider_GetMissing(t *testing.T) {
	_, err := New("b").Get(t.Context(), "missing")
	assert.ErrorIs(t, err, uperrors.ErrObjectNotFound)
	assert.True(t, uperrors.IsObjectNotFound(err))
}

func TestProvider_PutValidation(t *testing.T) {
	p := New("b")

	err := p.Put(t.Context(), "", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrInvalidInput)

	err = p.Put(t.Context(), "k", strings.NewReader("xyz"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrInvalidInput)
	assert.Empty(t, p.Keys())
}

func TestProvider_FailPut(t *testing.T) {
	p := New("b")
	p.FailPut("k", uperrors.ErrConnection, uperrors.ErrTimeout)

	err := p.Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrConnection)

	err = p.Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.ErrorIs(t, err, uperrors.ErrTimeout)

	err = p.Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, p.PutCalls("k"))

	var e *uperrors.Error
	p.FailPut("k", uperrors.ErrAccessDenied)
	err = p.Put(t.Context(), "k", strings.NewReader("x"), 1, storage.PutOptions{})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "b", e.Bucket)
	assert.Equal(t, "k", e.Key)
}

func TestProvider_PutHook(t *testing.T) {
	p := New("b")
	boom := errors.New("boom")
	p.SetPutHook(func(_ context.Context, key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, p.Put(t.Context(), "bad", strings.NewReader(""), 0, storage.PutOptions{}), boom)
	assert.NoError(t, p.Put(t.Context(), "good", strings.NewReader(""), 0, storage.PutOptions{}))
}

func TestProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	p := New("b")

	assert.ErrorIs(t, p.Put(ctx, "k", strings.NewReader(""), 0, storage.PutOptions{}), context.Canceled)
	_, err := p.Exists(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_SeedAndClose(t *testing.T) {
	p := New("b")
	p.Seed("k", StoredObject{Data: []byte("v")})

	ok, err := p.Exists(t.Context(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, p.PutCalls("k"))

	require.NoError(t, p.Close())
	assert.Empty(t, p.Keys())
}

func TestFactory_OpenMemory(t *testing.T) {
	f := storage.NewFactory()
	require.NoError(t, f.Register(storage.TypeMemory, Open))

	p, err := f.Open(t.Context(), storage.Config{Type: "MEMORY", Bucket: "dry"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dry", p.Bucket())
}
