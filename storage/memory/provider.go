// Package memory provides an in-memory storage provider for tests and dry runs.
// It implements storage.Provider with thread-safe operations and supports
// injecting upload failures.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
	"github.com/mmyddd/modpack-uploader/storage"
)

var _ storage.Provider = (*Provider)(nil)

// StoredObject is an object held by the provider.
type StoredObject struct {
	Data            []byte
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// PutHook is called at the start of every Put. A non-nil error fails the Put.
type PutHook func(ctx context.Context, key string) error

// Provider stores objects in a map keyed by object key.
type Provider struct {
	bucket string

	// objects holds the stored objects keyed by object key
	objects map[string]StoredObject

	// putErrs holds queued failures served to consecutive Puts of a key
	putErrs map[string][]error

	putCalls map[string]int
	hook     PutHook

	// mu protects all fields above
	mu sync.RWMutex
}

// New creates an empty provider for bucket.
func New(bucket string) *Provider {
	return &Provider{
		bucket:   bucket,
		objects:  make(map[string]StoredObject),
		putErrs:  make(map[string][]error),
		putCalls: make(map[string]int),
	}
}

// Open is a storage.Opener for the memory provider.
//
//nolint:ireturn // matches storage.Opener.
func Open(_ context.Context, cfg storage.Config, _ *slog.Logger) (storage.Provider, error) {
	return New(cfg.Bucket), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return storage.TypeMemory
}

// Bucket returns the bucket name.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Put stores the body under key.
func (p *Provider) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	select {
	case <-ctx.Done():
		return uperrors.NewObjectError("put", p.bucket, key, ctx.Err())
	default:
	}

	if key == "" {
		return uperrors.NewObjectError("put", p.bucket, key, fmt.Errorf("%w: empty key", uperrors.ErrInvalidInput))
	}

	p.mu.Lock()
	p.putCalls[key]++
	hook := p.hook
	var queued error
	if errs := p.putErrs[key]; len(errs) > 0 {
		queued = errs[0]
		p.putErrs[key] = errs[1:]
	}
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, key); err != nil {
			return uperrors.NewObjectError("put", p.bucket, key, err)
		}
	}
	if queued != nil {
		return uperrors.NewObjectError("put", p.bucket, key, queued)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return uperrors.NewObjectError("put", p.bucket, key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return uperrors.NewObjectError("put", p.bucket, key,
			fmt.Errorf("%w: read %d bytes, expected %d", uperrors.ErrInvalidInput, len(data), size))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = StoredObject{
		Data:            data,
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		Metadata:        maps.Clone(opts.Metadata),
	}
	return nil
}

// Exists reports whether key is stored.
func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, uperrors.NewObjectError("exists", p.bucket, key, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.objects[key]
	return ok, nil
}

// Get opens the object stored under key.
func (p *Provider) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, uperrors.NewObjectError("get", p.bucket, key, err)
	}

	p.mu.RLock()
	obj, ok := p.objects[key]
	p.mu.RUnlock()

	if !ok {
		return nil, uperrors.NewObjectError("get", p.bucket, key, uperrors.ErrObjectNotFound)
	}

	return &storage.Object{
		Body:            io.NopCloser(bytes.NewReader(obj.Data)),
		Size:            int64(len(obj.Data)),
		ContentType:     obj.ContentType,
		ContentEncoding: obj.ContentEncoding,
	}, nil
}

// Close clears all stored objects.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.objects)
	return nil
}

// FailPut queues errors returned by the next Puts of key, one per call.
func (p *Provider) FailPut(key string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.putErrs[key] = append(p.putErrs[key], errs...)
}

// SetPutHook installs a hook run at the start of every Put.
func (p *Provider) SetPutHook(hook PutHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = hook
}

// Seed stores an object directly, bypassing hooks and queued failures.
func (p *Provider) Seed(key string, obj StoredObject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = obj
}

// Object returns a copy of the object stored under key.
func (p *Provider) Object(key string) (StoredObject, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	obj, ok := p.objects[key]
	if ok {
		obj.Data = bytes.Clone(obj.Data)
		obj.Metadata = maps.Clone(obj.Metadata)
	}
	return obj, ok
}

// Keys returns the stored keys, sorted.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.objects))
}

// PutCalls returns how many times Put was called for key.
func (p *Provider) PutCalls(key string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.putCalls[key]
}
