package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

// Opener constructs a provider from configuration.
type Opener func(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error)

// Factory maps provider types to openers.
type Factory struct {
	openers map[string]Opener

	// mu protects concurrent access to openers.
	mu sync.RWMutex
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		openers: make(map[string]Opener),
	}
}

// Register adds an opener for a provider type.
// It returns an error if the type is empty or already registered.
func (f *Factory) Register(typ string, open Opener) error {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return fmt.Errorf("provider type cannot be empty")
	}
	if open == nil {
		return fmt.Errorf("opener cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.openers[typ]; exists {
		return fmt.Errorf("provider type %q already registered", typ)
	}
	f.openers[typ] = open
	return nil
}

// Types returns the registered provider types, sorted.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.openers))
	for typ := range f.openers {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

// Open constructs the provider selected by cfg.Type.
// An unknown type is a configuration error.
func (f *Factory) Open(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))

	f.mu.RLock()
	open, ok := f.openers[typ]
	f.mu.RUnlock()

	if !ok {
		return nil, uperrors.NewConfigError(fmt.Sprintf(
			"unknown storage provider %q (available: %s)", cfg.Type, strings.Join(f.Types(), ", ")))
	}

	cfg.Type = typ
	provider, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", typ, err)
	}
	return provider, nil
}
