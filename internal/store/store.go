// Package store implements the hierarchical image store. The filesystem is
// the only source of truth: every read walks the tree again, and the Store
// keeps no state between calls beyond its configuration.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/mesh-intelligence/hoard/internal/layout"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Store reads and writes reference images under a root directory.
// A Store is safe for concurrent use; concurrent writers to the same
// variant race with last-writer-wins semantics.
type Store struct {
	paths *layout.Builder
	log   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Store for cfg. The root directory does not need to exist;
// writes create it and reads treat it as empty.
func New(cfg types.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	b, err := layout.NewBuilder(root, cfg.Scheme)
	if err != nil {
		return nil, err
	}
	s := &Store{
		paths: b,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the root directory.
func (s *Store) Root() string { return s.paths.Root() }

// Scheme returns the directory layout scheme.
func (s *Store) Scheme() types.Scheme { return s.paths.Scheme() }

// Paths exposes the path builder used by the store.
func (s *Store) Paths() *layout.Builder { return s.paths }
