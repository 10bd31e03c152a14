// Package hoard provides the public API for opening an image store.
// It exposes the factory function while keeping implementation details
// internal.
package hoard

import (
	"log/slog"

	"github.com/mesh-intelligence/hoard/internal/store"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Version is the hoard release version.
const Version = "0.3.0"

// Store is the filesystem image store returned by Open.
type Store = store.Store

// Open validates cfg and returns a store rooted at cfg.Root. The root need
// not exist yet; it is created on the first save. A nil log discards output.
//
// Example:
//
//	s, err := hoard.Open(types.Config{
//	    Root:   ".hoard-images",
//	    Scheme: types.SchemeKind,
//	}, nil)
//	path, err := s.SaveImage(ctx, ref, types.ImagePortrait, png)
func Open(cfg types.Config, log *slog.Logger) (*Store, error) {
	return store.New(cfg, store.WithLogger(log))
}
