package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// VariantDir returns the directory that holds ref's files. It does not
// check that the directory exists.
func (s *Store) VariantDir(ref types.VariantRef) (string, error) {
	return s.paths.VariantDir(ref)
}

// ExistingImageTypes returns the image types whose canonical file exists in
// ref's variant directory. Alias and numbered pose files do not count. A
// missing directory yields an empty set.
func (s *Store) ExistingImageTypes(ctx context.Context, ref types.VariantRef) (types.ImageTypeSet, error) {
	dir, err := s.paths.VariantDir(ref)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var set types.ImageTypeSet
	for _, it := range types.ImageTypes() {
		ok, err := fileExists(filepath.Join(dir, it.FileName()))
		if err != nil {
			return 0, err
		}
		if ok {
			set = set.Add(it)
		}
	}
	return set, nil
}

// MissingImageTypes returns the image types the generation workflow expects
// for ref's kind that do not exist yet, in vocabulary order.
func (s *Store) MissingImageTypes(ctx context.Context, ref types.VariantRef) ([]types.ImageType, error) {
	existing, err := s.ExistingImageTypes(ctx, ref)
	if err != nil {
		return nil, err
	}
	var missing []types.ImageType
	for _, it := range ref.Kind.ImageTypes() {
		if !existing.Has(it) {
			missing = append(missing, it)
		}
	}
	return missing, nil
}

// HasImages reports whether any of the image types expected for ref's kind
// exists.
func (s *Store) HasImages(ctx context.Context, ref types.VariantRef) (bool, error) {
	existing, err := s.ExistingImageTypes(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, it := range ref.Kind.ImageTypes() {
		if existing.Has(it) {
			return true, nil
		}
	}
	return false, nil
}

// ImagePath returns the canonical path of ref's image of type it and whether
// that file exists.
func (s *Store) ImagePath(ctx context.Context, ref types.VariantRef, it types.ImageType) (string, bool, error) {
	path, err := s.paths.ImagePath(ref, it)
	if err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	ok, err := fileExists(path)
	if err != nil {
		return "", false, err
	}
	return path, ok, nil
}

// LoadMetadata returns the contents of ref's metadata.json. The boolean is
// false when the file does not exist.
func (s *Store) LoadMetadata(ctx context.Context, ref types.VariantRef) (string, bool, error) {
	path, err := s.paths.MetadataPath(ref)
	if err != nil {
		return "", false, err
	}
	return readOptional(ctx, path)
}

// LoadPrompt returns the prompt saved for ref's image of type it. The
// boolean is false when no prompt was saved.
func (s *Store) LoadPrompt(ctx context.Context, ref types.VariantRef, it types.ImageType) (string, bool, error) {
	path, err := s.paths.PromptPath(ref, it)
	if err != nil {
		return "", false, err
	}
	return readOptional(ctx, path)
}

func readOptional(ctx context.Context, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), true, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}
