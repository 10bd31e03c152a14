package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// SaveImage writes data as the image of type it for ref and returns the
// absolute path written. Missing directories are created; an existing file
// is replaced. Empty data is written as an empty file. Input is validated before any filesystem access.
func (s *Store) SaveImage(ctx context.Context, ref types.VariantRef, it types.ImageType, data []byte) (string, error) {
	path, err := s.paths.ImagePath(ref, it)
	if err != nil {
		return "", err
	}
	if err := s.write(ctx, path, data); err != nil {
		return "", err
	}
	s.log.Debug("saved image", "path", path, "image_type", it.String(), "bytes", len(data))
	return path, nil
}

// SaveMetadata writes jsonText verbatim to the variant's metadata.json and
// returns the absolute path written. The content is not parsed.
func (s *Store) SaveMetadata(ctx context.Context, ref types.VariantRef, jsonText string) (string, error) {
	path, err := s.paths.MetadataPath(ref)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(jsonText) == "" {
		return "", fmt.Errorf("metadata: %w", types.ErrBlankContent)
	}
	if err := s.write(ctx, path, []byte(jsonText)); err != nil {
		return "", err
	}
	s.log.Debug("saved metadata", "path", path, "bytes", len(jsonText))
	return path, nil
}

// SavePrompt writes the generation prompt for one image type of ref as
// "<stem>.md" next to the image.
func (s *Store) SavePrompt(ctx context.Context, ref types.VariantRef, it types.ImageType, prompt string) (string, error) {
	path, err := s.paths.PromptPath(ref, it)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt: %w", types.ErrBlankContent)
	}
	if err := s.write(ctx, path, []byte(prompt)); err != nil {
		return "", err
	}
	s.log.Debug("saved prompt", "path", path, "image_type", it.String())
	return path, nil
}

func (s *Store) write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic replaces path with data using the temp-file, fsync, rename
// pattern, so readers never see a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hoard-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
