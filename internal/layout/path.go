package layout

import (
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Fixed file names inside a variant directory.
const (
	MetadataFileName = "metadata.json"
	PromptExt        = ".md"
)

// Builder maps classifications to paths under a root directory.
type Builder struct {
	root   string
	scheme types.Scheme
}

// NewBuilder returns a Builder for root. The root does not need to exist.
func NewBuilder(root string, scheme types.Scheme) (*Builder, error) {
	if strings.TrimSpace(root) == "" {
		return nil, types.ErrRootRequired
	}
	s, err := types.ParseScheme(string(scheme))
	if err != nil {
		return nil, err
	}
	return &Builder{root: filepath.Clean(root), scheme: s}, nil
}

// Root returns the cleaned root directory.
func (b *Builder) Root() string { return b.root }

// Scheme returns the layout scheme.
func (b *Builder) Scheme() types.Scheme { return b.scheme }

// TypeDir returns root/kind/category/type. The classification must already
// be valid.
func (b *Builder) TypeDir(c types.Classification) string {
	return filepath.Join(b.root, c.Kind.String(), Normalize(c.Category), Normalize(c.Type))
}

// EntitySegments returns the segments below the type directory that lead to
// the entity directory: optional subtype, optional letter bucket, name.
func (b *Builder) EntitySegments(subtype, name string) []string {
	segs := make([]string, 0, 3)
	if strings.TrimSpace(subtype) != "" {
		segs = append(segs, Normalize(subtype))
	}
	if b.scheme == types.SchemeGenre {
		segs = append(segs, FirstLetter(name))
	}
	return append(segs, Normalize(name))
}

// EntityDir validates c and name and returns the entity directory.
func (b *Builder) EntityDir(c types.Classification, name string) (string, error) {
	if err := ValidateEntity(c, name); err != nil {
		return "", err
	}
	return b.entityDir(c, name), nil
}

func (b *Builder) entityDir(c types.Classification, name string) string {
	return filepath.Join(append([]string{b.TypeDir(c)}, b.EntitySegments(c.Subtype, name)...)...)
}

// VariantDir validates ref and returns the directory holding its files.
func (b *Builder) VariantDir(ref types.VariantRef) (string, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}
	return filepath.Join(b.entityDir(ref.Classification, ref.Name), Normalize(ref.Variant)), nil
}

// ImagePath returns the canonical file path for one image of a variant.
func (b *Builder) ImagePath(ref types.VariantRef, it types.ImageType) (string, error) {
	if err := ValidateImageType(it); err != nil {
		return "", err
	}
	dir, err := b.VariantDir(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, it.FileName()), nil
}

// MetadataPath returns the path of the variant's metadata sidecar.
func (b *Builder) MetadataPath(ref types.VariantRef) (string, error) {
	dir, err := b.VariantDir(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MetadataFileName), nil
}

// PromptPath returns the path of the prompt file for one image of a variant.
func (b *Builder) PromptPath(ref types.VariantRef, it types.ImageType) (string, error) {
	if err := ValidateImageType(it); err != nil {
		return "", err
	}
	dir, err := b.VariantDir(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, it.Stem()+PromptExt), nil
}

// Rel returns path relative to the root using forward slashes.
func (b *Builder) Rel(path string) (string, error) {
	rel, err := filepath.Rel(b.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
