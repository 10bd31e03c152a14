package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

var (
	humanoids = types.Classification{
		Kind:     types.KindCreature,
		Category: "Monsters",
		Type:     "Humanoids",
		Subtype:  "Goblinoids",
	}
	sword = types.Classification{
		Kind:     types.KindObject,
		Category: "Weapons",
		Type:     "Melee",
	}
)

func newTestStore(t *testing.T, scheme types.Scheme) *Store {
	t.Helper()
	s, err := New(types.Config{Root: t.TempDir(), Scheme: scheme})
	require.NoError(t, err)
	return s
}

// writeFixture creates a file below the store root from slash-separated
// segments, bypassing the store.
func writeFixture(t *testing.T, s *Store, rel string, content string) string {
	t.Helper()
	path := filepath.Join(s.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// countFiles returns the number of regular files below root.
func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if os.IsNotExist(err) {
			return filepath.SkipDir
		}
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestNew(t *testing.T) {
	_, err := New(types.Config{Root: ""})
	assert.ErrorIs(t, err, types.ErrRootRequired)

	_, err = New(types.Config{Root: "/tmp/images", Scheme: "flat"})
	assert.ErrorIs(t, err, types.ErrUnknownScheme)

	missing := filepath.Join(t.TempDir(), "not", "yet")
	s, err := New(types.Config{Root: missing})
	require.NoError(t, err)
	assert.Equal(t, missing, s.Root())
	assert.Equal(t, types.SchemeKind, s.Scheme())
	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "construction must not create the root")
}

func TestNewMakesRootAbsolute(t *testing.T) {
	s, err := New(types.Config{Root: "relative/images"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Root()))
}

func TestSaveImageRoundTrip(t *testing.T) {
	for _, scheme := range []types.Scheme{types.SchemeKind, types.SchemeGenre} {
		t.Run(string(scheme), func(t *testing.T) {
			s := newTestStore(t, scheme)
			ctx := context.Background()
			data := []byte("\x89PNG fake image")

			for _, it := range types.ImageTypes() {
				ref := types.NewVariantRef(humanoids, "Goblin", 0)
				path, err := s.SaveImage(ctx, ref, it, data)
				require.NoError(t, err)
				assert.True(t, filepath.IsAbs(path))
				assert.Equal(t, it.FileName(), filepath.Base(path))

				got, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, data, got)

				existing, err := s.ExistingImageTypes(ctx, ref)
				require.NoError(t, err)
				assert.True(t, existing.Has(it), it.String())
			}
		})
	}
}

func TestSaveImageLayout(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	path, err := s.SaveImage(context.Background(), types.NewVariantRef(humanoids, "Goblin", 1), types.ImageToken, []byte("x"))
	require.NoError(t, err)

	rel, err := filepath.Rel(s.Root(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("creature/monsters/humanoids/goblinoids/goblin/1/top-down.png"), rel)
}

func TestSaveImageGenreLayout(t *testing.T) {
	s := newTestStore(t, types.SchemeGenre)
	ref := types.VariantRef{Classification: humanoids, Name: "Zombie", Variant: "male-warrior"}
	path, err := s.SaveImage(context.Background(), ref, types.ImagePortrait, []byte("x"))
	require.NoError(t, err)

	rel, err := filepath.Rel(s.Root(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("creature/monsters/humanoids/goblinoids/z/zombie/male-warrior/portrait.png"), rel)
}

func TestSaveImageOmitsBlankSubtype(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	path, err := s.SaveImage(context.Background(), types.NewVariantRef(sword, "Longsword", 0), types.ImageToken, []byte("x"))
	require.NoError(t, err)

	rel, err := filepath.Rel(s.Root(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("object/weapons/melee/longsword/0/top-down.png"), rel)
}

func TestSaveImageOverwrites(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	_, err := s.SaveImage(ctx, ref, types.ImageToken, []byte("first"))
	require.NoError(t, err)
	path, err := s.SaveImage(ctx, ref, types.ImageToken, []byte("second"))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSaveRejectsInvalidInputWithoutWriting(t *testing.T) {
	valid := types.NewVariantRef(humanoids, "goblin", 0)

	tests := []struct {
		name    string
		ref     func() types.VariantRef
		it      types.ImageType
		wantErr error
	}{
		{
			name:    "traversal in category",
			ref:     func() types.VariantRef { r := valid; r.Category = "../outside"; return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnsafeSegment,
		},
		{
			name:    "traversal in type",
			ref:     func() types.VariantRef { r := valid; r.Type = ".."; return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnsafeSegment,
		},
		{
			name:    "traversal in subtype",
			ref:     func() types.VariantRef { r := valid; r.Subtype = "a/../../b"; return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnsafeSegment,
		},
		{
			name:    "traversal in name",
			ref:     func() types.VariantRef { r := valid; r.Name = "..goblin"; return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnsafeSegment,
		},
		{
			name:    "traversal in variant",
			ref:     func() types.VariantRef { r := valid; r.Variant = "../0"; return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnsafeSegment,
		},
		{
			name:    "empty category",
			ref:     func() types.VariantRef { r := valid; r.Category = ""; return r },
			it:      types.ImageToken,
			wantErr: types.ErrBlankSegment,
		},
		{
			name:    "whitespace name",
			ref:     func() types.VariantRef { r := valid; r.Name = "   "; return r },
			it:      types.ImageToken,
			wantErr: types.ErrBlankSegment,
		},
		{
			name:    "unknown kind",
			ref:     func() types.VariantRef { r := valid; r.Kind = types.Kind(99); return r },
			it:      types.ImageToken,
			wantErr: types.ErrUnknownKind,
		},
		{
			name:    "unknown image type",
			ref:     func() types.VariantRef { return valid },
			it:      types.ImageType(42),
			wantErr: types.ErrUnknownImageType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			root := filepath.Join(parent, "images")
			s, err := New(types.Config{Root: root})
			require.NoError(t, err)
			ctx := context.Background()

			_, err = s.SaveImage(ctx, tt.ref(), tt.it, []byte("data"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrInvalidInput)

			if tt.it.Valid() {
				_, err = s.SaveMetadata(ctx, tt.ref(), `{"prompt":"x"}`)
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Zero(t, countFiles(t, parent), "no file may be written")
			_, err = os.Stat(root)
			assert.True(t, os.IsNotExist(err), "no directory may be created")
		})
	}
}

func TestSaveRejectsBlankContent(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	_, err := s.SaveMetadata(ctx, ref, " \n")
	assert.ErrorIs(t, err, types.ErrBlankContent)
	_, err = s.SavePrompt(ctx, ref, types.ImageToken, "")
	assert.ErrorIs(t, err, types.ErrBlankContent)

	assert.Zero(t, countFiles(t, s.Root()))
}

func TestSaveImageAcceptsEmptyData(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(sword, "dagger", 0)

	path, err := s.SaveImage(ctx, ref, types.ImageToken, []byte{})
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	existing, err := s.ExistingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.True(t, existing.Has(types.ImageToken))
}

func TestSaveHonorsCancellation(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveImage(ctx, types.NewVariantRef(humanoids, "goblin", 0), types.ImageToken, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countFiles(t, s.Root()))
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	_, ok, err := s.LoadMetadata(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok, "missing metadata is not an error")

	const doc = `{"prompt": "a sneaky goblin", "seed": 42}`
	path, err := s.SaveMetadata(ctx, ref, doc)
	require.NoError(t, err)
	assert.Equal(t, "metadata.json", filepath.Base(path))

	got, ok, err := s.LoadMetadata(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, doc, got)
}

func TestMetadataIsOpaque(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	const notJSON = "this is { not json"
	_, err := s.SaveMetadata(ctx, ref, notJSON)
	require.NoError(t, err)

	got, ok, err := s.LoadMetadata(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, notJSON, got)
}

func TestPromptRoundTrip(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	path, err := s.SavePrompt(ctx, ref, types.ImagePortrait, "# Portrait\nA goblin in profile.")
	require.NoError(t, err)
	assert.Equal(t, "portrait.md", filepath.Base(path))

	got, ok, err := s.LoadPrompt(ctx, ref, types.ImagePortrait)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, got, "goblin in profile")

	_, ok, err = s.LoadPrompt(ctx, ref, types.ImageToken)
	require.NoError(t, err)
	assert.False(t, ok)

	existing, err := s.ExistingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, existing.Len(), "prompt files are not images")
}

func TestExistingImageTypes(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	existing, err := s.ExistingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, existing.Len(), "missing variant directory yields an empty set")

	for _, it := range []types.ImageType{types.ImageToken, types.ImageMiniature, types.ImagePortrait} {
		_, err := s.SaveImage(ctx, ref, it, []byte("x"))
		require.NoError(t, err)
	}
	writeFixture(t, s, "creature/monsters/humanoids/goblinoids/goblin/0/notes.txt", "stray")

	existing, err = s.ExistingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageType{types.ImageToken, types.ImagePortrait, types.ImageMiniature}, existing.Types())

	other := ref
	other.Variant = "1"
	existing, err = s.ExistingImageTypes(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, existing.Len())
}

func TestExistingImageTypesIgnoresAliasAndNumberedFiles(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(sword, "dagger", 0)
	writeFixture(t, s, "object/weapons/melee/dagger/0/token.png", "alias")
	writeFixture(t, s, "object/weapons/melee/dagger/0/portrait_2.png", "pose")

	existing, err := s.ExistingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, existing.Len())

	_, ok, err := s.ImagePath(ctx, ref, types.ImageToken)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := s.MissingImageTypes(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageType{types.ImageToken}, missing)
}

func TestExistingImageTypesRejectsTraversal(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ref := types.NewVariantRef(humanoids, "goblin", 0)
	ref.Variant = ".."
	_, err := s.ExistingImageTypes(context.Background(), ref)
	assert.ErrorIs(t, err, types.ErrUnsafeSegment)
}

func TestMissingImageTypesFollowsKindPolicy(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()

	creature := types.NewVariantRef(humanoids, "goblin", 0)
	missing, err := s.MissingImageTypes(ctx, creature)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageType{types.ImageToken, types.ImagePortrait, types.ImageCloseUp}, missing)

	has, err := s.HasImages(ctx, creature)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.SaveImage(ctx, creature, types.ImagePortrait, []byte("x"))
	require.NoError(t, err)
	missing, err = s.MissingImageTypes(ctx, creature)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageType{types.ImageToken, types.ImageCloseUp}, missing)

	has, err = s.HasImages(ctx, creature)
	require.NoError(t, err)
	assert.True(t, has)

	object := types.NewVariantRef(sword, "longsword", 0)
	_, err = s.SaveImage(ctx, object, types.ImageToken, []byte("x"))
	require.NoError(t, err)
	missing, err = s.MissingImageTypes(ctx, object)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestImagePath(t *testing.T) {
	s := newTestStore(t, types.SchemeKind)
	ctx := context.Background()
	ref := types.NewVariantRef(humanoids, "goblin", 0)

	path, ok, err := s.ImagePath(ctx, ref, types.ImageToken)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "top-down.png", filepath.Base(path))

	saved, err := s.SaveImage(ctx, ref, types.ImageToken, []byte("x"))
	require.NoError(t, err)
	path, ok, err = s.ImagePath(ctx, ref, types.ImageToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saved, path)

	dir, err := s.VariantDir(ref)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(saved), dir)
}
