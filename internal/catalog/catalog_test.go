package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/hoard/internal/store"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

func newFixture(t *testing.T) (*store.Store, *Catalog) {
	t.Helper()
	s, err := store.New(types.Config{Root: filepath.Join(t.TempDir(), "images")})
	require.NoError(t, err)

	ctx := context.Background()
	goblins := types.Classification{Kind: types.KindCreature, Category: "Monsters", Type: "Humanoids", Subtype: "Goblinoids"}
	dragons := types.Classification{Kind: types.KindCreature, Category: "Monsters", Type: "Dragons"}
	weapons := types.Classification{Kind: types.KindObject, Category: "Weapons", Type: "Melee"}

	save := func(c types.Classification, name string, variant int, its ...types.ImageType) {
		for _, it := range its {
			_, err := s.SaveImage(ctx, types.NewVariantRef(c, name, variant), it, []byte("x"))
			require.NoError(t, err)
		}
	}
	save(goblins, "Goblin", 0, types.ImageToken, types.ImagePortrait, types.ImageCloseUp)
	save(goblins, "Goblin", 1, types.ImageToken)
	save(goblins, "Hobgoblin", 0, types.ImageToken)
	save(dragons, "Red Dragon", 0, types.ImageToken, types.ImagePortrait)
	save(weapons, "Longsword", 0, types.ImageToken)
	_, err = s.SaveMetadata(ctx, types.NewVariantRef(goblins, "Goblin", 0), `{"seed":7}`)
	require.NoError(t, err)

	c, err := Open(filepath.Join(t.TempDir(), "data", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return s, c
}

func names(list []types.EntitySummary) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.Name)
	}
	return out
}

func TestOpenRejectsBlankPath(t *testing.T) {
	_, err := Open(" ")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestStatsBeforeRebuild(t *testing.T) {
	_, c := newFixture(t)
	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
	assert.True(t, stats.IndexedAt.IsZero())
	assert.Empty(t, stats.Root)
}

func TestRebuild(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()

	stats, err := c.Rebuild(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Entities)
	assert.Equal(t, 5, stats.Variants)
	assert.Equal(t, 8, stats.Poses)
	assert.Equal(t, s.Root(), stats.Root)

	stored, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Entities, stored.Entities)
	assert.Equal(t, stats.Variants, stored.Variants)
	assert.Equal(t, stats.Poses, stored.Poses)
	assert.Equal(t, s.Root(), stored.Root)
	assert.Equal(t, types.SchemeKind, stored.Scheme)
	assert.False(t, stored.IndexedAt.IsZero())

	// A second rebuild replaces rather than appends.
	again, err := c.Rebuild(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Entities)
	stored, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Entities)
	assert.Equal(t, 8, stored.Poses)
}

func TestSearch(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)

	tests := []struct {
		name   string
		term   string
		filter types.Filter
		limit  int
		want   []string
	}{
		{name: "substring", term: "goblin", want: []string{"goblin", "hobgoblin"}},
		{name: "case-insensitive", term: "GOB", want: []string{"goblin", "hobgoblin"}},
		{name: "space matches underscore", term: "red dragon", want: []string{"red_dragon"}},
		{name: "empty term lists all", term: "", want: []string{"goblin", "hobgoblin", "longsword", "red_dragon"}},
		{name: "kind filter", term: "", filter: types.Filter{Kind: types.KindObject}, want: []string{"longsword"}},
		{name: "subtype filter", term: "", filter: types.Filter{Subtype: "Goblinoids"}, want: []string{"goblin", "hobgoblin"}},
		{name: "type filter", term: "o", filter: types.Filter{Type: "dragons"}, want: []string{"red_dragon"}},
		{name: "limit", term: "goblin", limit: 1, want: []string{"goblin"}},
		{name: "no match", term: "beholder", want: []string{}},
		{name: "like wildcards are literal", term: "%", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Search(ctx, tt.term, tt.filter, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestSearchReturnsSummaries(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)

	got, err := c.Search(ctx, "goblin", types.Filter{}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, types.KindCreature, e.Kind)
	assert.Equal(t, "monsters", e.Category)
	assert.Equal(t, "humanoids", e.Type)
	assert.Equal(t, "goblinoids", e.Subtype)
	assert.Equal(t, 2, e.VariantCount)
	assert.Equal(t, 4, e.TotalPoseCount)
}

func TestPosesByImageType(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)

	counts, err := c.PosesByImageType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.ImageType]int{
		types.ImageToken:    5,
		types.ImagePortrait: 2,
		types.ImageCloseUp:  1,
	}, counts)
}

type failingWalker struct {
	*store.Store
	err error
}

func (w failingWalker) Walk(ctx context.Context, f types.Filter, fn func(types.EntityInfo) error) error {
	return w.err
}

func TestRebuildFailureKeepsPreviousContent(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	_, err = c.Rebuild(ctx, failingWalker{Store: s, err: boom})
	assert.ErrorIs(t, err, boom)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Entities)
}

func TestClosedCatalog(t *testing.T) {
	s, c := newFixture(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Rebuild(context.Background(), s)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Search(context.Background(), "goblin", types.Filter{}, 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Stats(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReopenKeepsIndex(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)
	path := c.Path()
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Search(ctx, "longsword", types.Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"longsword"}, names(got))
}

func TestCorruptRowsAreReported(t *testing.T) {
	s, c := newFixture(t)
	ctx := context.Background()
	_, err := c.Rebuild(ctx, s)
	require.NoError(t, err)

	_, err = c.db.ExecContext(ctx, "UPDATE catalog_info SET value = 'yesterday' WHERE key = ?", infoIndexedAt)
	require.NoError(t, err)
	_, err = c.Stats(ctx)
	assert.ErrorContains(t, err, infoIndexedAt)

	_, err = c.db.ExecContext(ctx, "UPDATE entities SET kind = 'vehicle' WHERE name = 'longsword'")
	require.NoError(t, err)
	_, err = c.Search(ctx, "longsword", types.Filter{}, 0)
	assert.ErrorIs(t, err, types.ErrUnknownKind)
}
