// Package catalog maintains a SQLite index of the image tree for fast name
// search. The tree on disk stays the source of truth: the catalog is rebuilt
// from a walk and may be deleted at any time.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/hoard/internal/layout"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// ErrClosed is returned by operations on a closed catalog.
var ErrClosed = errors.New("catalog is closed")

// Walker is the part of the store the catalog indexes from.
type Walker interface {
	Root() string
	Scheme() types.Scheme
	Walk(ctx context.Context, f types.Filter, fn func(types.EntityInfo) error) error
}

// Catalog is a SQLite index over one image root.
type Catalog struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Stats describes the indexed content.
type Stats struct {
	Root      string       `json:"root" yaml:"root"`
	Scheme    types.Scheme `json:"scheme" yaml:"scheme"`
	Entities  int          `json:"entities" yaml:"entities"`
	Variants  int          `json:"variants" yaml:"variants"`
	Poses     int          `json:"poses" yaml:"poses"`
	IndexedAt time.Time    `json:"indexed_at" yaml:"indexed_at"`
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for rebuild progress.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// Open opens or creates the catalog database at path, creating its parent
// directory if needed.
func Open(path string, opts ...Option) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog path: %w", types.ErrBlankSegment)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	// A single connection serializes writers and keeps the pragma in force.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	c := &Catalog{
		db:   db,
		path: path,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// Close releases the database. Close is idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Rebuild replaces the catalog content with a fresh walk of w. The walk runs
// inside one transaction, so a failed rebuild leaves the previous content.
func (c *Catalog) Rebuild(ctx context.Context, w Walker) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return Stats{}, ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"poses", "variants", "entities", "catalog_info"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return Stats{}, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	stats := Stats{Root: w.Root(), Scheme: w.Scheme(), IndexedAt: time.Now().UTC()}
	err = w.Walk(ctx, types.Filter{}, func(info types.EntityInfo) error {
		if err := insertEntity(ctx, tx, info); err != nil {
			return err
		}
		stats.Entities++
		stats.Variants += len(info.Variants)
		stats.Poses += info.PoseCount()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("indexing %s: %w", w.Root(), err)
	}

	info := map[string]string{
		infoRoot:      stats.Root,
		infoScheme:    string(stats.Scheme),
		infoIndexedAt: stats.IndexedAt.Format(time.RFC3339Nano),
	}
	for k, v := range info {
		if _, err := tx.ExecContext(ctx, "INSERT INTO catalog_info (key, value) VALUES (?, ?)", k, v); err != nil {
			return Stats{}, fmt.Errorf("writing catalog info: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("committing rebuild: %w", err)
	}

	c.log.Info("catalog rebuilt",
		"root", stats.Root,
		"entities", stats.Entities,
		"variants", stats.Variants,
		"poses", stats.Poses)
	return stats, nil
}

func insertEntity(ctx context.Context, tx *sql.Tx, info types.EntityInfo) error {
	entityID := newUUID()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entities (entity_id, kind, category, type, subtype, name, path, variant_count, pose_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entityID, info.Kind.String(), info.Category, info.Type, info.Subtype, info.Name, info.Path,
		len(info.Variants), info.PoseCount())
	if err != nil {
		return fmt.Errorf("inserting entity %s: %w", info.Name, err)
	}
	for _, v := range info.Variants {
		variantID := newUUID()
		_, err := tx.ExecContext(ctx,
			"INSERT INTO variants (variant_id, entity_id, variant, has_metadata, path) VALUES (?, ?, ?, ?, ?)",
			variantID, entityID, v.ID, boolToInt(v.HasMetadata), v.Path)
		if err != nil {
			return fmt.Errorf("inserting variant %s/%s: %w", info.Name, v.ID, err)
		}
		for _, p := range v.Poses {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO poses (pose_id, variant_id, number, image_type, path, size, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				newUUID(), variantID, p.Number, p.ImageType.String(), p.Path, p.Size,
				p.CreatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("inserting pose %s: %w", p.Path, err)
			}
		}
	}
	return nil
}

// Stats returns the counts and provenance of the indexed content. A catalog
// that was never rebuilt reports zero counts and a zero IndexedAt.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return Stats{}, ErrClosed
	}

	var s Stats
	row := c.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM entities),
		(SELECT COUNT(*) FROM variants),
		(SELECT COUNT(*) FROM poses)`)
	if err := row.Scan(&s.Entities, &s.Variants, &s.Poses); err != nil {
		return Stats{}, fmt.Errorf("counting catalog rows: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, "SELECT key, value FROM catalog_info")
	if err != nil {
		return Stats{}, fmt.Errorf("reading catalog info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Stats{}, fmt.Errorf("scanning catalog info: %w", err)
		}
		switch k {
		case infoRoot:
			s.Root = v
		case infoScheme:
			s.Scheme = types.Scheme(v)
		case infoIndexedAt:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return Stats{}, fmt.Errorf("parsing %s: %w", infoIndexedAt, err)
			}
			s.IndexedAt = t
		}
	}
	return s, rows.Err()
}

// Search returns indexed entities whose name contains term, matched
// case-insensitively, narrowed by f. Results are ordered by name, then by
// classification. A limit of zero or less returns every match.
func (c *Catalog) Search(ctx context.Context, term string, f types.Filter, limit int) ([]types.EntitySummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrClosed
	}

	query := "SELECT kind, category, type, subtype, name, path, variant_count, pose_count FROM entities"
	var conditions []string
	var args []any

	if t := layout.Normalize(term); t != "" {
		conditions = append(conditions, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	if f.Kind != types.KindUnknown {
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("kind filter: %w", types.ErrUnknownKind)
		}
		conditions = append(conditions, "kind = ?")
		args = append(args, f.Kind.String())
	}
	for _, cond := range []struct{ column, value string }{
		{"category", f.Category},
		{"type", f.Type},
		{"subtype", f.Subtype},
	} {
		if strings.TrimSpace(cond.value) == "" {
			continue
		}
		conditions = append(conditions, cond.column+" = ?")
		args = append(args, layout.Normalize(cond.value))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name, kind, category, type, subtype"
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	defer rows.Close()

	results := []types.EntitySummary{}
	for rows.Next() {
		var e types.EntitySummary
		var kind string
		if err := rows.Scan(&kind, &e.Category, &e.Type, &e.Subtype, &e.Name, &e.Path,
			&e.VariantCount, &e.TotalPoseCount); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		k, err := types.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
		e.Kind = k
		results = append(results, e)
	}
	return results, rows.Err()
}

// PosesByImageType returns how many indexed poses exist per image type.
func (c *Catalog) PosesByImageType(ctx context.Context) (map[types.ImageType]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrClosed
	}

	rows, err := c.db.QueryContext(ctx, "SELECT image_type, COUNT(*) FROM poses GROUP BY image_type")
	if err != nil {
		return nil, fmt.Errorf("counting poses: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ImageType]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning pose count: %w", err)
		}
		it, err := types.ParseImageType(name)
		if err != nil {
			continue
		}
		counts[it] += n
	}
	return counts, rows.Err()
}

// newUUID generates a UUID v7 row id.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
