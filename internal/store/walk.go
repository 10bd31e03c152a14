package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/mesh-intelligence/hoard/internal/layout"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// errStop ends a walk early without reporting an error.
var errStop = errors.New("stop walk")

// entityLoc is an entity directory found during a walk, with the directory
// names that lead to it.
type entityLoc struct {
	kind     types.Kind
	category string
	typ      string
	subtype  string
	name     string
	path     string
}

// Summaries walks the tree and returns one summary per entity directory that
// matches f. A missing or empty root yields an empty list. No order is
// guaranteed beyond the walk order.
func (s *Store) Summaries(ctx context.Context, f types.Filter) ([]types.EntitySummary, error) {
	summaries := []types.EntitySummary{}
	err := s.walkEntities(ctx, f, func(loc entityLoc) error {
		variants, err := listDirs(loc.path)
		if err != nil {
			return err
		}
		total := 0
		for _, v := range variants {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := listFiles(filepath.Join(loc.path, v))
			if err != nil {
				return err
			}
			total += len(layout.NumberPoses(files))
		}
		summaries = append(summaries, types.EntitySummary{
			Kind:           loc.kind,
			Category:       loc.category,
			Type:           loc.typ,
			Subtype:        loc.subtype,
			Name:           loc.name,
			Path:           loc.path,
			VariantCount:   len(variants),
			TotalPoseCount: total,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Assets is Summaries without cancellation. It blocks for the whole walk.
func (s *Store) Assets(f types.Filter) ([]types.EntitySummary, error) {
	return s.Summaries(context.Background(), f)
}

// Walk calls fn with the full breakdown of every entity that matches f.
// Returning an error from fn stops the walk and returns that error.
func (s *Store) Walk(ctx context.Context, f types.Filter, fn func(types.EntityInfo) error) error {
	return s.walkEntities(ctx, f, func(loc entityLoc) error {
		info, err := s.entityInfo(ctx, loc)
		if err != nil {
			return err
		}
		return fn(*info)
	})
}

// EntityInfo returns the full breakdown of the entity at c and name, or nil
// when it does not exist.
func (s *Store) EntityInfo(ctx context.Context, c types.Classification, name string) (*types.EntityInfo, error) {
	dir, err := s.paths.EntityDir(c, name)
	if err != nil {
		return nil, err
	}
	ok, err := dirExists(dir)
	if err != nil || !ok {
		return nil, err
	}
	if strings.TrimSpace(c.Subtype) == "" && s.Scheme() == types.SchemeKind {
		// Without a subtype the name level and the subtype level share a
		// parent, so make sure dir is not a subtype holding other entities.
		sub, err := looksLikeSubtype(dir)
		if err != nil || sub {
			return nil, err
		}
	}
	return s.entityInfo(ctx, entityLoc{
		kind:     c.Kind,
		category: layout.Normalize(c.Category),
		typ:      layout.Normalize(c.Type),
		subtype:  layout.Normalize(c.Subtype),
		name:     layout.Normalize(name),
		path:     dir,
	})
}

// Find locates an entity anywhere in the tree by case-insensitive name and
// returns its breakdown, or nil when no entity has that name. The first match
// in walk order wins.
func (s *Store) Find(ctx context.Context, name string) (*types.EntityInfo, error) {
	if err := layout.ValidateSegment("name", name); err != nil {
		return nil, err
	}
	target := layout.Normalize(name)
	var found *types.EntityInfo
	err := s.walkEntities(ctx, types.Filter{}, func(loc entityLoc) error {
		if loc.name != target {
			return nil
		}
		info, err := s.entityInfo(ctx, loc)
		if err != nil {
			return err
		}
		found = info
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return found, nil
}

// FindAsset is Find without cancellation.
func (s *Store) FindAsset(name string) (*types.EntityInfo, error) {
	return s.Find(context.Background(), name)
}

func (s *Store) entityInfo(ctx context.Context, loc entityLoc) (*types.EntityInfo, error) {
	variantIDs, err := listDirs(loc.path)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(variantIDs, compareVariantIDs)

	info := &types.EntityInfo{
		Kind:     loc.kind,
		Category: loc.category,
		Type:     loc.typ,
		Subtype:  loc.subtype,
		Name:     loc.name,
		Path:     loc.path,
		Variants: make([]types.VariantInfo, 0, len(variantIDs)),
	}
	for _, id := range variantIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := readVariant(filepath.Join(loc.path, id), id)
		if err != nil {
			return nil, err
		}
		info.Variants = append(info.Variants, v)
	}
	return info, nil
}

func readVariant(dir, id string) (types.VariantInfo, error) {
	files, err := listFiles(dir)
	if err != nil {
		return types.VariantInfo{}, err
	}
	v := types.VariantInfo{
		ID:          id,
		Path:        dir,
		HasMetadata: slices.Contains(files, layout.MetadataFileName),
		Poses:       []types.Pose{},
	}
	for _, pf := range layout.NumberPoses(files) {
		path := filepath.Join(dir, pf.Name)
		fi, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between listing and stat.
			continue
		}
		if err != nil {
			return types.VariantInfo{}, err
		}
		v.Poses = append(v.Poses, types.Pose{
			Number:    len(v.Poses) + 1,
			ImageType: pf.ImageType,
			Path:      path,
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	return v, nil
}

// compareVariantIDs orders numeric ids numerically, ahead of all other ids,
// which sort lexically.
func compareVariantIDs(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai - bi
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// walkEntities visits entity directories in lexical order, descending
// kind/category/type and then the scheme-specific levels below type.
// Filtered levels are joined directly instead of listed.
func (s *Store) walkEntities(ctx context.Context, f types.Filter, fn func(entityLoc) error) error {
	if err := validateFilter(f); err != nil {
		return err
	}
	kinds, err := s.kindDirs(f.Kind)
	if err != nil {
		return err
	}
	for _, kd := range kinds {
		kind := kd.kind
		kindPath := filepath.Join(s.Root(), kd.dir)
		categories, err := childDirs(kindPath, f.Category)
		if err != nil {
			return err
		}
		for _, category := range categories {
			categoryPath := filepath.Join(kindPath, category)
			typeNames, err := childDirs(categoryPath, f.Type)
			if err != nil {
				return err
			}
			for _, typ := range typeNames {
				typePath := filepath.Join(categoryPath, typ)
				err := s.walkType(typePath, f.Subtype, func(subtype, name, path string) error {
					if err := ctx.Err(); err != nil {
						return err
					}
					return fn(entityLoc{
						kind:     kind,
						category: category,
						typ:      typ,
						subtype:  subtype,
						name:     name,
						path:     path,
					})
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type entityFunc func(subtype, name, path string) error

func (s *Store) walkType(typePath, subtypeFilter string, fn entityFunc) error {
	if s.Scheme() == types.SchemeGenre {
		return walkGenreType(typePath, subtypeFilter, fn)
	}
	return walkKindType(typePath, subtypeFilter, fn)
}

// walkKindType handles type/[subtype]/name. A child of the type directory
// is an entity when its variant directories hold files; otherwise it
// is a subtype.
func walkKindType(typePath, subtypeFilter string, fn entityFunc) error {
	if strings.TrimSpace(subtypeFilter) != "" {
		sub := layout.Normalize(subtypeFilter)
		subPath := filepath.Join(typePath, sub)
		ok, err := dirExists(subPath)
		if err != nil || !ok {
			return err
		}
		entity, err := isEntityDir(subPath)
		if err != nil || entity {
			// An entity without subtype never matches a subtype filter.
			return err
		}
		return eachChild(subPath, func(name, path string) error {
			return fn(sub, name, path)
		})
	}

	return eachChild(typePath, func(child, childPath string) error {
		entity, err := isEntityDir(childPath)
		if err != nil {
			return err
		}
		if entity {
			return fn("", child, childPath)
		}
		return eachChild(childPath, func(name, path string) error {
			return fn(child, name, path)
		})
	})
}

// walkGenreType handles type/[subtype]/letter/name. A single-rune child of
// the type directory whose children are entities starting with that rune is
// a letter bucket; any other child is a subtype.
func walkGenreType(typePath, subtypeFilter string, fn entityFunc) error {
	inBuckets := func(subtype, parent string) error {
		return eachChild(parent, func(_, bucketPath string) error {
			return eachChild(bucketPath, func(name, path string) error {
				return fn(subtype, name, path)
			})
		})
	}

	if strings.TrimSpace(subtypeFilter) != "" {
		sub := layout.Normalize(subtypeFilter)
		subPath := filepath.Join(typePath, sub)
		ok, err := dirExists(subPath)
		if err != nil || !ok {
			return err
		}
		bucket, err := isLetterBucket(sub, subPath)
		if err != nil || bucket {
			return err
		}
		return inBuckets(sub, subPath)
	}

	return eachChild(typePath, func(child, childPath string) error {
		bucket, err := isLetterBucket(child, childPath)
		if err != nil {
			return err
		}
		if bucket {
			return eachChild(childPath, func(name, path string) error {
				return fn("", name, path)
			})
		}
		return inBuckets(child, childPath)
	})
}

func isLetterBucket(name, path string) (bool, error) {
	if utf8.RuneCountInString(name) != 1 {
		return false, nil
	}
	children, err := listDirs(path)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		if layout.FirstLetter(child) != name {
			continue
		}
		entity, err := isEntityDir(filepath.Join(path, child))
		if err != nil {
			return false, err
		}
		if entity {
			return true, nil
		}
	}
	return false, nil
}

// isEntityDir reports whether one of dir's child directories directly holds
// any file. The store never writes files into a subtype's grandchildren, so
// unrecognized files still mark dir as an entity.
func isEntityDir(dir string) (bool, error) {
	variants, err := listDirs(dir)
	if err != nil {
		return false, err
	}
	for _, v := range variants {
		files, err := listFiles(filepath.Join(dir, v))
		if err != nil {
			return false, err
		}
		if len(files) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// looksLikeSubtype reports whether dir holds entity directories instead of
// variant directories.
func looksLikeSubtype(dir string) (bool, error) {
	entity, err := isEntityDir(dir)
	if err != nil || entity {
		return false, err
	}
	children, err := listDirs(dir)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		entity, err := isEntityDir(filepath.Join(dir, child))
		if err != nil {
			return false, err
		}
		if entity {
			return true, nil
		}
	}
	return false, nil
}

type kindDir struct {
	kind types.Kind
	dir  string
}

func (s *Store) kindDirs(k types.Kind) ([]kindDir, error) {
	if k.Valid() {
		return []kindDir{{kind: k, dir: k.String()}}, nil
	}
	if k != types.KindUnknown {
		return nil, fmt.Errorf("kind filter: %w", types.ErrUnknownKind)
	}
	names, err := listDirs(s.Root())
	if err != nil {
		return nil, err
	}
	kinds := make([]kindDir, 0, len(names))
	for _, name := range names {
		kind, err := types.ParseKind(name)
		if err != nil {
			s.log.Debug("skipping directory", "path", filepath.Join(s.Root(), name), "reason", "unknown kind")
			continue
		}
		kinds = append(kinds, kindDir{kind: kind, dir: name})
	}
	return kinds, nil
}

func validateFilter(f types.Filter) error {
	if err := layout.ValidateOptionalSegment("category filter", f.Category); err != nil {
		return err
	}
	if err := layout.ValidateOptionalSegment("type filter", f.Type); err != nil {
		return err
	}
	return layout.ValidateOptionalSegment("subtype filter", f.Subtype)
}

// childDirs lists parent's subdirectories, or, when filter is set, returns
// the single normalized filter segment if that directory exists.
func childDirs(parent, filter string) ([]string, error) {
	if strings.TrimSpace(filter) == "" {
		return listDirs(parent)
	}
	seg := layout.Normalize(filter)
	ok, err := dirExists(filepath.Join(parent, seg))
	if err != nil || !ok {
		return nil, err
	}
	return []string{seg}, nil
}

func eachChild(parent string, fn func(name, path string) error) error {
	names, err := listDirs(parent)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := fn(name, filepath.Join(parent, name)); err != nil {
			return err
		}
	}
	return nil
}

// listDirs returns the names of dir's visible subdirectories in lexical
// order. A missing directory has none.
func listDirs(dir string) ([]string, error) {
	return listEntries(dir, true)
}

// listFiles returns the names of dir's files in lexical order. A missing
// directory has none.
func listFiles(dir string) ([]string, error) {
	return listEntries(dir, false)
}

func listEntries(dir string, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() != dirs {
			continue
		}
		if dirs && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
