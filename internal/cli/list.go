package cli

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/pkg/types"
)

// filterFlags holds the --kind/--category/--type/--subtype filter flags.
type filterFlags struct {
	kind     string
	category string
	typ      string
	subtype  string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "", "only entities of this kind")
	cmd.Flags().StringVar(&f.category, "category", "", "only entities in this category")
	cmd.Flags().StringVar(&f.typ, "type", "", "only entities of this type")
	cmd.Flags().StringVar(&f.subtype, "subtype", "", "only entities with this subtype")
}

func (f *filterFlags) filter() (types.Filter, error) {
	var kind types.Kind
	if f.kind != "" {
		k, err := types.ParseKind(f.kind)
		if err != nil {
			return types.Filter{}, err
		}
		kind = k
	}
	return types.Filter{Kind: kind, Category: f.category, Type: f.typ, Subtype: f.subtype}, nil
}

func newListCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities with their variant and pose counts",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			format, err := a.format()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			list, err := s.Summaries(cmd.Context(), f)
			if err != nil {
				return err
			}
			sortSummaries(list)
			return render(cmd.OutOrStdout(), format, nonNil(list), func(w io.Writer) error {
				return writeSummaries(w, list)
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func sortSummaries(list []types.EntitySummary) {
	slices.SortStableFunc(list, func(a, b types.EntitySummary) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Subtype, b.Subtype),
			cmp.Compare(a.Name, b.Name),
		)
	})
}

func writeSummaries(w io.Writer, list []types.EntitySummary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, style.Help.Render("No entities found."))
		return nil
	}
	rows := make([][]string, 0, len(list))
	poses := 0
	for _, e := range list {
		rows = append(rows, []string{
			e.Kind.String(), e.Category, e.Type, orDash(e.Subtype), e.Name,
			strconv.Itoa(e.VariantCount), strconv.Itoa(e.TotalPoseCount),
		})
		poses += e.TotalPoseCount
	}
	if err := writeTable(w, []string{"KIND", "CATEGORY", "TYPE", "SUBTYPE", "NAME", "VARIANTS", "POSES"}, rows); err != nil {
		return err
	}
	fmt.Fprintln(w, style.Help.Render(fmt.Sprintf("%d entities, %d poses", len(list), poses)))
	return nil
}

func newShowCmd(a *app) *cobra.Command {
	var kind, category, typ, subtype string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the variants and poses of an entity",
		Long: "Show the full breakdown of an entity. With --kind, --category and --type\n" +
			"the entity is addressed directly; otherwise the tree is searched by name.",
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")

			var info *types.EntityInfo
			if kind != "" || category != "" || typ != "" {
				c, _, err := entityFromArgs([]string{kind, category, typ, name}, subtype)
				if err != nil {
					return err
				}
				info, err = s.EntityInfo(cmd.Context(), c, name)
				if err != nil {
					return err
				}
			} else {
				info, err = s.Find(cmd.Context(), name)
				if err != nil {
					return err
				}
			}
			if info == nil {
				return fmt.Errorf("entity %q: %w", name, errNotFound)
			}
			return render(cmd.OutOrStdout(), format, info, func(w io.Writer) error {
				return writeEntity(w, info, time.Now())
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind")
	cmd.Flags().StringVar(&category, "category", "", "entity category")
	cmd.Flags().StringVar(&typ, "type", "", "entity type")
	cmd.Flags().StringVar(&subtype, "subtype", "", "entity subtype")
	return cmd
}

func classificationPath(c types.Classification) string {
	parts := []string{c.Kind.String(), c.Category, c.Type}
	if c.Subtype != "" {
		parts = append(parts, c.Subtype)
	}
	return strings.Join(parts, " / ")
}

func writeEntity(w io.Writer, info *types.EntityInfo, now time.Time) error {
	fmt.Fprintln(w, style.Title.Render(info.Name))
	field(w, "class", classificationPath(info.Classification()))
	field(w, "path", info.Path)
	field(w, "variants", len(info.Variants))
	field(w, "poses", info.PoseCount())

	for _, v := range info.Variants {
		fmt.Fprintln(w)
		meta := ""
		if v.HasMetadata {
			meta = " " + style.Help.Render("(metadata)")
		}
		fmt.Fprintf(w, "%s %s%s\n", style.Label.Render("variant"), v.ID, meta)
		if len(v.Poses) == 0 {
			fmt.Fprintln(w, style.Help.Render("  no poses"))
			continue
		}
		rows := make([][]string, 0, len(v.Poses))
		for _, p := range v.Poses {
			rows = append(rows, []string{
				strconv.Itoa(p.Number),
				p.ImageType.String(),
				humanize.Bytes(uint64(max(p.Size, 0))),
				humanize.RelTime(p.CreatedAt, now, "ago", "from now"),
			})
		}
		if err := writeTable(w, []string{"#", "IMAGE", "SIZE", "CREATED"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Print the directory of the first entity with a name",
		Long: "Search the whole tree for an entity by case-insensitive name and print\n" +
			"its directory. Exits 1 when no entity matches.",
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			info, err := s.Find(cmd.Context(), name)
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("entity %q: %w", name, errNotFound)
			}
			summary := summarize(info)
			return render(cmd.OutOrStdout(), format, summary, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, info.Path)
				return err
			})
		},
	}
}

func summarize(info *types.EntityInfo) types.EntitySummary {
	return types.EntitySummary{
		Kind:           info.Kind,
		Category:       info.Category,
		Type:           info.Type,
		Subtype:        info.Subtype,
		Name:           info.Name,
		Path:           info.Path,
		VariantCount:   len(info.Variants),
		TotalPoseCount: info.PoseCount(),
	}
}
