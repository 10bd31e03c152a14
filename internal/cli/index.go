package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/internal/catalog"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain and query the SQLite catalog",
		Long: "The catalog is a SQLite index rebuilt from the image tree. The tree stays\n" +
			"the source of truth; other commands never read the catalog.",
	}
	cmd.AddCommand(newIndexRebuildCmd(a), newIndexSearchCmd(a), newIndexStatsCmd(a))
	return cmd
}

func newIndexRebuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the catalog from the image tree",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			stats, err := cat.Rebuild(cmd.Context(), s)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, stats, func(w io.Writer) error {
				fmt.Fprintf(w, "Indexed %d entities, %d variants, %d poses\n",
					stats.Entities, stats.Variants, stats.Poses)
				return nil
			})
		},
	}
}

func newIndexSearchCmd(a *app) *cobra.Command {
	var (
		ff    filterFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search indexed entities by name",
		Long:  "Find catalog entries whose name contains term, ignoring case.",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			format, err := a.format()
			if err != nil {
				return err
			}
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			list, err := cat.Search(cmd.Context(), strings.Join(args, " "), f, limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, nonNil(list), func(w io.Writer) error {
				return writeSummaries(w, list)
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum results, 0 for all")
	return cmd
}

// indexStats is the structured output of "hoard index stats".
type indexStats struct {
	catalog.Stats `yaml:",inline"`
	Path          string         `json:"path" yaml:"path"`
	ByImageType   map[string]int `json:"by_image_type" yaml:"by_image_type"`
}

func newIndexStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog counts",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			stats, err := cat.Stats(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := cat.PosesByImageType(cmd.Context())
			if err != nil {
				return err
			}
			out := indexStats{Stats: stats, Path: cat.Path(), ByImageType: map[string]int{}}
			for it, n := range counts {
				out.ByImageType[it.String()] = n
			}
			return render(cmd.OutOrStdout(), format, out, func(w io.Writer) error {
				field(w, "catalog", out.Path)
				if stats.IndexedAt.IsZero() {
					field(w, "indexed", "never")
					return nil
				}
				field(w, "root", stats.Root)
				field(w, "scheme", stats.Scheme)
				field(w, "indexed", humanize.Time(stats.IndexedAt))
				field(w, "entities", humanize.Comma(int64(stats.Entities)))
				field(w, "variants", humanize.Comma(int64(stats.Variants)))
				field(w, "poses", humanize.Comma(int64(stats.Poses)))
				var rows [][]string
				for _, it := range types.ImageTypes() {
					if n := counts[it]; n > 0 {
						rows = append(rows, []string{it.String(), strconv.Itoa(n)})
					}
				}
				if len(rows) > 0 {
					fmt.Fprintln(w)
					return writeTable(w, []string{"IMAGE", "POSES"}, rows)
				}
				return nil
			})
		},
	}
}
