package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/internal/storage"
)

// exportResult is the structured output of "hoard export".
type exportResult struct {
	storage.ExportReport `yaml:",inline"`
	Target               string `json:"target" yaml:"target"`
	DryRun               bool   `json:"dry_run" yaml:"dry_run"`
}

func newExportCmd(a *app) *cobra.Command {
	var (
		ff           filterFlags
		toDir        string
		toS3         bool
		s3Flags      storage.S3Config
		skipExisting bool
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy images, metadata and prompts to a directory or S3 bucket",
		Long: "Copy every recognized file of the matching entities, keyed by its path\n" +
			"relative to the image root. Use --to for a local directory or --s3 for the\n" +
			"bucket configured under export.s3 in config.yaml.",
		Example: "  hoard export --to /mnt/backup --kind creature\n" +
			"  hoard export --s3 --bucket art --prefix hoard --skip-existing",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (toDir == "") == !toS3 {
				return usageErrorf("choose exactly one of --to or --s3")
			}
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

			var (
				dst    storage.FileStore
				target string
			)
			if toS3 {
				cfg := s3Config(a.cfg)
				if s3Flags.Bucket != "" {
					cfg.Bucket = s3Flags.Bucket
				}
				if cmd.Flags().Changed("prefix") {
					cfg.Prefix = s3Flags.Prefix
				}
				if s3Flags.Region != "" {
					cfg.Region = s3Flags.Region
				}
				if s3Flags.Endpoint != "" {
					cfg.Endpoint = s3Flags.Endpoint
				}
				client, err := storage.NewS3Client(cfg)
				if err != nil {
					return userError{err}
				}
				s3store := storage.NewS3(client, cfg.Bucket, cfg.Prefix)
				dst, target = s3store, s3store.Location()
			} else {
				local, err := storage.NewLocal(toDir)
				if err != nil {
					return err
				}
				dst, target = local, local.Root()
			}

			report, err := storage.Export(cmd.Context(), s, dst, storage.ExportOptions{
				Filter:       f,
				SkipExisting: skipExisting,
				DryRun:       dryRun,
				Logger:       a.log,
			})
			if err != nil {
				return err
			}
			res := exportResult{ExportReport: report, Target: target, DryRun: dryRun}
			return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				verb := "Exported"
				if dryRun {
					verb = "Would export"
				}
				fmt.Fprintf(w, "%s %d files (%s) from %d entities to %s\n",
					verb, report.Files, humanize.Bytes(uint64(report.Bytes)), report.Entities, target)
				if report.Skipped > 0 {
					fmt.Fprintln(w, style.Help.Render(fmt.Sprintf("%d existing files skipped", report.Skipped)))
				}
				return nil
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&toDir, "to", "", "destination directory")
	cmd.Flags().BoolVar(&toS3, "s3", false, "export to the configured S3 bucket")
	cmd.Flags().StringVar(&s3Flags.Bucket, "bucket", "", "S3 bucket (overrides export.s3.bucket)")
	cmd.Flags().StringVar(&s3Flags.Prefix, "prefix", "", "S3 key prefix (overrides export.s3.prefix)")
	cmd.Flags().StringVar(&s3Flags.Region, "region", "", "S3 region (overrides export.s3.region)")
	cmd.Flags().StringVar(&s3Flags.Endpoint, "endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "leave files that already exist at the destination")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count files without copying")
	return cmd
}
