package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hoard/internal/catalog"
	"github.com/mesh-intelligence/hoard/internal/storage"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// checkStatus is the outcome of one diagnostic check.
type checkStatus int

const (
	statusPass checkStatus = iota
	statusWarn
	statusFail
)

func (s checkStatus) String() string {
	switch s {
	case statusPass:
		return "pass"
	case statusWarn:
		return "warning"
	}
	return "critical"
}

func (s checkStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *checkStatus) UnmarshalText(b []byte) error {
	for _, st := range []checkStatus{statusPass, statusWarn, statusFail} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown check status %q", b)
}

func (s checkStatus) symbol() string {
	switch s {
	case statusPass:
		return style.Pass.Render("✓")
	case statusWarn:
		return style.Warn.Render("⚠")
	}
	return style.Fail.Render("✗")
}

// Check groups, in report order.
const (
	groupConfig     = "Configuration"
	groupFilesystem = "Filesystem"
	groupCatalog    = "Catalog"
)

// Overall health.
const (
	healthReady    = "READY"
	healthDegraded = "DEGRADED"
	healthCritical = "CRITICAL"
)

type checkResult struct {
	Group       string      `json:"group" yaml:"group"`
	Name        string      `json:"name" yaml:"name"`
	Status      checkStatus `json:"status" yaml:"status"`
	Message     string      `json:"message" yaml:"message"`
	Detail      string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	Remediation string      `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

type doctorReport struct {
	Checks   []checkResult `json:"checks" yaml:"checks"`
	Passed   int           `json:"passed" yaml:"passed"`
	Warnings int           `json:"warnings" yaml:"warnings"`
	Failures int           `json:"failures" yaml:"failures"`
	Status   string        `json:"status" yaml:"status"`
}

func (r *doctorReport) add(c checkResult) {
	r.Checks = append(r.Checks, c)
	switch c.Status {
	case statusPass:
		r.Passed++
	case statusWarn:
		r.Warnings++
	default:
		r.Failures++
	}
}

func (r *doctorReport) finish() {
	switch {
	case r.Failures > 0:
		r.Status = healthCritical
	case r.Warnings > 0:
		r.Status = healthDegraded
	default:
		r.Status = healthReady
	}
}

func newDoctorCmd(a *app) *cobra.Command {
	var verbose, skipCatalog bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, image root and catalog health",
		Long: "Run diagnostic checks grouped by area and print a summary.\n" +
			"Exits 1 when any check reports a critical failure.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.format()
			if err != nil {
				return err
			}
			report, err := a.runDoctor(cmd.Context(), skipCatalog)
			if err != nil {
				return err
			}
			err = render(cmd.OutOrStdout(), format, report, func(w io.Writer) error {
				writeDoctorReport(w, report, verbose)
				return nil
			})
			if err != nil {
				return err
			}
			if report.Failures > 0 {
				return codeError{code: exitUserError, msg: fmt.Sprintf("doctor: %d critical failure(s)", report.Failures)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show details for every check")
	cmd.Flags().BoolVar(&skipCatalog, "skip-catalog", false, "skip the catalog checks")
	return cmd
}

// runDoctor runs every check group. A cancelled context stops between checks
// and is returned as the error.
func (a *app) runDoctor(ctx context.Context, skipCatalog bool) (*doctorReport, error) {
	r := &doctorReport{}

	cfg, cfgOK := a.configChecks(r)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfgOK {
		a.filesystemChecks(ctx, r, cfg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !skipCatalog {
		a.catalogChecks(ctx, r, cfg, cfgOK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.finish()
	return r, nil
}

func (a *app) configChecks(r *doctorReport) (types.Config, bool) {
	if used := a.cfg.ConfigFileUsed(); used != "" {
		r.add(checkResult{Group: groupConfig, Name: "Config file", Status: statusPass,
			Message: "config.yaml loaded", Detail: used})
	} else {
		r.add(checkResult{Group: groupConfig, Name: "Config file", Status: statusWarn,
			Message:     "no config.yaml in " + a.configDir,
			Remediation: "run 'hoard init' to write a default configuration"})
	}

	cfg, err := a.storeConfig()
	if err != nil {
		r.add(checkResult{Group: groupConfig, Name: "Store settings", Status: statusFail,
			Message:     err.Error(),
			Remediation: "set scheme to 'kind' or 'genre' and root to a directory path in config.yaml"})
		return cfg, false
	}
	r.add(checkResult{Group: groupConfig, Name: "Store settings", Status: statusPass,
		Message: fmt.Sprintf("scheme %s", cfg.Scheme), Detail: cfg.Root})
	return cfg, true
}

func (a *app) filesystemChecks(ctx context.Context, r *doctorReport, cfg types.Config) {
	info, err := os.Stat(cfg.Root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.add(checkResult{Group: groupFilesystem, Name: "Image root", Status: statusWarn,
			Message:     "image root does not exist yet",
			Detail:      cfg.Root,
			Remediation: "run 'hoard init' or save an image to create it"})
		return
	case err != nil:
		r.add(checkResult{Group: groupFilesystem, Name: "Image root", Status: statusFail,
			Message: err.Error(), Remediation: "check permissions on " + cfg.Root})
		return
	case !info.IsDir():
		r.add(checkResult{Group: groupFilesystem, Name: "Image root", Status: statusFail,
			Message: "image root is not a directory", Detail: cfg.Root,
			Remediation: "point root at a directory with --root or in config.yaml"})
		return
	}
	r.add(checkResult{Group: groupFilesystem, Name: "Image root", Status: statusPass,
		Message: "image root exists", Detail: cfg.Root})

	if err := probeWritable(ctx, cfg.Root); err != nil {
		r.add(checkResult{Group: groupFilesystem, Name: "Write access", Status: statusFail,
			Message: err.Error(), Remediation: "grant write permission on " + cfg.Root})
	} else {
		r.add(checkResult{Group: groupFilesystem, Name: "Write access", Status: statusPass,
			Message: "image root is writable"})
	}

	unknown, err := unknownKindDirs(cfg.Root)
	switch {
	case err != nil:
		r.add(checkResult{Group: groupFilesystem, Name: "Layout", Status: statusFail,
			Message: err.Error(), Remediation: "check permissions on " + cfg.Root})
	case len(unknown) > 0:
		r.add(checkResult{Group: groupFilesystem, Name: "Layout", Status: statusWarn,
			Message:     "unrecognized top-level directories: " + strings.Join(unknown, ", "),
			Remediation: "entities must live under character, creature, object or effect"})
	default:
		r.add(checkResult{Group: groupFilesystem, Name: "Layout", Status: statusPass,
			Message: "top-level directories are known kinds"})
	}
}

// probeWritable writes, checks and removes a uniquely named file in root.
func probeWritable(ctx context.Context, root string) error {
	local, err := storage.NewLocal(root)
	if err != nil {
		return err
	}
	key := ".hoard-doctor-" + uuid.NewString()
	w, err := local.Write(ctx, key)
	if err != nil {
		return fmt.Errorf("create probe file: %w", err)
	}
	if _, err := io.WriteString(w, "ok"); err != nil {
		w.Close()
		return fmt.Errorf("write probe file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	ok, err := local.Exists(ctx, key)
	if err == nil && !ok {
		err = errors.New("probe file missing after write")
	}
	if delErr := local.Delete(ctx, key); err == nil {
		err = delErr
	}
	return err
}

func unknownKindDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := types.ParseKind(e.Name()); err != nil {
			unknown = append(unknown, e.Name())
		}
	}
	return unknown, nil
}

func (a *app) catalogChecks(ctx context.Context, r *doctorReport, cfg types.Config, cfgOK bool) {
	path, err := a.catalogPath()
	if err != nil {
		r.add(checkResult{Group: groupCatalog, Name: "Catalog", Status: statusFail,
			Message: err.Error(), Remediation: "set catalog to a file path in config.yaml"})
		return
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		r.add(checkResult{Group: groupCatalog, Name: "Catalog", Status: statusWarn,
			Message: "catalog has not been built", Detail: path,
			Remediation: "run 'hoard index rebuild'"})
		return
	}

	cat, err := catalog.Open(path, catalog.WithLogger(a.log))
	if err != nil {
		r.add(checkResult{Group: groupCatalog, Name: "Catalog", Status: statusFail,
			Message: err.Error(), Detail: path,
			Remediation: "delete " + path + " and run 'hoard index rebuild'"})
		return
	}
	defer cat.Close()

	stats, err := cat.Stats(ctx)
	if err != nil {
		r.add(checkResult{Group: groupCatalog, Name: "Catalog", Status: statusFail,
			Message: err.Error(), Detail: path,
			Remediation: "delete " + path + " and run 'hoard index rebuild'"})
		return
	}
	r.add(checkResult{Group: groupCatalog, Name: "Catalog", Status: statusPass,
		Message: fmt.Sprintf("%d entities, %d poses indexed", stats.Entities, stats.Poses), Detail: path})

	if !cfgOK {
		return
	}
	a.freshnessCheck(ctx, r, cfg, stats)
}

func (a *app) freshnessCheck(ctx context.Context, r *doctorReport, cfg types.Config, stats catalog.Stats) {
	stale := func(msg string) {
		r.add(checkResult{Group: groupCatalog, Name: "Freshness", Status: statusWarn,
			Message: msg, Remediation: "run 'hoard index rebuild'"})
	}
	switch {
	case stats.IndexedAt.IsZero():
		stale("catalog has never been rebuilt")
		return
	case stats.Root != cfg.Root || stats.Scheme != cfg.Scheme:
		stale(fmt.Sprintf("catalog indexes %s (%s), not %s (%s)", stats.Root, stats.Scheme, cfg.Root, cfg.Scheme))
		return
	}

	s, err := a.openStore()
	if err != nil {
		r.add(checkResult{Group: groupCatalog, Name: "Freshness", Status: statusFail, Message: err.Error()})
		return
	}
	list, err := s.Summaries(ctx, types.Filter{})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.add(checkResult{Group: groupCatalog, Name: "Freshness", Status: statusFail,
			Message: err.Error(), Remediation: "check permissions on " + cfg.Root})
		return
	}
	poses := 0
	for _, e := range list {
		poses += e.TotalPoseCount
	}
	if len(list) != stats.Entities || poses != stats.Poses {
		stale(fmt.Sprintf("tree has %d entities and %d poses, catalog has %d and %d",
			len(list), poses, stats.Entities, stats.Poses))
		return
	}
	r.add(checkResult{Group: groupCatalog, Name: "Freshness", Status: statusPass,
		Message: "catalog matches the image tree",
		Detail:  "indexed " + stats.IndexedAt.Local().Format("2006-01-02 15:04:05")})
}

func writeDoctorReport(w io.Writer, r *doctorReport, verbose bool) {
	title := "hoard System Diagnostics"
	fmt.Fprintln(w, style.Title.Render(title))
	fmt.Fprintln(w, strings.Repeat("=", len(title)))

	for _, group := range []string{groupConfig, groupFilesystem, groupCatalog} {
		var checks []checkResult
		for _, c := range r.Checks {
			if c.Group == group {
				checks = append(checks, c)
			}
		}
		if len(checks) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, style.Label.Render(group+" Checks"))
		for _, c := range checks {
			fmt.Fprintf(w, "  %s %s: %s\n", c.Status.symbol(), c.Name, c.Message)
			if c.Detail != "" && (verbose || c.Status != statusPass) {
				fmt.Fprintln(w, style.Help.Render("      "+c.Detail))
			}
			if c.Remediation != "" && c.Status != statusPass {
				fmt.Fprintf(w, "    → %s\n", c.Remediation)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d/%d checks passed, %d warning(s), %d critical failure(s)\n",
		r.Passed, len(r.Checks), r.Warnings, r.Failures)
	st := style.Pass
	switch r.Status {
	case healthDegraded:
		st = style.Warn
	case healthCritical:
		st = style.Fail
	}
	fmt.Fprintf(w, "Status: %s\n", st.Render(r.Status))
}
