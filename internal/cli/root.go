// Package cli implements the hoard command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/hoard/internal/catalog"
	"github.com/mesh-intelligence/hoard/internal/paths"
	"github.com/mesh-intelligence/hoard/internal/store"
	"github.com/mesh-intelligence/hoard/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errNotFound marks lookups that found nothing. It maps to exitUserError.
var errNotFound = errors.New("not found")

// userError marks errors caused by how the command was invoked.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

// minArgs is cobra.MinimumNArgs reporting a user error.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return userError{err}
		}
		return nil
	}
}

// noArgs is cobra.NoArgs reporting a user error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return userError{err}
	}
	return nil
}

// requireFlag fails when the named string flag is blank.
func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return usageErrorf("required flag --%s not set", name)
	}
	return nil
}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	root      string
	scheme    string
	jsonMode  bool
	output    string
	logLevel  string
}

// app carries the state shared by one command invocation.
type app struct {
	flags     rootFlags
	configDir string
	cfg       *viper.Viper
	log       *slog.Logger
}

// NewRootCmd creates the top-level "hoard" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "hoard",
		Short: "A filesystem store for generated reference images",
		Long: "Hoard keeps AI-generated reference images (tokens, portraits, miniatures,\n" +
			"close-ups) in a directory tree derived from each entity's classification.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return userError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.root, "root", "", "image root directory (default: $(CWD)/.hoard-images)")
	pf.StringVar(&a.flags.scheme, "scheme", "", "directory layout: kind or genre")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVarP(&a.flags.output, "output", "o", "text", "output format: text, json or yaml")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newSaveCmd(a))
	root.AddCommand(newMetaCmd(a))
	root.AddCommand(newPromptCmd(a))
	root.AddCommand(newExistsCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newFindCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newIndexCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var ue userError
	var ce codeError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &ce):
		return ce.code
	case errors.As(err, &ue),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, errNotFound),
		strings.HasPrefix(err.Error(), "unknown command"):
		return exitUserError
	}
	return exitSysError
}

// codeError carries an explicit exit code for a failure that was already
// reported to the user.
type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string { return e.msg }

// load reads config.yaml and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	a.configDir = dir
	a.cfg = cfg
	useOutput(cmd.OutOrStdout())

	level := a.flags.logLevel
	if level == "" {
		level = cfg.GetString(cfgKeyLogLevel)
	}
	log, err := newLogger(cmd.ErrOrStderr(), level, cfg.GetString(cfgKeyLogFormat))
	if err != nil {
		return userError{err}
	}
	a.log = log
	return nil
}

// storeConfig resolves the image root and scheme from flags, config and
// environment.
func (a *app) storeConfig() (types.Config, error) {
	root, err := paths.ResolveRoot(a.flags.root, a.cfg.GetString(cfgKeyRoot))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve root: %w", err)
	}
	raw := a.flags.scheme
	if raw == "" {
		raw = a.cfg.GetString(cfgKeyScheme)
	}
	scheme, err := types.ParseScheme(raw)
	if err != nil {
		return types.Config{}, err
	}
	return types.Config{Root: root, Scheme: scheme}, nil
}

// openStore constructs the image store for this invocation.
func (a *app) openStore() (*store.Store, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.New(cfg, store.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.log.Debug("store opened", "root", s.Root(), "scheme", string(s.Scheme()))
	return s, nil
}

// catalogPath resolves the SQLite catalog location.
func (a *app) catalogPath() (string, error) {
	return paths.ResolveCatalog(a.cfg.GetString(cfgKeyCatalog))
}

// openCatalog opens the SQLite catalog. The caller must Close it.
func (a *app) openCatalog() (*catalog.Catalog, error) {
	path, err := a.catalogPath()
	if err != nil {
		return nil, fmt.Errorf("resolve catalog: %w", err)
	}
	return catalog.Open(path, catalog.WithLogger(a.log))
}

// format returns the requested output format.
func (a *app) format() (outputFormat, error) {
	if a.flags.jsonMode {
		return formatJSON, nil
	}
	return parseOutputFormat(a.flags.output)
}
