package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize hoard configuration and image root",
		Long: "Create the configuration directory, config.yaml and the image root.\n" +
			"Values passed with --root or --scheme are saved to config.yaml.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return fmt.Errorf("create image root: %w", err)
	}
	catalogPath, err := a.catalogPath()
	if err != nil {
		return fmt.Errorf("resolve catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(catalogPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	configPath := filepath.Join(a.configDir, configFileExt)
	if cmd.Flags().Changed("root") || cmd.Flags().Changed("scheme") {
		a.cfg.Set(cfgKeyRoot, cfg.Root)
		a.cfg.Set(cfgKeyScheme, string(cfg.Scheme))
		if err := a.cfg.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		a.log.Info("config saved", "path", configPath)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, style.Title.Render("hoard initialized"))
	field(out, "config", configPath)
	field(out, "root", cfg.Root)
	field(out, "scheme", cfg.Scheme)
	field(out, "catalog", catalogPath)
	return nil
}
