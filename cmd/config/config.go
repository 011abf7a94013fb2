// Package config implements the config subcommands.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/internal/conf"
)

// SkipSettings marks commands that run without loading settings.
const SkipSettings = "fieldlog/skip-settings"

// Command creates the config command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand())
	return cmd
}

func initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init [PATH]",
		Short:       "Write a config.yaml holding the default settings",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{SkipSettings: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := conf.SaveYAMLConfig(path, conf.Defaults()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	paths := conf.GetDefaultConfigPaths()
	if len(paths) > 1 {
		return filepath.Join(paths[1], "config.yaml")
	}
	return filepath.Join(paths[0], "config.yaml")
}
