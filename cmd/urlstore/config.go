package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstore/internal/config"
	"github.com/vango-dev/urlstore/internal/errors"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage " + config.ConfigFileName,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), configDir, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, environment included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configDir)
			if err != nil {
				return err
			}
			return runConfigShow(cmd.OutOrStdout(), cfg)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			source := cfg.Path()
			if source == "" {
				source = "defaults"
			}
			success(cmd.OutOrStdout(), "Configuration is valid (%s)", source)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, validateCmd)
	return cmd
}

func runConfigInit(w io.Writer, dir string, force bool) error {
	if config.Exists(dir) && !force {
		return errors.New(errors.CodeConfigWrite).
			WithDetail(config.ConfigFileName + " already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}
	path := filepath.Join(dir, config.ConfigFileName)
	if err := config.New().SaveTo(path); err != nil {
		return err
	}
	success(w, "Wrote %s", path)
	return nil
}

func runConfigShow(w io.Writer, cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
