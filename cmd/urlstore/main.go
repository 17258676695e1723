package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstore/internal/config"
	"github.com/vango-dev/urlstore/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configDir is the directory searched for urlstore.json.
var configDir string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var coded *errors.Error
		if errors.As(err, &coded) {
			errors.Print(os.Stderr, coded)
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "urlstore",
		Short: "Query-string state stores and a shareable location host",
		Long: `urlstore keeps application state in the URL query string.

The command line tools work on URLs directly:

  • canonicalize navigation paths
  • inspect and rewrite query strings the way query stores do
  • resolve route ids with parameters
  • serve an in-memory history over HTTP and websocket
  • watch and drive a served history remotely`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "C", ".", "Directory containing "+config.ConfigFileName)

	rootCmd.AddCommand(
		canonCmd(),
		inspectCmd(),
		setCmd(),
		routeCmd(),
		serveCmd(),
		watchCmd(),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig resolves the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// argError reports a malformed command line argument.
func argError(format string, args ...any) error {
	return errors.New(errors.CodeInvalidArgument).WithDetailf(format, args...)
}
