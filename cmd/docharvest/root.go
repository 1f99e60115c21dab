package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"docharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docharvest [catalog-url]",
	Short: "Download every document of a paginated web catalog",
	Long: `docharvest walks a paginated document catalog one entry at a time,
triggers each download, waits for the file to settle on disk and renames it
after the entry's title.

Features:
  - Chrome automation for catalogs that only exist as a web page
  - JSON catalog client with rate limiting and retries
  - Event-driven or polling download completion detection
  - Resumable runs through checkpoints
  - Run manifest and summary table
  - Session cookies kept in the system keychain`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logLevel = "debug"
		}
		if quiet {
			logLevel = "error"
		}
		if !quiet && !useTUI && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .docharvest.yaml or ~/.config/docharvest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.SetVersionTemplate(`docharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that were set explicitly
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}
	return flags
}
