package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docharvest/pkg/config"
	"docharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage docharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (DOCHARVEST_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with every option",
	Long: `Create a configuration file holding the default value of every option.

The file is created as '.docharvest.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

The session cookie is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value ranges
  - Path accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".docharvest.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		return fmt.Errorf("%s already exists", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ui.PrintError("Failed to write configuration", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration written to " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set catalog.url and the selectors of your catalog")
	fmt.Println("2. Run 'docharvest config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'docharvest run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	display := *cfg
	if display.Catalog.Cookie != "" {
		display.Catalog.Cookie = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	fmt.Println(ui.Magenta("Current Configuration"))
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (" + config.EnvPrefix + "*)")
	if path := configPath(); path != "" {
		fmt.Printf("3. Configuration file: %s\n", path)
	} else {
		fmt.Println("3. Configuration file: (none found)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if path == "" {
		ui.PrintError("No configuration file found", "Specify a file with --config flag")
		return errors.New("no configuration file found")
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var warnings, problems []string

	if err := os.MkdirAll(cfg.Download.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create download directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if cfg.Catalog.Source == config.SourceBrowser && cfg.Download.Workers > 1 {
		warnings = append(warnings, "download.workers only applies to the http source")
	}
	if cfg.Download.Timeout < 10*cfg.Download.QuiescenceWindow {
		warnings = append(warnings, "download.timeout leaves little room after the quiescence window")
	}
	if !cfg.Checkpoint.Enabled {
		warnings = append(warnings, "checkpoints are disabled, interrupted runs start over")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errors.New("configuration has errors")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Catalog: %s (%s)\n", cfg.Catalog.URL, cfg.Catalog.Source)
	fmt.Printf("  Download directory: %s\n", cfg.Download.Directory)
	fmt.Printf("  Detector: %s, timeout %s, quiescence %s\n", cfg.Download.Detector, cfg.Download.Timeout, cfg.Download.QuiescenceWindow)
	fmt.Printf("  Expansion cadence: %d\n", cfg.Traversal.ExpansionCadence)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// configPath is the --config file, or the first one found in the standard
// locations
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}
