package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docharvest/pkg/auth"
	"docharvest/pkg/config"
	"docharvest/pkg/harvester"
	"docharvest/pkg/logger"
	"docharvest/pkg/traversal"
	"docharvest/pkg/ui"
	"docharvest/pkg/ui/tui"
)

var (
	// Run command flags
	source       string
	detectorKind string
	downloadDir  string
	accountName  string
	settleWait   time.Duration
	quiescence   time.Duration
	cadence      int
	headless     bool
	resumeRun    bool
	forceRestart bool
	useTUI       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [catalog-url]",
	Short: "Harvest every document of a catalog",
	Long: `Harvest every document of a catalog into the download directory.

The catalog URL comes from the argument, the configuration file or
DOCHARVEST_CATALOG_URL. Catalogs behind a login use the session cookie
stored with 'docharvest auth login', DOCHARVEST_COOKIE or catalog.cookie.

An interrupted run leaves a checkpoint behind. The next run of the same
catalog must either --resume it or --force-restart.`,
	Example: `  # Harvest the default catalog with a visible browser
  docharvest run

  # Harvest a JSON catalog with the polling detector
  docharvest run https://catalog.example/api/documents --source http --detector poll

  # Resume an interrupted run in the interactive view
  docharvest run --resume --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addRunFlags(runCmd)
	// The same flags on the root command make "run" the default
	addRunFlags(rootCmd)

	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && isKnownCommand(args[0]) {
			return cmd.Help()
		}
		if len(args) > 1 {
			return cmd.Help()
		}
		return runHarvest(cmd, args)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&source, "source", "", "catalog surface: browser or http")
	f.StringVar(&detectorKind, "detector", "", "download completion detector: watch or poll")
	f.StringVarP(&downloadDir, "dir", "d", "", "download directory")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored session")
	f.DurationVar(&settleWait, "timeout", 0, "maximum wait for each download to settle")
	f.DurationVar(&quiescence, "quiescence", 0, "time a file size must stay unchanged to count as settled")
	f.IntVar(&cadence, "cadence", 0, "advanced entries between catalog expansions")
	f.BoolVar(&headless, "headless", false, "run the browser without a window")
	f.BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	f.BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint and start fresh")
	f.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

func isKnownCommand(arg string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return false
}

// runFlags collects the run flags that were set explicitly
func runFlags(cmd *cobra.Command, args []string) map[string]interface{} {
	flags := globalFlags(cmd)
	if len(args) > 0 {
		flags["url"] = args[0]
	}
	if source != "" {
		flags["source"] = source
	}
	if detectorKind != "" {
		flags["detector"] = detectorKind
	}
	if downloadDir != "" {
		flags["dir"] = downloadDir
	}
	if settleWait > 0 {
		flags["timeout"] = settleWait
	}
	if quiescence > 0 {
		flags["quiescence"] = quiescence
	}
	if cadence > 0 {
		flags["cadence"] = cadence
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, runFlags(cmd, args))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	// The interactive view owns the terminal
	if useTUI && cfg.Logging.File == "" {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("docharvest starting")

	if err := applySession(cfg, log); err != nil {
		return err
	}

	if !useTUI && !quiet {
		ui.PrintInfo("Catalog", cfg.Catalog.URL)
		ui.PrintInfo("Download directory", cfg.Download.Directory)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []harvester.Option{
		harvester.WithLogger(log),
		harvester.WithObserver(ui.NewRunNotifier(ui.NewNotifier(), cfg.Notifications)),
	}

	var (
		terminal *tui.TUI
		tuiDone  chan error
	)
	switch {
	case useTUI:
		terminal = tui.NewTUI(cfg.Catalog.URL, stop)
		tuiDone = make(chan error, 1)
		// Send blocks until the program runs, so start it before the engine
		go func() { tuiDone <- terminal.Start() }()
		opts = append(opts, harvester.WithObserver(terminal))
	case !quiet:
		opts = append(opts, harvester.WithObserver(ui.NewProgressDisplay(cfg.Catalog.URL, cfg.Logging.Level == "debug")))
	}

	state, err := harvester.New(cfg, opts...).Run(ctx, harvester.RunOptions{
		Resume:       resumeRun,
		ForceRestart: forceRestart,
	})

	if terminal != nil {
		terminal.Stop()
		if tuiErr := <-tuiDone; tuiErr != nil {
			log.WithError(tuiErr).Error("TUI failed")
		}
	}

	return finish(cfg, state, err)
}

// applySession fills in the catalog cookie from the credential stores when
// the configuration carries none
func applySession(cfg *config.Config, log logger.Logger) error {
	if cfg.Catalog.Cookie != "" && accountName == "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential stores unavailable")
		if accountName != "" {
			return err
		}
		return nil
	}

	var session *auth.Session
	if accountName != "" {
		session, err = manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Session not found", accountName)
			ui.PrintInfo("Stored sessions", "Use 'docharvest auth list' to see them")
			return err
		}
	} else if session, err = manager.RetrieveDefault(); err != nil {
		log.Debug("No stored session, continuing without cookie")
		return nil
	}

	cfg.Catalog.Cookie = session.Cookie
	if session.UserAgent != "" {
		cfg.Catalog.UserAgent = session.UserAgent
	}
	log.WithField("session", session.Name).Info("Using stored session")
	return nil
}

// finish reports the outcome of a run and chooses the exit status
func finish(cfg *config.Config, state *traversal.RunState, err error) error {
	switch {
	case errors.Is(err, harvester.ErrCheckpointExists):
		if !quiet {
			fmt.Printf("\n%s Previous run of this catalog was interrupted\n", ui.Yellow("►"))
			fmt.Printf("  Use: %s to continue where you left off\n", ui.Green("--resume"))
			fmt.Printf("  Use: %s to start fresh\n\n", ui.Yellow("--force-restart"))
		}
		return err
	case state == nil:
		ui.PrintError("Harvest failed", err)
		return err
	}

	if cfg.Output.Summary && !quiet {
		ui.RenderSummary(os.Stdout, state)
	}

	switch {
	case errors.Is(err, context.Canceled):
		ui.PrintWarning("Run interrupted", "resume with --resume")
		return err
	case err != nil:
		ui.PrintError("Harvest aborted", err)
		return err
	}

	ui.PrintSuccess("Harvest complete")
	return nil
}
