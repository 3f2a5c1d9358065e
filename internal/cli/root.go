// Package cli provides the command-line interface for pricewatch.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pricewatch/internal/checker"
	"pricewatch/internal/config"
	"pricewatch/internal/extract"
	"pricewatch/internal/logging"
	"pricewatch/internal/notify"
	"pricewatch/internal/render"
	"pricewatch/internal/retailer"
	"pricewatch/internal/security"
	"pricewatch/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-18"
)

// App holds the application dependencies. They are built once the root
// command's flags are parsed.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *retailer.Registry
	Store    store.ProductStore
	Archive  store.ObservationStore
	Engine   *extract.Engine
	Checker  *checker.Checker
	Notifier *notify.MultiNotifier

	renderer render.Renderer
	sleep    func(ctx context.Context, d time.Duration) error
	clock    func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithRenderer replaces the HTTP renderer.
func WithRenderer(r render.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithSleep replaces every wait (retry backoff and request pacing).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *App) { a.sleep = sleep }
}

// WithClock replaces the time source of check passes and display.
func WithClock(clock func() time.Time) Option {
	return func(a *App) { a.clock = clock }
}

// NewApp creates an App with the built-in retailer registry.
func NewApp(opts ...Option) *App {
	app := &App{
		Registry: retailer.Default(),
		Logger:   zerolog.Nop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Execute runs the command line and releases the app's stores afterwards,
// whether or not the command succeeded.
func Execute(ctx context.Context, args []string, opts ...Option) error {
	app := NewApp(opts...)
	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Track product prices across retailers",
		Long: `pricewatch tracks product prices across several retailers and alerts
when any of them drops to or below your target price.

Add a product with one or more retailer URLs, then run 'pricewatch check'
periodically (cron, systemd timer) to refresh prices.

Use 'pricewatch retailers' to see which sites are supported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file or directory (default: ~/.config/pricewatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addProductCommands(rootCmd, app)
	addCheckCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// init loads configuration and builds the logger. Storage is opened on
// demand by the commands that need it.
func (a *App) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	a.Config = cfg

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		cfg.Scraper.Debug = true
	}

	lc := logging.FromConfig(cfg)
	lc.ConsoleOut = cmd.ErrOrStderr()
	a.Logger = logging.NewLoggerWithConfig(lc)
	a.Logger.Debug().Str("config", cfg.Path).Msg("Configuration loaded")

	cmd.SetContext(logging.WithLogger(cmd.Context(), logging.WithOperation(a.Logger, cmd.Name())))
	return nil
}

// loadConfig accepts either a config file or a directory holding config.toml.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load("")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return config.Load(path)
	}
	if filepath.Ext(path) == "" {
		return config.Load(path)
	}
	return config.LoadFile(path)
}

// openStore opens the product store and the archive.
func (a *App) openStore() error {
	if a.Store != nil {
		return nil
	}
	cfg := a.Config

	js, err := store.NewJSONStore(store.JSONOptions{
		Path:          cfg.Storage.DataFile,
		EnableHistory: cfg.History.Enabled,
		MaxHistory:    cfg.History.MaxEntries,
		Logger:        a.Logger,
	})
	if err != nil {
		return fmt.Errorf("opening product store: %w", err)
	}
	a.Store = js

	if cfg.Storage.ArchiveEnabled {
		archive, err := store.NewSQLiteArchive(cfg.Storage.ArchivePath)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to open observation archive, continuing without it")
		} else {
			a.Archive = archive
		}
	}
	return nil
}

// openChecker builds the extraction engine, the notifier and the checker.
func (a *App) openChecker(cmd *cobra.Command) error {
	if a.Checker != nil {
		return nil
	}
	if err := a.openStore(); err != nil {
		return err
	}
	a.openEngine()

	notifier, err := notify.NewMultiNotifier(a.Config.Notifications, a.Logger)
	if err != nil {
		return err
	}
	output := NewOutput(cmd)
	if !output.IsJSON() {
		notifier.AddChannel(notify.NewTerminalChannel(cmd.OutOrStdout(), output.colorEnabled))
	}
	a.Notifier = notifier

	opts := []checker.Option{checker.WithNotifier(notifier), checker.WithClock(a.clock)}
	if a.Archive != nil {
		opts = append(opts, checker.WithArchive(a.Archive))
	}
	if a.sleep != nil {
		opts = append(opts, checker.WithSleep(a.sleep))
	}
	a.Checker = checker.New(a.Engine, a.Store,
		checker.Config{DelayBetweenRequests: a.Config.Scraper.DelayBetweenRequests},
		a.Logger, opts...)
	return nil
}

func (a *App) openEngine() {
	if a.Engine != nil {
		return
	}
	r := a.renderer
	if r == nil {
		r = render.NewHTTPRenderer(render.HTTPConfig{
			UserAgent:      a.Config.Scraper.UserAgent,
			RequestTimeout: a.Config.Scraper.RequestTimeout,
			SettleDelay:    a.Config.Scraper.SettleDelay,
		}, a.Logger)
	}

	var opts []extract.Option
	if a.sleep != nil {
		opts = append(opts, extract.WithSleep(a.sleep))
	}
	ecfg := extract.DefaultConfig()
	if a.Config.Scraper.MaxRetries > 0 {
		ecfg.MaxAttempts = a.Config.Scraper.MaxRetries
	}
	if a.Config.Scraper.RetryBaseDelay > 0 {
		ecfg.BaseDelay = a.Config.Scraper.RetryBaseDelay
	}
	a.Engine = extract.NewEngine(a.Registry, r, ecfg, a.Logger, opts...)
}

// Close releases the stores. It drains pending writes.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
		a.Store = nil
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.Archive = nil
	}
	a.Checker = nil
	return firstErr
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRetailersCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("pricewatch v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newRetailersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retailers",
		Short: "List supported retailers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			descs := app.Registry.Descriptors()

			if output.IsJSON() {
				type row struct {
					Key    string `json:"key"`
					Name   string `json:"name"`
					Domain string `json:"domain"`
				}
				rows := make([]row, 0, len(descs))
				for _, d := range descs {
					rows = append(rows, row{Key: d.Key, Name: d.Name, Domain: d.Domain})
				}
				return output.JSON(rows)
			}

			table := NewTable(output, "KEY", "RETAILER", "DOMAIN", "SELECTORS")
			for _, d := range descs {
				table.AddRow(d.Key, d.Name, d.Domain, fmt.Sprintf("%d", len(d.PriceSelectors)))
			}
			table.Render()
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the pricewatch configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := redactedConfig(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			return showConfig(output, cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"config":  app.Config.Path,
					"data":    app.Config.Storage.DataFile,
					"archive": app.Config.Storage.ArchivePath,
				})
			}
			output.Println(app.Config.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Scraper")
	output.Printf("  Max Retries:      %d\n", cfg.Scraper.MaxRetries)
	output.Printf("  Request Timeout:  %s\n", cfg.Scraper.RequestTimeout)
	output.Printf("  Settle Delay:     %s\n", cfg.Scraper.SettleDelay)
	output.Printf("  Request Delay:    %s\n", cfg.Scraper.DelayBetweenRequests)
	output.Printf("  Retry Base Delay: %s\n", cfg.Scraper.RetryBaseDelay)
	output.Printf("  Debug:            %v\n", cfg.Scraper.Debug)
	output.Println()

	output.Bold("History")
	output.Printf("  Enabled:          %v\n", cfg.History.Enabled)
	output.Printf("  Max Entries:      %d\n", cfg.History.MaxEntries)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Data File:        %s\n", cfg.Storage.DataFile)
	output.Printf("  Archive:          %v\n", cfg.Storage.ArchiveEnabled)
	output.Printf("  Archive Path:     %s\n", cfg.Storage.ArchivePath)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	if cfg.Notifications.Webhook.URL != "" {
		output.Printf("  Webhook URL:      %s\n", cfg.Notifications.Webhook.URL)
	}
	output.Printf("  Shoutrrr:         %v (%d url(s))\n", cfg.Notifications.Shoutrrr.Enabled, len(cfg.Notifications.Shoutrrr.URLs))
	for _, u := range cfg.Notifications.Shoutrrr.URLs {
		output.Printf("    %s\n", u)
	}

	return nil
}

// redactedConfig returns a copy of cfg with notification credentials masked.
func redactedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	if c.Notifications.Webhook.URL != "" {
		c.Notifications.Webhook.URL = security.RedactURL(c.Notifications.Webhook.URL)
	}
	c.Notifications.Shoutrrr.URLs = security.RedactURLs(c.Notifications.Shoutrrr.URLs)
	return &c
}
