package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/config"
	"github.com/roach88/placement/internal/directory"
	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/engine"
	"github.com/roach88/placement/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	ConfigPath string
	EnvFile    string
	Actor      string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the placement CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Staffing request lifecycle",
		Long: `Manage clients, candidates and staffing requests: open requests,
move them through their lifecycle, track failed placements and their
replacements, and publish eligible requests once a day.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file read before the config")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "user the recorded changes are attributed to")

	cmd.AddCommand(NewClientCommand(opts))
	cmd.AddCommand(NewCandidateCommand(opts))
	cmd.AddCommand(NewRequestCommand(opts))
	cmd.AddCommand(NewReplacementCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported through the output formatter.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	format, _ := cmd.PersistentFlags().GetString("format")
	if !slices.Contains(ValidFormats, format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	return f.Fail(err)
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// App bundles the components a command works with.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      *store.Store
	Engine     *engine.Engine
	Clients    *directory.ClientDirectory
	Candidates *directory.CandidateDirectory
}

// Close releases the database.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("error closing database", "error", err)
	}
}

// loadConfig reads the dotenv file and the CUE config, then applies flag
// overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.EnvFile != "" {
		if err := config.LoadDotEnv(o.EnvFile); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load env file", err)
		}
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// open loads configuration and opens the store.
func (o *RootOptions) open(cmd *cobra.Command) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	candidateMatcher := cfg.CandidateMatcher()
	dirOpts := []directory.Option{directory.WithLogger(logger), directory.WithMatcher(candidateMatcher)}
	return &App{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Engine: engine.New(st,
			engine.WithLogger(logger),
			engine.WithLocation(cfg.Location()),
			engine.WithCandidateMatcher(candidateMatcher),
			engine.WithRequestMatcher(cfg.RequestMatcher()),
		),
		Clients:    directory.NewClientDirectory(st, dirOpts...),
		Candidates: directory.NewCandidateDirectory(st, dirOpts...),
	}, nil
}

// commandContext returns the command context carrying the acting user.
func (o *RootOptions) commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Actor == "" {
		return ctx
	}
	return engine.WithActor(ctx, o.Actor)
}

// actor returns the acting user, defaulting to the system actor.
func (o *RootOptions) actor() string {
	if o.Actor == "" {
		return domain.SystemActor
	}
	return o.Actor
}

// withApp opens the app, runs fn and closes the app.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(o.commandContext(cmd), app)
}
