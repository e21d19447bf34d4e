package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/scheduler"
)

// NewPublishCommand creates the publish command group.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Select, mark and schedule daily request publication",
	}
	cmd.AddCommand(newPublishEligibleCommand(rootOpts))
	cmd.AddCommand(newPublishMarkCommand(rootOpts))
	cmd.AddCommand(newPublishRunCommand(rootOpts))
	cmd.AddCommand(newPublishServeCommand(rootOpts))
	return cmd
}

// fixedClock pins the publication day for --as-of.
type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// asOf parses the --as-of flag, defaulting to now.
func asOf(raw string, loc *time.Location) (time.Time, error) {
	t, err := parseTimeFlag("as_of", raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Now(), nil
	}
	return *t, nil
}

func newPublishEligibleCommand(rootOpts *RootOptions) *cobra.Command {
	var asOfFlag string
	cmd := &cobra.Command{
		Use:   "eligible",
		Short: "List requests that may be published today",
		Long: `List active and replacement requests not yet published on the given
day, replacement requests first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				loc := app.Config.Location()
				day, err := asOf(asOfFlag, loc)
				if err != nil {
					return err
				}
				eligible, err := app.Engine.EligibleForPublication(ctx, day)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(eligible, func(w io.Writer) {
					rows := make([][]string, len(eligible))
					for i, r := range eligible {
						rows[i] = []string{r.Code, r.Position, string(r.State), formatTimePtr(r.LastPublishedAt, loc)}
					}
					renderTable(w, []string{"Code", "Position", "State", "Last published"}, rows)
				})
			})
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "day to evaluate (default today)")
	return cmd
}

func newPublishMarkCommand(rootOpts *RootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "mark <code|id>",
		Short: "Record that a request was published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				t, err := parseTimeFlag("at", at, app.Config.Location())
				if err != nil {
					return err
				}
				var when time.Time
				if t != nil {
					when = *t
				}
				r, err = app.Engine.MarkPublished(ctx, r.ID, when)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(r, func(w io.Writer) {
					okLine(w, "Marked %s published at %s", r.Code, formatTimePtr(r.LastPublishedAt, app.Config.Location()))
				})
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "publication time (default now)")
	return cmd
}

// newDailyPublisher builds the publication job for app. JSON output writes
// the published requests as JSON lines; text output logs them.
func (o *RootOptions) newDailyPublisher(cmd *cobra.Command, app *App, opts ...scheduler.Option) (*scheduler.DailyPublisher, error) {
	var pub scheduler.Publisher = scheduler.LogPublisher{Logger: app.Logger}
	if o.Format == "json" {
		pub = scheduler.JSONPublisher{W: cmd.ErrOrStderr()}
	}
	opts = append([]scheduler.Option{
		scheduler.WithLogger(app.Logger),
		scheduler.WithLocation(app.Config.Location()),
	}, opts...)
	return scheduler.New(app.Engine, pub, app.Config.PublishSchedule, opts...)
}

func newPublishRunCommand(rootOpts *RootOptions) *cobra.Command {
	var asOfFlag string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish every eligible request once and mark it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				var opts []scheduler.Option
				if asOfFlag != "" {
					day, err := asOf(asOfFlag, app.Config.Location())
					if err != nil {
						return err
					}
					opts = append(opts, scheduler.WithClock(fixedClock(day)))
				}
				job, err := rootOpts.newDailyPublisher(cmd, app, opts...)
				if err != nil {
					return err
				}
				res, err := job.RunOnce(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "publication run failed", err)
				}
				return rootOpts.formatter(cmd).Success(res, func(w io.Writer) {
					okLine(w, "Published %s of %d eligible", formatCount(len(res.Published), "request"), res.Eligible)
					for _, code := range res.Published {
						fmt.Fprintf(w, "  %s\n", code)
					}
					if len(res.Skipped) > 0 {
						fmt.Fprintf(w, "Skipped (changed before marking): %v\n", res.Skipped)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "publication time (default now)")
	return cmd
}

func newPublishServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the publication job on its schedule until interrupted",
		Long: `Run the publication job on the configured cron schedule
(publish_schedule, interpreted in time_zone) until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(parent context.Context, app *App) error {
				job, err := rootOpts.newDailyPublisher(cmd, app)
				if err != nil {
					return err
				}

				ctx, cancel := context.WithCancel(parent)
				defer cancel()

				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sigChan)

				go func() {
					select {
					case sig := <-sigChan:
						app.Logger.Info("received signal, shutting down", "signal", sig)
						cancel()
					case <-ctx.Done():
					}
				}()

				if err := job.Start(ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to start scheduler", err)
				}
				defer job.Stop()

				next := job.Next(time.Now())
				fmt.Fprintf(cmd.OutOrStdout(), "Publishing on %q (%s). Next run %s.\n",
					app.Config.PublishSchedule, app.Config.TimeZone, next.Format(time.RFC3339))
				fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

				<-ctx.Done()
				if err := parent.Err(); err != nil && !errors.Is(err, context.Canceled) {
					return WrapExitError(ExitFailure, "scheduler stopped", err)
				}
				return nil
			})
		},
	}
}
