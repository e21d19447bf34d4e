package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/domain"
)

// NewReplacementCommand creates the replacement command group.
func NewReplacementCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replacement",
		Short: "Record failed placements and their replacements",
	}
	cmd.AddCommand(newReplacementOpenCommand(rootOpts))
	cmd.AddCommand(newReplacementResolveCommand(rootOpts))
	cmd.AddCommand(newReplacementListCommand(rootOpts))
	return cmd
}

func newReplacementOpenCommand(rootOpts *RootOptions) *cobra.Command {
	var candidateRef, reason, plannedStart string
	cmd := &cobra.Command{
		Use:   "open <request-code|id>",
		Short: "Record that the placed candidate failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				c, err := lookupCandidate(ctx, app, candidateRef)
				if err != nil {
					return err
				}
				start, err := parseTimeFlag("planned_start", plannedStart, app.Config.Location())
				if err != nil {
					return err
				}
				rp, err := app.Engine.OpenReplacement(ctx, r.ID, c.ID, reason, start)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(rp, func(w io.Writer) {
					okLine(w, "Opened replacement %d on %s for %s", rp.ID, r.Code, c.Code)
				})
			})
		},
	}
	cmd.Flags().StringVar(&candidateRef, "candidate", "", "failing candidate code or ID")
	cmd.Flags().StringVar(&reason, "reason", "", "why the placement failed")
	cmd.Flags().StringVar(&plannedStart, "planned-start", "", "planned start date of the replacement")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func newReplacementResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var candidateRef, start string
	var newOpportunity bool
	cmd := &cobra.Command{
		Use:   "resolve <replacement-id>",
		Short: "Assign the candidate replacing a failed placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return domain.NewValidationError("replacement_id", "replacement ID must be a number")
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupCandidate(ctx, app, candidateRef)
				if err != nil {
					return err
				}
				startAt, err := parseTimeFlag("start", start, app.Config.Location())
				if err != nil {
					return err
				}
				rp, err := app.Engine.ResolveReplacement(ctx, id, c.ID, startAt, newOpportunity)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(rp, func(w io.Writer) {
					okLine(w, "Resolved replacement %d with %s", rp.ID, c.Code)
				})
			})
		},
	}
	cmd.Flags().StringVar(&candidateRef, "candidate", "", "replacing candidate code or ID")
	cmd.Flags().StringVar(&start, "start", "", "start date of the replacing candidate")
	cmd.Flags().BoolVar(&newOpportunity, "new-opportunity", false, "count the replacement as a new opportunity")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func newReplacementListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <request-code|id>",
		Short: "List the replacements of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				reps, err := app.Engine.Replacements(ctx, r.ID)
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(reps, func(w io.Writer) {
					rows := make([][]string, len(reps))
					for i, rp := range reps {
						replacing := ""
						if rp.NewCandidateID != nil {
							replacing = strconv.FormatInt(*rp.NewCandidateID, 10)
						}
						rows[i] = []string{strconv.FormatInt(rp.ID, 10), strconv.FormatInt(rp.OldCandidateID, 10),
							replacing, rp.Reason, formatTime(rp.FailedAt, loc), formatTimePtr(rp.ResolvedAt, loc)}
					}
					renderTable(w, []string{"ID", "Failed candidate", "Replacing candidate", "Reason", "Failed", "Resolved"}, rows)
				})
			})
		},
	}
}
