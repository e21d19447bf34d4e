package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/domain"
	"github.com/roach88/placement/internal/engine"
)

// NewRequestCommand creates the request command group.
func NewRequestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Open requests and move them through their lifecycle",
	}
	cmd.AddCommand(newRequestCreateCommand(rootOpts))
	cmd.AddCommand(newRequestListCommand(rootOpts))
	cmd.AddCommand(newRequestFindCommand(rootOpts))
	cmd.AddCommand(newRequestShowCommand(rootOpts))
	cmd.AddCommand(newRequestTransitionCommand(rootOpts))
	cmd.AddCommand(newRequestHistoryCommand(rootOpts))
	cmd.AddCommand(newRequestEventsCommand(rootOpts))
	return cmd
}

func newRequestCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		clientRef string
		attrs     domain.RequestAttrs
	)
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Open a request for a client",
		Example: `  placement request create --client C001 --position Niñera --modality live_in`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				client, err := lookupClient(ctx, app, clientRef)
				if err != nil {
					return err
				}
				r, err := app.Engine.CreateRequest(ctx, client.ID, attrs)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(r, func(w io.Writer) {
					okLine(w, "Opened request %s (%s)", r.Code, r.State)
				})
			})
		},
	}
	cmd.Flags().StringVar(&clientRef, "client", "", "client code or ID")
	cmd.Flags().StringVar(&attrs.Position, "position", "", "position to fill")
	cmd.Flags().StringVar(&attrs.Modality, "modality", "", "live_in, live_out or hourly")
	cmd.Flags().StringVar(&attrs.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

var listingHeader = []string{"Code", "Client", "Position", "State", "Version", "Last published"}

func renderListings(w io.Writer, listings []domain.RequestListing, app *App) {
	loc := app.Config.Location()
	rows := make([][]string, len(listings))
	for i, l := range listings {
		rows[i] = []string{l.Code, l.ClientName, l.Position, string(l.State),
			strconv.FormatInt(l.Version, 10), formatTimePtr(l.LastPublishedAt, loc)}
	}
	renderTable(w, listingHeader, rows)
}

func newRequestListCommand(rootOpts *RootOptions) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.RequestState
			if state != "" {
				st, err := domain.ParseRequestState(state)
				if err != nil {
					return err
				}
				filter = st
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				listings, err := app.Engine.ListRequests(ctx)
				if err != nil {
					return err
				}
				if filter != "" {
					kept := listings[:0]
					for _, l := range listings {
						if l.State == filter {
							kept = append(kept, l)
						}
					}
					listings = kept
				}
				return rootOpts.formatter(cmd).Success(listings, func(w io.Writer) {
					renderListings(w, listings, app)
				})
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only list requests in this state")
	return cmd
}

func newRequestFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <query>",
		Short: "Find requests by code, client name, position or client phone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				found, err := app.Engine.FindRequest(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(found, func(w io.Writer) {
					renderListings(w, found, app)
				})
			})
		},
	}
}

// requestDetail is the JSON shape of request show.
type requestDetail struct {
	domain.Request
	Allowed []engine.Action `json:"allowed_actions"`
}

func newRequestShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code|id>",
		Short: "Show a request and the actions allowed from its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				detail := requestDetail{Request: r, Allowed: engine.Allowed(r.State)}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(detail, func(w io.Writer) {
					fields := [][2]string{
						{"Code", r.Code},
						{"Position", r.Position},
						{"Modality", string(r.Modality)},
						{"State", string(r.State)},
						{"Plan", string(r.Plan)},
						{"Deposit", r.Deposit.String()},
						{"Created", formatTime(r.CreatedAt, loc)},
						{"Modified", formatTime(r.LastModifiedAt, loc)},
						{"Last published", formatTimePtr(r.LastPublishedAt, loc)},
						{"Version", strconv.FormatInt(r.Version, 10)},
					}
					if r.AmountPaid != nil {
						fields = append(fields, [2]string{"Amount paid", r.AmountPaid.String()})
					}
					if r.CancellationReason != "" {
						fields = append(fields, [2]string{"Cancelled", r.CancellationReason})
					}
					allowed := make([]string, len(detail.Allowed))
					for i, a := range detail.Allowed {
						allowed[i] = string(a)
					}
					fields = append(fields, [2]string{"Allowed", strings.Join(allowed, ", ")})
					renderFields(w, fields)
				})
			})
		},
	}
}

type transitionFlags struct {
	plan            string
	deposit         string
	candidate       string
	amount          string
	reason          string
	plannedStart    string
	at              string
	expectedVersion int64
}

// payload converts the flags into a transition payload.
func (f transitionFlags) payload(ctx context.Context, app *App) (engine.Payload, error) {
	loc := app.Config.Location()
	p := engine.Payload{
		Amount:          f.amount,
		Reason:          f.reason,
		ExpectedVersion: f.expectedVersion,
	}
	if f.plan != "" {
		plan, err := domain.ParsePlan(f.plan)
		if err != nil {
			return p, err
		}
		p.Plan = plan
	}
	if f.deposit != "" {
		deposit, err := domain.ParseAmount(f.deposit)
		if err != nil {
			return p, err
		}
		p.Deposit = deposit
	}
	if f.candidate != "" {
		c, err := lookupCandidate(ctx, app, f.candidate)
		if err != nil {
			return p, err
		}
		p.CandidateID = c.ID
	}
	start, err := parseTimeFlag("planned_start", f.plannedStart, loc)
	if err != nil {
		return p, err
	}
	p.PlannedStart = start
	at, err := parseTimeFlag("at", f.at, loc)
	if err != nil {
		return p, err
	}
	if at != nil {
		p.At = *at
	}
	return p, nil
}

func newRequestTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	var flags transitionFlags
	actions := make([]string, len(engine.Actions))
	for i, a := range engine.Actions {
		actions[i] = string(a)
	}
	cmd := &cobra.Command{
		Use:   "transition <code|id> <action>",
		Short: "Apply a lifecycle action to a request",
		Long: fmt.Sprintf(`Apply a lifecycle action to a request.

Actions: %s.

reactivate_with_plan takes --plan and --deposit, register_payment takes
--candidate and --amount, cancel takes --reason, open_replacement takes
--candidate, --reason and --planned-start, mark_published takes --at.
--expected-version rejects the action if the request changed since it was
read at that version.`, strings.Join(actions, ", ")),
		Example: `  placement request transition C001-A activate
  placement request transition C001-A register_payment --candidate ABC-000001 --amount 15000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := engine.ParseAction(args[1])
			if err != nil {
				return err
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := flags.payload(ctx, app)
				if err != nil {
					return err
				}
				from := r.State
				r, err = app.Engine.Transition(ctx, r.ID, action, p)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(r, func(w io.Writer) {
					okLine(w, "%s: %s -> %s (version %d)", r.Code, from, r.State, r.Version)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.plan, "plan", "", "plan (basic, standard or premium)")
	f.StringVar(&flags.deposit, "deposit", "", "deposit amount")
	f.StringVar(&flags.candidate, "candidate", "", "candidate code or ID")
	f.StringVar(&flags.amount, "amount", "", "payment amount")
	f.StringVar(&flags.reason, "reason", "", "cancellation or failure reason")
	f.StringVar(&flags.plannedStart, "planned-start", "", "planned start date")
	f.StringVar(&flags.at, "at", "", "publication time (default now)")
	f.Int64Var(&flags.expectedVersion, "expected-version", 0, "reject if the request version differs")
	return cmd
}

func newRequestHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <code|id>",
		Short: "Show the placement timeline of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				entries, err := app.Engine.History(ctx, r.ID)
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(entries, func(w io.Writer) {
					rows := make([][]string, len(entries))
					for i, e := range entries {
						rows[i] = []string{e.Label, e.CandidateName, formatTime(e.Date, loc)}
					}
					renderTable(w, []string{"Placement", "Candidate", "Date"}, rows)
				})
			})
		},
	}
}

func newRequestEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <code|id>",
		Short: "Show the transition log of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				r, err := app.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				events, err := app.Engine.Events(ctx, r.ID)
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(events, func(w io.Writer) {
					rows := make([][]string, len(events))
					for i, e := range events {
						rows[i] = []string{formatTime(e.OccurredAt, loc), e.Action, string(e.FromState),
							string(e.ToState), e.Actor, e.Note}
					}
					renderTable(w, []string{"When", "Action", "From", "To", "By", "Note"}, rows)
				})
			})
		},
	}
}
