package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/domain"
)

// NewCandidateCommand creates the candidate command group.
func NewCandidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidate",
		Short: "Register, find and track candidates",
	}
	cmd.AddCommand(newCandidateAddCommand(rootOpts))
	cmd.AddCommand(newCandidateFindCommand(rootOpts))
	cmd.AddCommand(newCandidateShowCommand(rootOpts))
	cmd.AddCommand(newCandidateStateCommand(rootOpts))
	cmd.AddCommand(newCandidateLogCommand(rootOpts))
	return cmd
}

func newCandidateAddCommand(rootOpts *RootOptions) *cobra.Command {
	var attrs domain.CandidateAttrs
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Register a candidate",
		Example: `  placement candidate add --national-id 001-1234567-8 --name "Ana Peña" --phone 809-555-0101`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := app.Candidates.Create(ctx, attrs)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(c, func(w io.Writer) {
					okLine(w, "Registered candidate %s (%s)", c.Code, c.FullName)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&attrs.NationalID, "national-id", "", "national ID (11 digits, separators allowed)")
	f.StringVar(&attrs.FullName, "name", "", "full name")
	f.StringVar(&attrs.Phone, "phone", "", "phone number")
	f.StringVar(&attrs.Email, "email", "", "email address")
	f.StringVar(&attrs.Experience, "experience", "", "work experience")
	f.StringVar(&attrs.Availability, "availability", "", "availability")
	f.StringVar(&attrs.Skills, "skills", "", "skills")
	f.BoolVar(&attrs.HasReferences, "references", false, "candidate has references")
	f.BoolVar(&attrs.SleepsIn, "sleeps-in", false, "candidate accepts live-in work")
	_ = cmd.MarkFlagRequired("national-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func candidateRows(candidates []domain.Candidate) [][]string {
	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		rows[i] = []string{c.Code, c.FullName, c.NationalID, c.Phone, string(c.State)}
	}
	return rows
}

var candidateHeader = []string{"Code", "Name", "National ID", "Phone", "State"}

func newCandidateFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <query>",
		Short: "Find candidates by name, code, phone or national ID",
		Long: `Find candidates. A query shaped like a candidate code matches that code
exactly; otherwise every name word must appear in the candidate's name
(accents and case ignored) or the query digits must appear in the phone
or national ID.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				found, err := app.Candidates.Find(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(found, func(w io.Writer) {
					renderTable(w, candidateHeader, candidateRows(found))
				})
			})
		},
	}
}

func newCandidateShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code|id>",
		Short: "Show a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupCandidate(ctx, app, args[0])
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(c, func(w io.Writer) {
					fields := [][2]string{
						{"Code", c.Code},
						{"Name", c.FullName},
						{"National ID", c.NationalID},
						{"Phone", c.Phone},
						{"Email", c.Email},
						{"Skills", c.Skills},
						{"References", yesNo(c.HasReferences)},
						{"Sleeps in", yesNo(c.SleepsIn)},
						{"State", string(c.State)},
						{"Changed", formatTime(c.StateChangedAt, loc) + " by " + c.StateChangedBy},
					}
					if c.DisqualifyNote != "" {
						fields = append(fields, [2]string{"Note", c.DisqualifyNote})
					}
					renderFields(w, fields)
				})
			})
		},
	}
}

func newCandidateStateCommand(rootOpts *RootOptions) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "state <code|id> <state>",
		Short: "Change a candidate's state",
		Long: `Change a candidate's state. Disqualifying requires --note.

States: in_process, enrollment_in_process, enrolled, enrolled_incomplete,
ready_to_work, working, disqualified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := domain.ParseCandidateState(args[1])
			if err != nil {
				return err
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupCandidate(ctx, app, args[0])
				if err != nil {
					return err
				}
				c, err = app.Candidates.ChangeState(ctx, c.ID, state, rootOpts.actor(), note)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(c, func(w io.Writer) {
					okLine(w, "Candidate %s is now %s", c.Code, c.State)
				})
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "reason for the change (required to disqualify)")
	return cmd
}

func newCandidateLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <code|id>",
		Short: "Show a candidate's state changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupCandidate(ctx, app, args[0])
				if err != nil {
					return err
				}
				changes, err := app.Candidates.StateLog(ctx, c.ID)
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(changes, func(w io.Writer) {
					rows := make([][]string, len(changes))
					for i, ch := range changes {
						rows[i] = []string{formatTime(ch.ChangedAt, loc), string(ch.FromState), string(ch.ToState), ch.Actor, ch.Note}
					}
					renderTable(w, []string{"When", "From", "To", "By", "Note"}, rows)
				})
			})
		},
	}
}
