package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/placement/internal/domain"
)

// NewClientCommand creates the client command group.
func NewClientCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Register and list clients",
	}
	cmd.AddCommand(newClientAddCommand(rootOpts))
	cmd.AddCommand(newClientListCommand(rootOpts))
	cmd.AddCommand(newClientShowCommand(rootOpts))
	cmd.AddCommand(newClientDeleteCommand(rootOpts))
	return cmd
}

func newClientAddCommand(rootOpts *RootOptions) *cobra.Command {
	var attrs domain.ClientAttrs
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a client",
		Example: `  placement client add --code C001 --name "Familia Pérez" --phone 809-555-1234`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := app.Clients.Register(ctx, attrs)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(c, func(w io.Writer) {
					okLine(w, "Registered client %s (%s)", c.Code, c.Name)
				})
			})
		},
	}
	cmd.Flags().StringVar(&attrs.Code, "code", "", "client code (letters and digits)")
	cmd.Flags().StringVar(&attrs.Name, "name", "", "client name")
	cmd.Flags().StringVar(&attrs.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&attrs.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newClientListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clients by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				clients, err := app.Clients.List(ctx)
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(clients, func(w io.Writer) {
					rows := make([][]string, len(clients))
					for i, c := range clients {
						rows[i] = []string{c.Code, c.Name, c.Phone, strconv.FormatInt(c.RequestCount, 10),
							formatTimePtr(c.LastRequestAt, loc)}
					}
					renderTable(w, []string{"Code", "Name", "Phone", "Requests", "Last request"}, rows)
				})
			})
		},
	}
}

func newClientShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code|id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupClient(ctx, app, args[0])
				if err != nil {
					return err
				}
				loc := app.Config.Location()
				return rootOpts.formatter(cmd).Success(c, func(w io.Writer) {
					renderFields(w, [][2]string{
						{"Code", c.Code},
						{"Name", c.Name},
						{"Phone", c.Phone},
						{"Email", c.Email},
						{"Requests", strconv.FormatInt(c.RequestCount, 10)},
						{"Registered", formatTime(c.RegisteredAt, loc)},
						{"Last request", formatTimePtr(c.LastRequestAt, loc)},
					})
				})
			})
		},
	}
}

func newClientDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code|id>",
		Short: "Delete a client and its requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := lookupClient(ctx, app, args[0])
				if err != nil {
					return err
				}
				if err := app.Clients.Delete(ctx, c.ID); err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(map[string]string{"deleted": c.Code}, func(w io.Writer) {
					okLine(w, "Deleted client %s", c.Code)
				})
			})
		},
	}
}
