package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying schema defaults, the config file,
PLACEMENT_* environment variables (including the env file) and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(cfg, func(w io.Writer) {
				renderFields(w, [][2]string{
					{"database", cfg.Database},
					{"time_zone", cfg.TimeZone},
					{"stop_words", strings.Join(cfg.StopWords, ", ")},
					{"candidate_code_pattern", cfg.CandidateCodePattern},
					{"request_code_pattern", cfg.RequestCodePattern},
					{"publish_schedule", cfg.PublishSchedule},
					{"log_level", cfg.LogLevel},
				})
			})
		},
	})
	return cmd
}
