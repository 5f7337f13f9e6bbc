package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/acn-rai/rai-memory/component"
)

type statusFlags struct {
	health bool
}

// NewStatusCommand creates the "status" command.
func NewStatusCommand(root *rootFlags) *cobra.Command {
	flags := &statusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of every component",
		Long: `Print the status of every component as JSON.

With --health the components are started first and their live health is
included.

Examples:
  raimemory status
  raimemory status --health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, root, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.health, "health", false, "Start components and report live health")
	return cmd
}

type statusReport struct {
	Components []component.Status `json:"components"`
	Health     []component.Health `json:"health,omitempty"`
}

func runStatus(cmd *cobra.Command, root *rootFlags, flags *statusFlags) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}

	report := statusReport{Components: app.Registry.StatusAll()}

	if flags.health {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		startErr := app.Start(ctx)
		report.Health = app.Registry.HealthAll(ctx)
		if err := app.Stop(ctx); err != nil && startErr == nil {
			startErr = err
		}
		if startErr != nil {
			_ = writeJSON(cmd.OutOrStdout(), report)
			return startErr
		}
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
