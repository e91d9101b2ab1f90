package app

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewTickCommand creates the tick command group.
func (a *App) NewTickCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tick",
		GroupID: "management",
		Short:   "Read or set the persisted tick counter",
		Long: `Read or set the tick counter in the data directory.

The counter decides which ticks are long ticks. A running process keeps
its own counter; change it through its console or the admin API.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the tick counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.print(cmd, tickResult{Tick: a.Tick(), LongEvery: a.Config().Cadence.LongEvery})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set TICK",
		Short: "Set the tick counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tick, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			if err := a.SetTick(tick); err != nil {
				return err
			}
			return a.print(cmd, tickResult{Tick: a.Tick(), LongEvery: a.Config().Cadence.LongEvery})
		},
	})
	return cmd
}

type tickResult struct {
	Tick      int `json:"tick"`
	LongEvery int `json:"long_every"`
}
