package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/worldfeed/internal/cmd/output"
)

// Execute runs the worldfeed CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "worldfeed",
		Short:   "World state feed poller",
		Version: a.version,
		Long: `worldfeed polls the world state feed of every configured region, keeps
an archive of alerts, invasions, goals, deals and badlands, renders the
current state into text and JSON artifacts and announces notable changes
to push devices, social channels and live HTTP streams.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "management", Title: "Management Commands:"})

	rootCmd.PersistentFlags().StringVar(&a.flags.ConfigFile, "config", "", "config file (default is ./worldfeed.yaml or $HOME/.config/worldfeed/worldfeed.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().StringVarP(&a.flags.Format, "format", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("worldfeed {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(a.flags.Format); err != nil {
		return err
	}
	return a.configure()
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(a.NewRunCommand())
	rootCmd.AddCommand(a.NewOnceCommand())
	rootCmd.AddCommand(a.NewServeCommand())
	rootCmd.AddCommand(a.NewStatusCommand())

	// Management commands
	rootCmd.AddCommand(a.NewTickCommand())
	rootCmd.AddCommand(a.NewVersionsCommand())
	rootCmd.AddCommand(a.NewDevicesCommand())

	rootCmd.AddCommand(a.NewVersionCommand())
}

// print writes a command result in the selected output format.
func (a *App) print(cmd *cobra.Command, data any) error {
	format := output.DetectFormat(a.flags.Format)
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
