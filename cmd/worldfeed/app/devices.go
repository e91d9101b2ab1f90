package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/worldfeed/internal/cmd/output"
	"github.com/agentstation/worldfeed/internal/registry"
)

// NewDevicesCommand creates the devices command group.
func (a *App) NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device"},
		GroupID: "management",
		Short:   "Manage push device registrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add ID...",
		Short: "Register devices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.Registry()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := reg.Add(cmd.Context(), id); err != nil {
					return err
				}
			}
			total, err := reg.Count(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered %d device(s), %d total\n", len(args), total)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove ID...",
		Aliases: []string{"rm"},
		Short:   "Remove devices",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.Registry()
			if err != nil {
				return err
			}
			n, err := reg.Remove(cmd.Context(), args...)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d device(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.Registry()
			if err != nil {
				return err
			}
			devices, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			if devices == nil {
				devices = []registry.Device{}
			}
			return a.print(cmd, deviceList(devices))
		},
	})
	return cmd
}

type deviceList []registry.Device

// Table implements output.Tabular.
func (d deviceList) Table() output.Data {
	data := output.Data{Headers: []string{"ID", "Added", "Updated"}}
	for _, dev := range d {
		data.Rows = append(data.Rows, []string{
			dev.ID,
			dev.AddedAt.Format(time.DateTime),
			dev.UpdatedAt.Format(time.DateTime),
		})
	}
	return data
}
