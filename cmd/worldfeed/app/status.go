package app

import (
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/cmd/output"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// NewStatusCommand creates the status command.
func (a *App) NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "core",
		Short:   "Show the checkpoint and active entities of every region",
		Example: `  worldfeed status
  worldfeed status -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := a.Controller(cmd.Context())
			if err != nil {
				return err
			}
			status, err := ctrl.Status()
			if err != nil {
				return err
			}
			return a.print(cmd, regionStatuses(status))
		},
	}
}

type regionStatuses []worldfeed.RegionStatus

// Table implements output.Tabular.
func (s regionStatuses) Table() output.Data {
	data := output.Data{
		Headers: []string{"Region", "Last Feed", "Build", "Updated", "Alerts", "Invasions", "Goals", "Deals", "Badlands", "Running"},
		ColumnAlignment: []output.Align{
			output.AlignLeft, output.AlignLeft, output.AlignLeft, output.AlignLeft,
			output.AlignRight, output.AlignRight, output.AlignRight, output.AlignRight, output.AlignRight,
			output.AlignCenter,
		},
	}
	for _, st := range s {
		cp := st.Checkpoint
		lastFeed, updated := "-", "-"
		if cp.LastFeedTime > 0 {
			lastFeed = time.Unix(cp.LastFeedTime, 0).UTC().Format(time.DateTime)
		}
		if !cp.UpdatedAt.IsZero() {
			updated = cp.UpdatedAt.UTC().Format(time.DateTime)
		}
		data.Rows = append(data.Rows, []string{
			st.Region.String(),
			lastFeed,
			dash(cp.BuildLabel),
			updated,
			strconv.Itoa(st.Counts[worldstate.CategoryAlerts]),
			strconv.Itoa(st.Counts[worldstate.CategoryInvasions]),
			strconv.Itoa(st.Counts[worldstate.CategoryGoals]),
			strconv.Itoa(st.Counts[worldstate.CategoryDailyDeals]),
			strconv.Itoa(st.Counts[worldstate.CategoryBadlands]),
			strconv.FormatBool(st.Running),
		})
	}
	return data
}

// NewVersionsCommand creates the versions command.
func (a *App) NewVersionsCommand() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:     "versions",
		GroupID: "management",
		Short:   "Show the build label history of a region",
		Example: `  worldfeed versions --region pc`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := worldstate.ParseRegion(region)
			if err != nil {
				return err
			}
			ctrl, err := a.Controller(cmd.Context())
			if err != nil {
				return err
			}
			history, err := ctrl.Versions(r)
			if err != nil {
				return err
			}
			return a.print(cmd, versionHistory(history))
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", worldstate.RegionPC.String(), "region")
	return cmd
}

type versionHistory []worldstate.VersionRecord

// Table implements output.Tabular.
func (v versionHistory) Table() output.Data {
	data := output.Data{Headers: []string{"Detected", "Build"}}
	for _, rec := range v {
		data.Rows = append(data.Rows, []string{
			time.Unix(rec.DetectTime, 0).UTC().Format(time.DateTime),
			rec.BuildLabel,
		})
	}
	return data
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// The version never needs the configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:   a.version,
				Commit:    a.commit,
				Built:     a.date,
				BuiltBy:   a.builtBy,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			return a.print(cmd, info)
		},
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
