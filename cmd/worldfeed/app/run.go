package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/cmd/output"
	"github.com/agentstation/worldfeed/internal/server"
	"github.com/agentstation/worldfeed/internal/server/handlers"
	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// NewRunCommand creates the run command.
func (a *App) NewRunCommand() *cobra.Command {
	var (
		withHTTP  bool
		noConsole bool
	)
	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Poll the feeds on the configured cadence",
		Long: `Poll every enabled region on the configured cadence until interrupted.

Every tick runs one cycle per region; every long_every-th tick is a long
tick that also advances invasion progress and posts progress updates.

Commands typed on standard input control the running process:
  reload, names, currenttick, settick N, exit, quit, forcequit`,
		Example: `  # Poll with the console on stdin
  worldfeed run

  # Poll and serve the HTTP API with live updates
  worldfeed run --http`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), withHTTP, !noConsole)
		},
	}
	cmd.Flags().BoolVar(&withHTTP, "http", false, "serve the HTTP API while polling")
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "do not read commands from standard input")
	return cmd
}

func (a *App) run(ctx context.Context, withHTTP, console bool) error {
	svc, err := a.Service(ctx)
	if err != nil {
		return err
	}
	ctrl, err := a.Controller(ctx)
	if err != nil {
		return err
	}
	regions := ctrl.Regions()
	if len(regions) == 0 {
		return fmt.Errorf("no region is enabled, check the feeds configuration")
	}

	// Cycles get their own context so that a graceful stop lets them finish.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	a.logger.Info().Interface("regions", regions).Int("tick", svc.Tick()).Msg("Polling started")

	if m := a.Manifest(); m != nil {
		go m.Watch(ctx)
	}

	var (
		httpSrv   *http.Server
		srv       *server.Server
		serverErr <-chan error
	)
	if withHTTP {
		srv, httpSrv, serverErr = a.startHTTP(ctrl, a)
	}

	actions := make(chan Action, 1)
	if console {
		go func() {
			actions <- NewConsole(a, a.stdout, a.logger).Run(ctx, a.stdin)
		}()
	}

	action := ActionStop
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Shutdown signal received")
			waiting = false
		case err = <-serverErr:
			a.logger.Error().Err(err).Msg("HTTP server failed")
			waiting = false
		case act := <-actions:
			// Closed input leaves the process to signals.
			if act != ActionNone {
				action = act
				waiting = false
			}
		}
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		if herr := httpSrv.Shutdown(shutdownCtx); herr != nil {
			a.logger.Warn().Err(herr).Msg("HTTP server shutdown")
		}
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}

	if action == ActionKill {
		svc.Kill()
		svc.Wait()
		return err
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if serr := svc.Stop(stopCtx); serr != nil {
		a.logger.Warn().Err(serr).Msg("Running cycles did not finish in time, cancelled")
	}
	return err
}

// startHTTP serves the API in the background. The returned channel
// reports a listener failure.
func (a *App) startHTTP(ctrl *worldfeed.Controller, admin handlers.Admin) (*server.Server, *http.Server, <-chan error) {
	cfg := server.FromSettings(a.Config().Server)
	opts := []server.Option{server.WithBroker(a.Broker()), server.WithLogger(a.logger)}
	if admin != nil {
		opts = append(opts, server.WithAdmin(admin))
	}
	srv := server.New(ctrl, cfg, opts...)
	srv.Start()

	httpSrv := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", httpSrv.Addr).
			Str("prefix", cfg.PathPrefix).
			Bool("admin", admin != nil && cfg.AdminKey != "").
			Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv, httpSrv, errCh
}

// NewServeCommand creates the serve command.
func (a *App) NewServeCommand() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "core",
		Short:   "Serve the rendered artifacts over HTTP without polling",
		Long: `Serve the HTTP API over the artifacts and stores already on disk.

Nothing is polled; use "worldfeed run --http" to poll and serve from one
process. Admin routes are only available from a polling process.`,
		Example: `  worldfeed serve --port 9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.Config()
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			ctrl, err := a.Controller(cmd.Context())
			if err != nil {
				return err
			}
			srv, httpSrv, serverErr := a.startHTTP(ctrl, nil)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s%s\n", httpSrv.Addr, server.FromSettings(cfg.Server).PathPrefix)

			select {
			case <-cmd.Context().Done():
			case err = <-serverErr:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if herr := httpSrv.Shutdown(shutdownCtx); herr != nil && err == nil {
				err = herr
			}
			_ = srv.Shutdown(shutdownCtx)
			return err
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind address (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port (overrides server.port)")
	return cmd
}

// NewOnceCommand creates the once command.
func (a *App) NewOnceCommand() *cobra.Command {
	var (
		region string
		long   bool
	)
	cmd := &cobra.Command{
		Use:     "once",
		GroupID: "core",
		Short:   "Run a single cycle and exit",
		Example: `  # One short cycle for every enabled region
  worldfeed once

  # One long cycle for PS4
  worldfeed once --region ps4 --long`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := a.Controller(cmd.Context())
			if err != nil {
				return err
			}

			var (
				reports  map[worldstate.Region]*worldfeed.CycleReport
				cycleErr error
			)
			if region != "" {
				r, err := worldstate.ParseRegion(region)
				if err != nil {
					return err
				}
				report, err := ctrl.RunOnce(cmd.Context(), worldfeed.RunOptions{Region: r, LongTick: long})
				reports, cycleErr = map[worldstate.Region]*worldfeed.CycleReport{}, err
				if report != nil {
					reports[r] = report
				}
			} else {
				reports, cycleErr = ctrl.RunAll(cmd.Context(), long)
			}

			if err := a.print(cmd, cycleReports(reports)); err != nil {
				return err
			}
			return cycleErr
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", "", "run only this region")
	cmd.Flags().BoolVar(&long, "long", false, "run a long tick")
	return cmd
}

// cycleReports lists reports in region order.
type cycleReports map[worldstate.Region]*worldfeed.CycleReport

func (c cycleReports) sorted() []*worldfeed.CycleReport {
	out := make([]*worldfeed.CycleReport, 0, len(c))
	for _, r := range c {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// MarshalJSON lists the reports in region order.
func (c cycleReports) MarshalJSON() ([]byte, error) {
	return marshalJSON(c.sorted())
}

// Table implements output.Tabular.
func (c cycleReports) Table() output.Data {
	data := output.Data{
		Headers: []string{"Region", "Feed Time", "Build", "Stale", "Written", "Errors", "Took"},
		ColumnAlignment: []output.Align{
			output.AlignLeft, output.AlignRight, output.AlignLeft, output.AlignCenter,
			output.AlignRight, output.AlignRight, output.AlignRight,
		},
	}
	for _, r := range c.sorted() {
		data.Rows = append(data.Rows, []string{
			r.Region.String(),
			strconv.FormatInt(r.FeedTime, 10),
			dash(r.BuildLabel),
			strconv.FormatBool(r.Stale),
			strconv.Itoa(len(r.Written)),
			strconv.Itoa(len(r.Errors)),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	return data
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
