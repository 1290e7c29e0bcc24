package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"rotator/cmd/rotatord/ui"
	"rotator/config"
	"rotator/internal/adapter/docker"
	"rotator/internal/adapter/jsonfile"
	"rotator/internal/fleet"
	"rotator/internal/hang"
	"rotator/internal/rotation"

	"github.com/spf13/cobra"
)

func statusCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show container state, log staleness and current scenario per server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if len(cfg.Servers) == 0 {
				return errors.New("no server containers configured (set " + config.EnvServerNames + ")")
			}

			rt, err := docker.NewRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			return printStatus(cmd.Context(), cmd.OutOrStdout(), cfg, rt, jsonfile.New(cfg.DataRoot), fleet.RealClock{})
		},
	}
}

func printStatus(ctx context.Context, w io.Writer, cfg config.Config, rt fleet.ContainerRuntime, configs rotation.ConfigStore, clock fleet.Clock) error {
	det := &hang.Detector{
		Runtime:     rt,
		Threshold:   cfg.Hang.Timeout,
		CallTimeout: cfg.CallTimeout,
		Marker:      cfg.Hang.Marker,
		Clock:       clock,
	}

	fmt.Fprint(w, ui.KeyValues("",
		ui.KV("data root", cfg.DataRoot),
		ui.KV("hang timeout", cfg.Hang.Timeout.String()),
		ui.KV("rotation", fmt.Sprint(cfg.Rotation.Enabled)),
		ui.KV("hang detection", fmt.Sprint(cfg.Hang.Enabled)),
	))

	var rows [][]string
	var warnings []string
	for _, srv := range cfg.FleetServers() {
		row, err := statusRow(ctx, det, configs, srv, cfg.CallTimeout)
		if err != nil {
			warnings = append(warnings, ui.WarnMsg("%s: %v", srv.Name, err))
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(w, ui.Table([]string{"SERVER", "INDEX", "STATE", "LAST LOG", "STALE", "HANG", "SCENARIO"}, rows))
	for _, msg := range warnings {
		fmt.Fprintln(w, msg)
	}
	return nil
}

// statusRow inspects one server under its own timeout, so a slow server
// does not eat into the budget of the ones after it.
func statusRow(ctx context.Context, det *hang.Detector, configs rotation.ConfigStore, srv fleet.Server, timeout time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	row := []string{srv.Name, srv.Index, ui.State(""), ui.Muted("-"), ui.Muted("-"), ui.Muted("-"), scenarioOf(ctx, configs, srv.Index)}
	sample, found, err := det.Inspect(ctx, srv.Name)
	if err != nil || !found {
		return row, err
	}
	row[2] = ui.State(sample.State)
	if sample.TimestampFound {
		row[3] = sample.LastLog.Format(time.RFC3339)
		row[4] = ui.Staleness(sample.Delta, det.Threshold)
	}
	row[5] = ui.Bool(sample.Hang)
	return row, nil
}

func scenarioOf(ctx context.Context, configs rotation.ConfigStore, index string) string {
	doc, err := configs.ReadDocument(ctx, index)
	if err != nil {
		return ui.Muted("unreadable")
	}
	id, err := doc.ScenarioID()
	if err != nil || id == "" {
		return ui.Muted("-")
	}
	return id
}
