package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"screendescribe/internal/daemonctl"
	"screendescribe/internal/daemonrun"
	"screendescribe/internal/workflow"
)

// errRunFailed signals a failed run whose details were already printed.
var errRunFailed = errors.New("run failed")

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Capture, describe and log the screen once, then exit",
		Long: "Capture, describe and log the screen once, then exit.\n" +
			"When a daemon is running the run is handed to it, so its single-flight guard,\n" +
			"status counters and history see the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := daemonctl.Connect(ctx.socketPath())
			if err == nil {
				defer client.Close()
				resp, err := client.Trigger()
				if err != nil {
					return fmt.Errorf("trigger daemon run: %w", err)
				}
				return printResult(cmd.OutOrStdout(), resultView{
					Outcome:     resp.Outcome,
					RunID:       resp.RunID,
					Description: resp.Description,
					Stage:       resp.Stage,
					Error:       resp.Error,
				})
			}
			if !daemonctl.IsDaemonUnavailable(err) {
				return wrapDialError(err, ctx.socketPath())
			}
			result, err := daemonrun.RunOnce(cmd.Context(), cfg, daemonrun.Options{Version: version})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), resultView{
				Outcome:     string(result.Outcome),
				RunID:       result.RunID,
				Description: result.Description,
				Stage:       result.Stage,
				Error:       result.ErrorMessage(),
			})
		},
	}
}

func newRunScheduledCommand(ctx *commandContext) *cobra.Command {
	var interval int
	cmd := &cobra.Command{
		Use:   "run-scheduled",
		Short: "Run the scheduled daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") && interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %d", interval)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				IntervalOverride: interval,
				ConfigPath:       ctx.configPath,
				ConfigExists:     ctx.configExists,
				Version:          version,
			})
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 0, "Seconds between runs (overrides schedule.interval_seconds)")
	return cmd
}

// resultView is the printable shape shared by run-once and trigger.
type resultView struct {
	Outcome     string
	RunID       string
	Description string
	Stage       string
	Error       string
}

func printResult(out io.Writer, r resultView) error {
	switch workflow.Outcome(r.Outcome) {
	case workflow.Success:
		fmt.Fprintln(out, r.Description)
		return nil
	case workflow.AlreadyRunning:
		fmt.Fprintln(out, "A run is already in progress; trigger ignored")
		return nil
	case workflow.Closed:
		fmt.Fprintln(out, "The daemon is shutting down; trigger ignored")
		return nil
	default:
		stage := r.Stage
		if stage == "" {
			stage = "unknown"
		}
		fmt.Fprintf(out, "Run %s failed during %s: %s\n", r.RunID, stage, r.Error)
		return errRunFailed
	}
}
