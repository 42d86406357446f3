package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"screendescribe/internal/daemonctl"
	"screendescribe/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newTriggerCommand(ctx),
		newPauseCommand(ctx),
		newResumeCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and last-run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap.Status)
			}
			out := cmd.OutOrStdout()
			for _, line := range renderStatus(snap.Status, snap.Running, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the daemon to run the workflow now and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger()
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), resultView{
					Outcome:     resp.Outcome,
					RunID:       resp.RunID,
					Description: resp.Description,
					Stage:       resp.Stage,
					Error:       resp.Error,
				})
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause scheduled runs without stopping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Scheduled runs paused")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Scheduled runs were already paused")
				}
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume scheduled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				if !resp.Started {
					return errors.New(resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Scheduled runs resumed")
				return nil
			})
		},
	}
}
