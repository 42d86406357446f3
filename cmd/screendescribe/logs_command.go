package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screendescribe/internal/daemonctl"
	"screendescribe/internal/ipc"
	"screendescribe/internal/logging"
	"screendescribe/internal/logs"
)

const followPoll = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var level string
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: "Show recent log entries from the running daemon's in-memory buffer.\n" +
			"When no daemon is running the newest entries are read from the log file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			client, err := daemonctl.Connect(ctx.socketPath())
			if err != nil {
				if !daemonctl.IsDaemonUnavailable(err) {
					return wrapDialError(err, ctx.socketPath())
				}
				path := filepath.Join(cfg.Paths.LogDir, "screendescribe.log")
				events, readErr := logs.ReadEvents(path, limit, level)
				if readErr != nil {
					return readErr
				}
				if len(events) == 0 {
					fmt.Fprintf(out, "No log entries in %s\n", path)
				}
				printEvents(out, events)
				if follow {
					return followFile(cmd.Context(), out, path, level)
				}
				return nil
			}
			resp, err := client.LogTail(ipc.LogTailRequest{Limit: limit, Level: level})
			_ = client.Close()
			if err != nil {
				return err
			}
			printEvents(out, resp.Events)
			if follow && resp.LogPath != "" {
				return followFile(cmd.Context(), out, resp.LogPath, level)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries until interrupted")
	return cmd
}

func followFile(ctx context.Context, out io.Writer, path, level string) error {
	follower, err := logs.NewFollower(path)
	if err != nil {
		return err
	}
	for {
		lines, err := follower.Next(ctx, followPoll)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range lines {
			event, ok := logs.ParseEvent([]byte(line))
			if !ok || !logging.LevelAtLeast(event.Level, level) {
				continue
			}
			printEvents(out, []logging.LogEvent{event})
		}
	}
}

func printEvents(out io.Writer, events []logging.LogEvent) {
	for _, evt := range events {
		fmt.Fprintln(out, formatEvent(evt))
	}
}

func formatEvent(evt logging.LogEvent) string {
	var b strings.Builder
	if !evt.Timestamp.IsZero() {
		b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(evt.Level))
	if subject := logging.FormatSubject(evt.RunID, evt.Stage); subject != "" {
		b.WriteString("[" + subject + "] ")
	} else if evt.Component != "" {
		b.WriteString("[" + evt.Component + "] ")
	}
	b.WriteString(evt.Message)

	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		if key == "source" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	return b.String()
}
