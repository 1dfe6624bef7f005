package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func sessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Time work on a task",
	}

	cmd.AddCommand(sessionStartCmd(configPath))
	cmd.AddCommand(sessionStopCmd(configPath))
	cmd.AddCommand(sessionStatusCmd(configPath))
	cmd.AddCommand(sessionWatchCmd(configPath))

	return cmd
}

func sessionStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start [task-id]",
		Short: "Start timing work on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			s, err := a.tracker.StartWork(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started work on task %d at %s\n", id, s.StartTime.Local().Format(time.Kitchen))
			return nil
		},
	}
}

func sessionStopCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [task-id]",
		Short: "Stop timing and log the elapsed hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			hours, err := a.tracker.StopWork(cmd.Context(), id)
			if err != nil {
				return err
			}
			if hours == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped work on task %d, nothing to log\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped work on task %d, logged %.2fh\n", id, hours)
			return nil
		},
	}
}

func sessionStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show the running session on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			// Loading the task drops any session the server no longer backs.
			if _, err := a.tracker.LoadTask(cmd.Context(), id); err != nil {
				return err
			}
			s, err := a.tracker.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			if s == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No session on task %d\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d: %s elapsed\n", id, formatElapsed(a.manager.Elapsed(s)))
			return nil
		},
	}
}

func sessionWatchCmd(configPath *string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [task-id]",
		Short: "Print the elapsed time until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = a.manager.Watch(ctx, id, a.userID, interval, func(d time.Duration) {
				fmt.Fprintf(out, "\rTask %d: %s", id, formatElapsed(d))
			})
			fmt.Fprintln(out)
			return err
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Refresh interval")

	return cmd
}

// formatElapsed renders d as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
