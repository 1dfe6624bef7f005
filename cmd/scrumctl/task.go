package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yukikurage/scrum-board/internal/models"
)

func taskCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Work with tasks",
	}

	cmd.AddCommand(taskShowCmd(configPath))
	cmd.AddCommand(taskActionCmd(configPath, "start", "Accept an assigned task and move it to in progress"))
	cmd.AddCommand(taskActionCmd(configPath, "complete", "Mark a task completed"))
	cmd.AddCommand(taskActionCmd(configPath, "reject", "Hand a task back to the team"))
	cmd.AddCommand(taskAssignCmd(configPath))
	cmd.AddCommand(taskDeleteCmd(configPath))
	cmd.AddCommand(taskLogCmd(configPath))
	cmd.AddCommand(taskLogsCmd(configPath))

	return cmd
}

func taskShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [task-id]",
		Short: "Show a task",
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
			task, err := a.tracker.LoadTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)

			s, err := a.tracker.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			if s != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Session:   running for %s\n", a.manager.Elapsed(s).Round(time.Second))
			}
			return nil
		},
	}
}

func taskActionCmd(configPath *string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [task-id]",
		Short: short,
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

			var task *models.Task
			switch action {
			case "start":
				task, err = a.tracker.Accept(cmd.Context(), id)
			case "complete":
				task, err = a.tracker.Complete(cmd.Context(), id)
			case "reject":
				task, err = a.tracker.Reject(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

func taskAssignCmd(configPath *string) *cobra.Command {
	var userID uint64

	cmd := &cobra.Command{
		Use:   "assign [task-id]",
		Short: "Assign a task to yourself, or to --user as scrum master",
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
			if userID == 0 {
				userID = a.userID
			}
			task, err := a.tracker.Assign(cmd.Context(), id, userID)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&userID, "user", 0, "Assignee user id (default yourself)")

	return cmd
}

func taskDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [task-id]",
		Short: "Delete a task nobody has started",
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
			if err := a.tracker.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}
}

func taskLogCmd(configPath *string) *cobra.Command {
	var hours float64
	var description string

	cmd := &cobra.Command{
		Use:   "log [task-id]",
		Short: "Log hours worked on a task",
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
			entry, err := a.tracker.LogTime(cmd.Context(), id, hours, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %.2fh on task %d (%s)\n", entry.Hours, id, entry.Date.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&hours, "hours", "H", 0, "Hours worked")
	cmd.Flags().StringVarP(&description, "message", "m", "", "What was done")
	_ = cmd.MarkFlagRequired("hours")

	return cmd
}

func taskLogsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logs [task-id]",
		Short: "List the time logged on a task",
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
			logs, err := a.tracker.Logs(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No time logged")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tUSER\tHOURS\tDESCRIPTION")
			total := 0.0
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", l.Date.Format("2006-01-02"), l.UserID, l.Hours, l.Description)
				total += l.Hours
			}
			fmt.Fprintf(w, "\t\t%.2f\ttotal\n", total)
			return w.Flush()
		},
	}
}

func printTask(out io.Writer, t *models.Task) {
	fmt.Fprintf(out, "Task %d:   %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	if t.AssignedTo != nil {
		fmt.Fprintf(out, "Assignee:  %d\n", *t.AssignedTo)
	}
	fmt.Fprintf(out, "Hours:     %.2f of %.2f estimated\n", t.HoursSpent, t.EstimatedHours)
	if t.LoggingUnlocked {
		fmt.Fprintln(out, "Logging:   unlocked")
	} else {
		fmt.Fprintln(out, "Logging:   locked")
	}
}
