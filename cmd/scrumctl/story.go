package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yukikurage/scrum-board/internal/models"
)

func storyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story",
		Short: "Change user stories",
	}

	cmd.AddCommand(storyStatusCmd(configPath))
	cmd.AddCommand(storyRemoveCmd(configPath))
	cmd.AddCommand(storyDeleteCmd(configPath))

	return cmd
}

func storyStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [story-id] [status]",
		Short: "Move a story to IN_PROGRESS, DONE, ACCEPTED or REJECTED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "story")
			if err != nil {
				return err
			}
			status := models.StoryStatus(strings.ToUpper(args[1]))
			if !status.Valid() {
				return fmt.Errorf("invalid story status %q", args[1])
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			story, err := a.planner.SetStoryStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			printStory(cmd.OutOrStdout(), story)
			return nil
		},
	}
}

func storyRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-from-sprint [story-id]",
		Short: "Send a story back to the product backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "story")
			if err != nil {
				return err
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			story, err := a.planner.RemoveFromSprint(cmd.Context(), id)
			if err != nil {
				return err
			}
			printStory(cmd.OutOrStdout(), story)
			return nil
		},
	}
}

func storyDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [story-id]",
		Short: "Delete a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "story")
			if err != nil {
				return err
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.planner.DeleteStory(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted story %d\n", id)
			return nil
		},
	}
}

func printStory(out io.Writer, s *models.UserStory) {
	fmt.Fprintf(out, "Story %d:  %s\n", s.ID, s.Name)
	fmt.Fprintf(out, "Status:    %s\n", s.Status)
	if s.SprintID != nil {
		fmt.Fprintf(out, "Sprint:    %d\n", *s.SprintID)
	} else {
		fmt.Fprintln(out, "Sprint:    backlog")
	}
}
