package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yukikurage/scrum-board/internal/models"
)

func sprintCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Plan sprints",
	}

	cmd.AddCommand(sprintAddStoriesCmd(configPath))
	cmd.AddCommand(sprintReturnCmd(configPath))

	return cmd
}

func sprintAddStoriesCmd(configPath *string) *cobra.Command {
	var projectID, sprintID uint64

	cmd := &cobra.Command{
		Use:   "add-stories [story-id...]",
		Short: "Add backlog stories to a sprint if they fit its velocity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ids := make([]uint64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "story")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			res, err := a.planner.AddStories(cmd.Context(), projectID, sprintID, ids)
			if err != nil {
				if res.Velocity > 0 {
					return fmt.Errorf("%w (load would be %d of %d)", err, res.ProjectedLoad, res.Velocity)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d stories, sprint load %d of %d points\n",
				len(ids), res.ProjectedLoad, res.Velocity)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().Uint64Var(&sprintID, "sprint", 0, "Sprint id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("sprint")

	return cmd
}

func sprintReturnCmd(configPath *string) *cobra.Command {
	var projectID, sprintID uint64

	cmd := &cobra.Command{
		Use:   "return-to-backlog",
		Short: "Move the unfinished stories of an ended sprint back to the backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.planner.LoadBoard(cmd.Context(), projectID); err != nil {
				return err
			}
			returned, err := a.planner.ReturnToBacklog(cmd.Context(), projectID, sprintID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Returned %d stories to the backlog\n", len(returned))
			for _, s := range returned {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s\n", s.ID, s.Name)
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().Uint64Var(&sprintID, "sprint", 0, "Sprint id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("sprint")

	return cmd
}

func boardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "board [project-id]",
		Short: "Show a project's stories by backlog category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			board, err := a.planner.LoadBoard(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printCategory(out, "Finished", board.Finished)
			printCategory(out, "In a sprint", board.UnrealizedActive)
			printCategory(out, "Product backlog", board.UnrealizedUnactive)
			printCategory(out, "Future releases", board.FutureReleases)
			return nil
		},
	}
}

func printCategory(out io.Writer, title string, stories []models.UserStory) {
	fmt.Fprintf(out, "%s (%d)\n%s\n", title, len(stories), strings.Repeat("-", len(title)))
	for _, s := range stories {
		points := "-"
		if s.StoryPoints != nil {
			points = fmt.Sprint(*s.StoryPoints)
		}
		fmt.Fprintf(out, "  #%-5d %-40s %-12s %-11s %s pts\n", s.ID, s.Name, s.Status, s.Priority, points)
	}
	fmt.Fprintln(out)
}
