package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "scrumctl",
		Short:         "Track work on scrum board tasks from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.scrumctl/config.yaml)")

	rootCmd.AddCommand(loginCmd(&configPath))
	rootCmd.AddCommand(whoamiCmd(&configPath))
	rootCmd.AddCommand(taskCmd(&configPath))
	rootCmd.AddCommand(sessionCmd(&configPath))
	rootCmd.AddCommand(storyCmd(&configPath))
	rootCmd.AddCommand(sprintCmd(&configPath))
	rootCmd.AddCommand(boardCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
