package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yukikurage/scrum-board/internal/client"
)

func loginCmd(configPath *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if username == "" {
				username = cfg.Username
			}
			if password == "" {
				password = os.Getenv("SCRUMCTL_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}

			c, err := client.New(cfg.ServerURL)
			if err != nil {
				return err
			}
			user, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := saveCredentials(cfg.CookieFile, user.ID, c.Cookies()); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (default from config)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (default $SCRUMCTL_PASSWORD)")

	return cmd
}

func whoamiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			me, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (id %d)\n", me.Username, me.ID)
			for _, p := range me.Projects {
				fmt.Fprintf(out, "  #%-5d %-30s %s\n", p.ID, p.Name, p.Role)
			}
			return nil
		},
	}
}
