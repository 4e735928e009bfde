package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/climdo/internal/app"
)

func (c *cli) loginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.prompter(cmd.ErrOrStderr())
			name, err := p.ask("Username", username)
			if err != nil {
				return err
			}
			password, err := p.secret("Password")
			if err != nil {
				return err
			}

			return c.withRuntime(func(rt *app.Runtime) error {
				user, err := rt.Login(cmd.Context(), name, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username (prompted when empty)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(func(rt *app.Runtime) error {
				rt.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.prompter(cmd.ErrOrStderr())
			name, err := p.ask("Username", username)
			if err != nil {
				return err
			}
			addr, err := p.ask("Email", email)
			if err != nil {
				return err
			}
			password, err := p.secret("Password")
			if err != nil {
				return err
			}

			return c.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Client.Register(cmd.Context(), name, addr, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. Run `climdo login` to start.\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username (prompted when empty)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				user, err := rt.Client.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, user.Username)
				for _, e := range user.Emails {
					status := "unverified"
					if e.IsVerified {
						status = "verified"
					}
					fmt.Fprintf(out, "  %s (%s)\n", e.Email, status)
				}
				return nil
			})
		},
	}
}

func (c *cli) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename NEW_USERNAME",
		Short: "Change your username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			return c.withSession(func(rt *app.Runtime) error {
				if err := rt.Client.ResetUsername(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Username changed to %s\n", name)
				return nil
			})
		},
	}
}
