package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// @title Session Auth API
// @version 1.0.0
// @description Cookie-based dual-token session authentication
// @BasePath /api
// @schemes http https

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "auth-api",
		Short:         "Session authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd(), userCmd(), sessionsCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "auth-api version %s\n", version)
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}

	var (
		userID   string
		name     string
		email    string
		password string
		role     string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a local account with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.createUser(cmd, userID, name, email, password, role)
		},
	}
	create.Flags().StringVar(&userID, "userid", "", "Account identifier")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&password, "password", "", "Password (read from stdin when omitted)")
	create.Flags().StringVar(&role, "role", "", "Optional role")
	_ = create.MarkFlagRequired("userid")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session housekeeping",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Clear refresh tokens whose stored expiry has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.auth.SweepExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d expired sessions\n", n)
			return nil
		},
	})
	return cmd
}
