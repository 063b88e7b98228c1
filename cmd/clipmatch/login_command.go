package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open a browser window and wait for a platform login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger(cfg)
			if err != nil {
				return err
			}

			page, cleanup, err := openPage(cfg, false)
			if err != nil {
				return err
			}
			defer cleanup()

			manager := sessionManager(cfg, page, logger)
			out := cmd.OutOrStdout()
			ok, err := manager.Login(cmd.Context(), func(status string) {
				fmt.Fprintln(out, status)
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("login was not completed before the timeout")
			}
			fmt.Fprintln(out, "Login detected, session saved.")
			return nil
		},
	}
}

func newSessionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the saved platform session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Verify the saved session without opening a visible browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger(cfg)
			if err != nil {
				return err
			}

			manager := sessionManager(cfg, nil, logger)
			out := cmd.OutOrStdout()
			if !manager.HasSession() {
				fmt.Fprintln(out, "No saved session. Run `clipmatch login` first.")
				return nil
			}

			status, err := manager.VerifyHeadless(cmd.Context())
			if err != nil {
				return err
			}
			if status.Valid {
				fmt.Fprintln(out, "Session is valid.")
				return nil
			}
			fmt.Fprintln(out, "Session has expired. Run `clipmatch login` again.")
			return nil
		},
	})
	return cmd
}
