package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts of the self-hosted backing store",
	}

	var password string
	add := &cobra.Command{
		Use:   "add [email]",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			cfg, logger, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			u, err := a.gorm.CreateUser(context.Background(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	cmd.AddCommand(add)
	return cmd
}
