package main

import (
	"fmt"

	"session-tracker/internal/auth"
	"session-tracker/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			token, err := auth.NewService(cfg.Auth).IssueToken(addr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "address", "", "participant address the token is issued to")
	cmd.MarkFlagRequired("address")
	return cmd
}
