package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/tokengate/pkg/storage"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage tokens in the configured store",
	}
	cmd.AddCommand(tokenIssueCmd())
	cmd.AddCommand(tokenRevokeCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var (
		loginID string
		tier    string
		tenant  string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for a login ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.Auth.TokenTTL
			}

			s, err := openSharedStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer s.Close()

			id := newIdentity(loginID, tier, tenant, scopes)

			token, err := storage.Issue(cmd.Context(), s, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&loginID, "login-id", "", "login ID the token authenticates")
	cmd.Flags().StringVar(&tier, "tier", "", "service tier")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "granted scope (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from auth.token_ttl, 0 never expires)")
	_ = cmd.MarkFlagRequired("login-id")

	return cmd
}

func tokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			s, err := openSharedStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoking token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}
}
