package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/tokengate/pkg/auth"
)

func MatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match PATH PATTERN...",
		Short: "Show which patterns match a request path",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()
			for _, pattern := range args[1:] {
				fmt.Fprintf(out, "%s\t%t\n", pattern, auth.MatchPath(path, pattern))
			}
			return nil
		},
	}
}

func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check PATH...",
		Short: "Show whether the configured policy requires authentication for paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			policy, err := cfg.Auth.Policy()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				decision := "public"
				if policy.Check(path) {
					decision = "auth"
				}
				fmt.Fprintf(out, "%s\t%s\n", path, decision)
			}
			return nil
		},
	}
}
