package main

import (
	"errors"
	"fmt"
	"time"

	"payroute/internal/config"
	"payroute/internal/utils"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		role        string
		operatorID  uint
		ttl         time.Duration
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token for an operator or service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case "admin", "operator", "service":
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if operatorID == 0 {
				return errors.New("--operator-id is required")
			}

			token, err := utils.IssueOperatorToken(config.GetEnv("JWT_SECRET", ""), operatorID, role, permissions, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", "service", "Role (admin, operator, service)")
	cmd.Flags().UintVar(&operatorID, "operator-id", 0, "Operator or service id carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringSliceVarP(&permissions, "permission", "p", nil, "Explicit permissions (defaults to the role's)")
	return cmd
}
