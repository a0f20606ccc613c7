package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/management"

	"github.com/spf13/cobra"
)

func sweepAttemptsCmd() *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "sweep-attempts",
		Short: "Fail PROCESSING attempts older than --older-than so they stop holding capacity",
		Long: `Attempts stay PROCESSING when the server stopped or the recorder gave up
after the provider call. Check captured ones with resolve-attempt first:
sweeping marks every listed attempt FAILED with reason stale_processing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			v, err := openVault()
			if err != nil {
				return err
			}
			if err := repositories.InitDB(); err != nil {
				return err
			}
			defer repositories.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			attempts, err := managementService(v).SweepStaleAttempts(ctx, time.Now().Add(-olderThan), dryRun)
			if err != nil {
				return err
			}
			return printAttempts(cmd, attempts)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Minimum age of a PROCESSING attempt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the attempts without changing them")
	return cmd
}

func resolveAttemptCmd() *cobra.Command {
	var (
		input  management.ResolveInput
		status string
	)

	cmd := &cobra.Command{
		Use:   "resolve-attempt [intent-id]",
		Short: "Settle a PROCESSING attempt as SUCCESS or FAILED after checking the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Status = models.PaymentStatus(status)
			if input.Status != models.PaymentStatusSuccess && input.Status != models.PaymentStatusFailed {
				return errors.New("--status must be SUCCESS or FAILED")
			}
			v, err := openVault()
			if err != nil {
				return err
			}
			if err := repositories.InitDB(); err != nil {
				return err
			}
			defer repositories.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			attempt, err := managementService(v).ResolveAttempt(ctx, args[0], input)
			if err != nil {
				return err
			}
			return printAttempts(cmd, []models.Payment{*attempt})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "SUCCESS or FAILED")
	cmd.Flags().StringVar(&input.Reference, "reference", "", "Provider reference of the charge")
	cmd.Flags().StringVar(&input.Reason, "reason", "", "Failure reason recorded for FAILED")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func printAttempts(cmd *cobra.Command, attempts []models.Payment) error {
	if len(attempts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no attempts")
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(attempts)
}
