package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"payroute/internal/config"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"
	"payroute/internal/services/management"
	"payroute/internal/services/vault"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the routing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repositories.InitDB(); err != nil {
				return err
			}
			defer repositories.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func seedPSPCmd() *cobra.Command {
	var (
		input   management.PSPInput
		daily   int64
		monthly int64
		stores  []uint
	)

	cmd := &cobra.Command{
		Use:   "seed-psp",
		Short: "Register a PSP with encrypted credentials and link it to stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("daily") {
				input.DailyCapacity = &daily
			}
			if cmd.Flags().Changed("monthly") {
				input.MonthlyCapacity = &monthly
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			if err := repositories.InitDB(); err != nil {
				return err
			}
			defer repositories.Close()

			svc := managementService(v)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			psp, err := svc.CreatePSP(ctx, input)
			if err != nil {
				return err
			}
			for _, storeID := range stores {
				if err := svc.LinkStore(ctx, storeID, psp.ID); err != nil {
					return fmt.Errorf("link store %d: %w", storeID, err)
				}
				log.Printf("✅ psp %d linked to store %d", psp.ID, storeID)
			}

			fmt.Fprintln(cmd.OutOrStdout(), psp.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "Display name")
	cmd.Flags().StringVar((*string)(&input.Provider), "provider", "", "Provider (stripe, checkout, paypal)")
	cmd.Flags().StringVar(&input.PublicKey, "public-key", "", "Publishable key or PayPal client id")
	cmd.Flags().StringVar(&input.SecretKey, "secret-key", "", "Secret key or PayPal client secret")
	cmd.Flags().Int64Var(&daily, "daily", 0, "Daily capacity in minor units")
	cmd.Flags().Int64Var(&monthly, "monthly", 0, "30-day capacity in minor units")
	cmd.Flags().UintSliceVar(&stores, "store", nil, "Store ids to link")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("secret-key")
	return cmd
}

func capacityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capacity [psp-id]",
		Short: "Print the remaining daily and monthly capacity of a PSP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return errors.New("psp id must be a positive integer")
			}

			if err := repositories.InitDB(); err != nil {
				return err
			}
			defer repositories.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			psp, err := repositories.NewPSPRepository(repositories.DB).GetByID(ctx, uint(id))
			if err != nil {
				return err
			}
			view, err := capacityLedger().Remaining(ctx, psp, time.Now())
			if err != nil {
				return err
			}
			return printCapacity(cmd, psp, view)
		},
	}
}

func capacityLedger() capacity.Ledger {
	return capacity.NewLedger(repositories.NewPaymentRepository(repositories.DB), capacity.Config{
		Location:          config.GetLocationEnv("BUSINESS_TIMEZONE"),
		CutoverHour:       config.GetIntEnv("CAPACITY_CUTOVER_HOUR", capacity.DefaultCutoverHour),
		ExcludeProcessing: !config.GetBoolEnv("CAPACITY_COUNT_PROCESSING", true),
	})
}

func printCapacity(cmd *cobra.Command, psp *models.PSP, view *models.CapacityView) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Name     string               `json:"name"`
		Provider models.ProviderType  `json:"provider"`
		Capacity *models.CapacityView `json:"capacity"`
	}{psp.Name, psp.Provider, view})
}

// managementService builds the admin service on the initialized database.
func managementService(v vault.Vault) management.Service {
	var invalidator management.ConfigInvalidator
	if repositories.CacheService != nil {
		invalidator = repositories.CacheService
	}
	return management.NewService(
		repositories.NewPSPRepository(repositories.DB),
		repositories.NewRoutingConfigRepository(repositories.DB),
		repositories.NewPaymentRepository(repositories.DB),
		v,
		invalidator,
	)
}
