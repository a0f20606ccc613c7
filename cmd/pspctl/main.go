// Command pspctl administers the routing engine: vault keys, PSP seeding,
// operator tokens, capacity inspection and attempt reconciliation.
package main

import (
	"fmt"
	"os"

	"payroute/internal/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	config.LoadEnv()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pspctl",
		Short:         "pspctl - administration tool for the PSP routing engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(keygenCmd())
	root.AddCommand(encryptCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedPSPCmd())
	root.AddCommand(capacityCmd())
	root.AddCommand(sweepAttemptsCmd())
	root.AddCommand(resolveAttemptCmd())
	return root
}
