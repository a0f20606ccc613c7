package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"payroute/internal/config"
	"payroute/internal/services/vault"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random VAULT_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Encrypt a credential with VAULT_KEY (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}

			plaintext := ""
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read plaintext: %w", err)
				}
				plaintext = strings.TrimRight(line, "\r\n")
			}
			if plaintext == "" {
				return errors.New("nothing to encrypt")
			}

			sealed, err := v.Encrypt(plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

func openVault() (vault.Vault, error) {
	key := config.GetEnv("VAULT_KEY", "")
	if key == "" {
		return nil, errors.New("VAULT_KEY is not set")
	}
	return vault.NewFromBase64(key)
}
