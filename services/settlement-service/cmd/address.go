package main

import (
	"fmt"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/txsigner"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/config"
	"github.com/spf13/cobra"
)

// addressCmd prints the chain address the oracle key controls, so operators can fund it.
func addressCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address controlled by the signing oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			oracle, err := newOracle(cfg)
			if err != nil {
				return err
			}
			path, err := cfg.Path()
			if err != nil {
				return err
			}
			pub, err := oracle.PublicKey(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("fetch public key: %w", err)
			}
			addr, err := txsigner.AddressFromPublicKey(pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}
}
