// services/settlement-service/cmd/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "settlement-service",
		Short: "LogiSynapse settlement service",
		Long: `Authenticates delegated callers, drives shipments through the settlement
phases and moves escrowed funds on-chain through the threshold signing oracle.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (SETTLEMENT_* env vars override it)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(addressCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
