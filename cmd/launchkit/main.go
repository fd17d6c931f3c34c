package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "launchkit",
		Short:        "Deterministic token launch toolkit",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	mineCmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine a deployment salt whose derived address sorts below the paired token",
		RunE:  runMine,
	}

	mineCmd.Flags().String("rpc", "", "RPC URL (optional, seeds the search from a recent block hash)")
	mineCmd.Flags().String("deployer", "", "deployer address")
	mineCmd.Flags().String("factory", "", "factory address")
	mineCmd.Flags().String("paired-token", "", "paired token address")
	mineCmd.Flags().String("name", "", "token name")
	mineCmd.Flags().String("symbol", "", "token symbol")
	mineCmd.Flags().String("supply", "", "token supply (decimal)")
	mineCmd.Flags().Uint64("requester-id", 0, "requester id bound into the init code")
	mineCmd.Flags().String("image", "", "token image URI")
	mineCmd.Flags().String("provenance", "", "provenance hash (32-byte hex)")
	mineCmd.Flags().Int("workers", 1, "parallel search workers")
	mineCmd.Flags().Int("max-retries", 5, "maximum retry attempts for RPC calls")
	mineCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	mineCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(mineCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a full launch scenario against the in-process engine",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("name", "", "token name")
	simulateCmd.Flags().String("symbol", "", "token symbol")
	simulateCmd.Flags().String("supply", "", "token supply (decimal)")
	simulateCmd.Flags().Uint32("fee", 3000, "pool fee tier (100, 500, 3000, 10000)")
	simulateCmd.Flags().Int32("tick", -230400, "initial pool tick")
	simulateCmd.Flags().String("dev-buy", "", "native payment for the deployer pre-trade (decimal, optional)")
	simulateCmd.Flags().Uint8("campaign-percentage", 0, "supply percentage reserved for a claim campaign")
	simulateCmd.Flags().String("deployments-out", "./data/deployments.jsonl", "deployments JSONL path")
	simulateCmd.Flags().String("claims-out", "./data/reward_claims.jsonl", "reward claims JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
