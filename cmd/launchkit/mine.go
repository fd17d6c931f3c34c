package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchKit/internal/chain"
	"launchKit/internal/config"
	"launchKit/internal/miner"
)

func runMine(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMine(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Deployer) {
		return fmt.Errorf("deployer address is required")
	}
	if !common.IsHexAddress(cfg.Factory) {
		return fmt.Errorf("factory address is required")
	}
	if !common.IsHexAddress(cfg.PairedToken) {
		return fmt.Errorf("paired token address is required")
	}
	if cfg.Name == "" || cfg.Symbol == "" {
		return fmt.Errorf("token name and symbol are required")
	}
	supply, ok := new(big.Int).SetString(cfg.Supply, 10)
	if !ok || supply.Sign() <= 0 {
		return fmt.Errorf("supply must be a positive decimal number")
	}
	var provenance common.Hash
	if cfg.Provenance != "" {
		provenance = common.HexToHash(cfg.Provenance)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := miner.Input{
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		Supply:      supply,
		RequesterID: cfg.RequesterID,
		Image:       cfg.Image,
		Provenance:  provenance,
		Deployer:    common.HexToAddress(cfg.Deployer),
		Factory:     common.HexToAddress(cfg.Factory),
		PairedToken: common.HexToAddress(cfg.PairedToken),
		Seed:        miner.SeedFromTime(time.Now()),
	}

	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer client.Close()

		var seed common.Hash
		err = chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			seed, err = client.RecentBlockHash(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("fetch seed block hash: %w", err)
		}
		in.Seed = seed

		var codeSize int
		err = chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			codeSize, err = client.CodeSize(ctx, in.PairedToken)
			return err
		})
		if err != nil {
			return fmt.Errorf("check paired token code: %w", err)
		}
		if codeSize == 0 {
			logger.Warn("paired token has no code on chain", zap.String("paired_token", in.PairedToken.Hex()))
		}
	}

	logger.Info("salt search start",
		zap.String("deployer", in.Deployer.Hex()),
		zap.String("factory", in.Factory.Hex()),
		zap.String("paired_token", in.PairedToken.Hex()),
		zap.String("seed", in.Seed.Hex()),
		zap.Int("workers", cfg.Workers),
	)

	start := time.Now()
	result, err := miner.FindSaltParallel(ctx, in, cfg.Workers)
	if err != nil {
		return err
	}

	logger.Info("salt found",
		zap.String("salt", result.Salt.Hex()),
		zap.String("address", result.Address.Hex()),
		zap.Uint64("iterations", result.Iterations),
		zap.Duration("elapsed", time.Since(start)),
	)

	fmt.Printf("salt:    %s\n", result.Salt.Hex())
	fmt.Printf("address: %s\n", result.Address.Hex())
	return nil
}
