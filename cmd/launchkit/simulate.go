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

	"launchKit/internal/config"
	"launchKit/internal/dex"
	"launchKit/internal/factory"
	"launchKit/internal/ledger"
	"launchKit/internal/locker"
	"launchKit/internal/miner"
	"launchKit/internal/model"
	"launchKit/internal/pool"
	"launchKit/internal/storage"
	"launchKit/internal/storage/postgres"
)

// Fixed identities for the simulated scenario. The wrapped native address
// sits at the top of the address space so roughly every second salt
// candidate satisfies the ordering constraint and mining stays fast.
var (
	simOwner         = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	simDeployer      = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	simTeam          = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	simAgent         = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	simFactory       = common.HexToAddress("0x00000000000000000000000000000000000f0001")
	simLocker        = common.HexToAddress("0x00000000000000000000000000000000000f0002")
	simWrappedNative = common.HexToAddress("0x8000000000000000000000000000000000000001")
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Name == "" || cfg.Symbol == "" {
		return fmt.Errorf("token name and symbol are required")
	}
	supply, ok := new(big.Int).SetString(cfg.Supply, 10)
	if !ok || supply.Sign() <= 0 {
		return fmt.Errorf("supply must be a positive decimal number")
	}
	devBuy := new(big.Int)
	if cfg.DevBuy != "" {
		if _, ok := devBuy.SetString(cfg.DevBuy, 10); !ok || devBuy.Sign() < 0 {
			return fmt.Errorf("dev-buy must be a non-negative decimal number")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder storage.Recorder = storage.NewJSONLRecorder(cfg.DeploymentsOut, cfg.ClaimsOut)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder = storage.NewMultiRecorder(recorder, store.Recorder(ctx))
	}

	led := ledger.New()
	engine, err := dex.NewEngine(led, simWrappedNative)
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}

	lk, err := locker.New(locker.Config{
		Address: simLocker,
		Owner:   simOwner,
		Factory: simFactory,
		Rewards: model.RewardConfig{
			TeamRecipient:  simTeam,
			TeamBps:        20,
			AgentRecipient: simAgent,
			AgentBps:       10,
		},
	}, led, engine, recorder, logger)
	if err != nil {
		return fmt.Errorf("new locker: %w", err)
	}
	engine.RegisterReceiver(lk.Address(), lk)

	configurator := pool.NewConfigurator(engine, engine, lk, logger)

	fac, err := factory.New(factory.Config{
		Address:           simFactory,
		Owner:             simOwner,
		WrappedNative:     simWrappedNative,
		SponsoredClaimFee: new(big.Int),
	}, factory.Deps{
		Ledger:          led,
		Configurator:    configurator,
		Locker:          lk,
		Router:          engine,
		Campaigns:       engine,
		PositionSpender: engine.ManagerAddress(),
		CampaignSpender: engine.CampaignAddress(),
		Recorder:        recorder,
		Logger:          logger,
		Begin: func() func() {
			ls := led.Snapshot()
			es := engine.Snapshot()
			ks := lk.Snapshot()
			return func() {
				led.Restore(ls)
				engine.Restore(es)
				lk.Restore(ks)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("new factory: %w", err)
	}

	if err := fac.ToggleAllowedPairedToken(simOwner, simWrappedNative, true); err != nil {
		return err
	}

	in := miner.Input{
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		Supply:      supply,
		Deployer:    simDeployer,
		Factory:     simFactory,
		PairedToken: simWrappedNative,
		Seed:        miner.SeedFromTime(time.Now()),
	}
	mined, err := miner.FindSalt(ctx, in)
	if err != nil {
		return fmt.Errorf("mine salt: %w", err)
	}
	logger.Info("salt mined",
		zap.String("salt", mined.Salt.Hex()),
		zap.String("predicted", mined.Address.Hex()),
		zap.Uint64("iterations", mined.Iterations),
	)

	params := model.DeployParams{
		Name:     cfg.Name,
		Symbol:   cfg.Symbol,
		Supply:   supply,
		Fee:      cfg.Fee,
		Salt:     mined.Salt,
		Deployer: simDeployer,
	}
	poolCfg := model.PoolConfig{
		PairedToken: simWrappedNative,
		DevBuyFee:   cfg.Fee,
		Tick:        cfg.Tick,
	}

	if devBuy.Sign() > 0 {
		led.CreditNative(simOwner, devBuy)
	}

	var token common.Address
	var positionID uint64
	if cfg.CampaignPercentage > 0 {
		reserve := new(big.Int).Mul(supply, big.NewInt(int64(cfg.CampaignPercentage)))
		reserve.Div(reserve, big.NewInt(100))
		campaign := model.CampaignSpec{
			MaxClaims:      100,
			AmountPerClaim: new(big.Int).Div(reserve, big.NewInt(100)),
		}
		token, positionID, err = fac.DeployTokenWithCampaigns(simOwner, params, poolCfg, devBuy, []model.CampaignSpec{campaign}, cfg.CampaignPercentage)
	} else {
		token, positionID, err = fac.DeployToken(simOwner, params, poolCfg, devBuy)
	}
	if err != nil {
		return fmt.Errorf("deploy token: %w", err)
	}

	// Synthetic trading fees so the claim has something to split.
	fees0 := new(big.Int).Div(supply, big.NewInt(1000))
	fees1 := new(big.Int).Div(supply, big.NewInt(2000))
	if err := engine.AccrueFees(positionID, fees0, fees1); err != nil {
		return fmt.Errorf("accrue fees: %w", err)
	}

	claim, err := fac.ClaimRewards(token)
	if err != nil {
		return fmt.Errorf("claim rewards: %w", err)
	}

	logger.Info("simulation complete",
		zap.String("token", token.Hex()),
		zap.Uint64("position_id", positionID),
		zap.String("recipient", claim.Recipient),
		zap.String("recipient_amount0", claim.RecipientAmount0),
		zap.String("recipient_amount1", claim.RecipientAmount1),
		zap.String("total_amount0", claim.TotalAmount0),
		zap.String("total_amount1", claim.TotalAmount1),
	)

	fmt.Printf("token:    %s\n", token.Hex())
	fmt.Printf("position: %d\n", positionID)
	fmt.Printf("deployer balance: %s\n", led.BalanceOf(token, simDeployer))
	return nil
}
