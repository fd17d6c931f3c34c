// Package pool bootstraps the one-sided liquidity position a new token
// launches with.
package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"launchKit/internal/dex"
	"launchKit/internal/locker"
	"launchKit/internal/miner"
	"launchKit/internal/model"
)

// Configurator creates and seeds the pool for a freshly deployed token and
// parks the position receipt in the reward locker.
type Configurator struct {
	factory   dex.PoolFactory
	positions dex.PositionManager
	locker    *locker.Locker
	logger    *zap.Logger
}

// NewConfigurator builds a configurator with its collaborators.
func NewConfigurator(factory dex.PoolFactory, positions dex.PositionManager, lk *locker.Locker, logger *zap.Logger) *Configurator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Configurator{factory: factory, positions: positions, locker: lk, logger: logger}
}

// ConfigurePool re-validates the address ordering, initializes the pool at
// the tick's price, mints a full-range one-sided position funded with the
// entire supply of the new token, transfers the receipt to the locker, and
// registers the depositor as the position's reward recipient. The caller is
// the factory identity that holds the supply and approved the position
// manager.
func (c *Configurator) ConfigurePool(caller, newToken, pairedToken common.Address, tick, tickSpacing int32, fee uint32, supply *big.Int, depositor common.Address) (uint64, error) {
	if !miner.AddressBelow(newToken, pairedToken) {
		return 0, model.ErrInvalidSalt
	}

	sqrtPrice, err := dex.SqrtRatioAtTick(tick)
	if err != nil {
		return 0, fmt.Errorf("price at tick %d: %w", tick, err)
	}

	poolAddr, err := c.factory.CreatePool(caller, newToken, pairedToken, fee)
	if err != nil {
		return 0, fmt.Errorf("create pool: %w", err)
	}
	if err := c.factory.Initialize(poolAddr, sqrtPrice); err != nil {
		return 0, fmt.Errorf("initialize pool: %w", err)
	}

	result, err := c.positions.Mint(caller, dex.MintParams{
		Token0:         newToken,
		Token1:         pairedToken,
		Fee:            fee,
		TickLower:      tick,
		TickUpper:      dex.MaxUsableTick(tickSpacing),
		Amount0Desired: supply,
		Amount1Desired: new(big.Int),
		Recipient:      caller,
	})
	if err != nil {
		return 0, fmt.Errorf("mint position: %w", err)
	}

	if err := c.positions.SafeTransferFrom(caller, caller, c.locker.Address(), result.PositionID); err != nil {
		return 0, fmt.Errorf("transfer position to locker: %w", err)
	}
	if err := c.locker.AddUserRewardRecipient(caller, result.PositionID, depositor); err != nil {
		return 0, fmt.Errorf("register reward recipient: %w", err)
	}

	c.logger.Info("pool configured",
		zap.String("token", newToken.Hex()),
		zap.String("paired", pairedToken.Hex()),
		zap.String("pool", poolAddr.Hex()),
		zap.Uint64("position_id", result.PositionID),
		zap.Int32("tick", tick),
	)
	return result.PositionID, nil
}
