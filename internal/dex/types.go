// Package dex defines the external AMM collaborators at their call boundary
// and provides an in-memory simulated implementation for tests and the
// simulate command. The collaborators' internals (price curve, claim
// verification) are out of scope; only the documented call contracts matter.
package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MintParams are the position-manager mint arguments.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Recipient      common.Address
}

// MintResult is the outcome of a position mint.
type MintResult struct {
	PositionID uint64
	Liquidity  *big.Int
	Amount0    *big.Int
	Amount1    *big.Int
}

// CollectParams are the position-manager collect arguments.
type CollectParams struct {
	PositionID uint64
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// PositionInfo is the subset of position state this system reads back.
type PositionInfo struct {
	Token0    common.Address
	Token1    common.Address
	Fee       uint32
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
}

// ExactInputSingleParams are the swap-router arguments. Zero minimum output
// and zero price limit disable slippage protection.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// PoolFactory creates and initializes pools.
type PoolFactory interface {
	CreatePool(caller, tokenA, tokenB common.Address, fee uint32) (common.Address, error)
	Initialize(pool common.Address, sqrtPriceX96 *big.Int) error
}

// PositionReceiver is the ERC721-style receive hook a custody contract
// implements to gate incoming position receipts.
type PositionReceiver interface {
	OnERC721Received(operator, from common.Address, positionID uint64) error
}

// PositionManager mints, transfers, and collects on liquidity positions.
type PositionManager interface {
	Mint(caller common.Address, params MintParams) (MintResult, error)
	Collect(caller common.Address, params CollectParams) (*big.Int, *big.Int, error)
	Positions(positionID uint64) (PositionInfo, error)
	OwnerOf(positionID uint64) (common.Address, error)
	SafeTransferFrom(caller, from, to common.Address, positionID uint64) error
}

// SwapRouter executes single-hop swaps. A positive value is native currency
// attached to the call.
type SwapRouter interface {
	ExactInputSingle(caller common.Address, params ExactInputSingleParams, value *big.Int) (*big.Int, error)
}

// CampaignCreator is the claim-campaign collaborator, consumed only through
// this one call. Value covers sponsored-claim fees.
type CampaignCreator interface {
	CreateCampaign(caller, manager, token common.Address, maxClaims uint64, amountPerClaim *big.Int, maxSponsoredClaims uint64, value *big.Int) (uint64, error)
}
