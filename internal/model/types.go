package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolConfig selects the pool a new token is bootstrapped against. Chosen by
// the caller, validated by the factory, immutable per deployment call.
type PoolConfig struct {
	PairedToken common.Address
	DevBuyFee   uint32
	Tick        int32
}

// DeployParams carries the caller-supplied token parameters for a deployment.
type DeployParams struct {
	Name        string
	Symbol      string
	Supply      *big.Int
	Fee         uint32
	Salt        common.Hash
	Deployer    common.Address
	RequesterID uint64
	Image       string
	Provenance  common.Hash
}

// CampaignSpec describes one claim campaign funded from the campaign reserve.
type CampaignSpec struct {
	MaxClaims          uint64
	AmountPerClaim     *big.Int
	MaxSponsoredClaims uint64
}

// DeploymentInfo records one successful deployment. Created once, never
// mutated, kept for the lifetime of the factory.
type DeploymentInfo struct {
	Token      common.Address
	PositionID uint64
	Locker     common.Address
}

// UserRewardRecipient is the per-position reward recipient record.
type UserRewardRecipient struct {
	Recipient common.Address
	LPTokenID uint64
}

// TeamRewardOverride replaces the default team recipient and percentage for a
// single position. Absence of an override means the defaults apply.
type TeamRewardOverride struct {
	Recipient common.Address
	Bps       uint8
	LPTokenID uint64
}

// RewardConfig aggregates the global reward parameters so the cross-field
// percentage invariant is validated atomically.
type RewardConfig struct {
	TeamRecipient  common.Address
	TeamBps        uint8
	AgentRecipient common.Address
	AgentBps       uint8
}

// MaxRewardBps is the full share on this system's 0-100 percentage scale.
const MaxRewardBps = 100

// Validate checks each percentage and their sum against the 0-100 scale.
func (c RewardConfig) Validate() error {
	if c.TeamBps > MaxRewardBps || c.AgentBps > MaxRewardBps {
		return ErrInvalidRewardPercentage
	}
	if int(c.TeamBps)+int(c.AgentBps) > MaxRewardBps {
		return ErrExceedsMaxBps
	}
	return nil
}
