// Package locker implements the reward locker: it custodies liquidity
// position receipts and splits collected trading fees among the position's
// reward recipient, the team, and the automation agent.
package locker

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"launchKit/internal/dex"
	"launchKit/internal/ledger"
	"launchKit/internal/model"
	"launchKit/internal/storage"
)

// maxCollectAmount caps collect calls at the maximum collectible value.
var maxCollectAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Locker custodies position receipts and pays out fee splits. All mutating
// operations run under one mutex; a concurrent runtime gets the same
// no-reentry property the sequential host provides.
type Locker struct {
	mu sync.Mutex

	addr    common.Address
	owner   common.Address
	factory common.Address

	ledger    *ledger.Ledger
	positions dex.PositionManager
	recorder  storage.Recorder
	logger    *zap.Logger

	config     model.RewardConfig
	recipients map[uint64]model.UserRewardRecipient
	overrides  map[uint64]model.TeamRewardOverride

	// Dense per-user index: userPositions holds each user's position ids,
	// indexOf maps a position id to its slot so removal can swap-with-last
	// and pop instead of leaving holes.
	userPositions map[common.Address][]uint64
	indexOf       map[uint64]int
}

// Config bundles the locker's construction parameters.
type Config struct {
	Address common.Address
	Owner   common.Address
	Factory common.Address
	Rewards model.RewardConfig
}

// New creates a locker. The recorder may be nil; the logger defaults to a
// no-op logger.
func New(cfg Config, l *ledger.Ledger, positions dex.PositionManager, recorder storage.Recorder, logger *zap.Logger) (*Locker, error) {
	if err := cfg.Rewards.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := l.RegisterContract(cfg.Address); err != nil {
		return nil, fmt.Errorf("register locker address: %w", err)
	}
	return &Locker{
		addr:          cfg.Address,
		owner:         cfg.Owner,
		factory:       cfg.Factory,
		ledger:        l,
		positions:     positions,
		recorder:      recorder,
		logger:        logger,
		config:        cfg.Rewards,
		recipients:    make(map[uint64]model.UserRewardRecipient),
		overrides:     make(map[uint64]model.TeamRewardOverride),
		userPositions: make(map[common.Address][]uint64),
		indexOf:       make(map[uint64]int),
	}, nil
}

// Address is the locker's ledger identity.
func (lk *Locker) Address() common.Address { return lk.addr }

// SetFactory points the locker at a new factory. Owner only.
func (lk *Locker) SetFactory(caller, factory common.Address) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner {
		return model.ErrNotAllowed
	}
	lk.factory = factory
	return nil
}

// OnERC721Received accepts a position receipt only from the registered
// factory.
func (lk *Locker) OnERC721Received(operator, from common.Address, positionID uint64) error {
	if from != lk.factory && operator != lk.factory {
		return model.ErrNotAllowed
	}
	return nil
}

// AddUserRewardRecipient registers or overwrites the reward recipient for a
// position and indexes the position under the recipient. Owner or factory
// only.
func (lk *Locker) AddUserRewardRecipient(caller common.Address, positionID uint64, recipient common.Address) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner && caller != lk.factory {
		return model.ErrNotAllowed
	}
	if existing, ok := lk.recipients[positionID]; ok {
		lk.removeFromIndex(existing.Recipient, positionID)
	}
	lk.recipients[positionID] = model.UserRewardRecipient{Recipient: recipient, LPTokenID: positionID}
	lk.appendToIndex(recipient, positionID)
	return nil
}

// ReplaceUserRewardRecipient swaps the recipient record wholesale. Only the
// owner or the incumbent recipient may replace; the position id is removed
// from the old recipient's index without leaving a hole.
func (lk *Locker) ReplaceUserRewardRecipient(caller common.Address, positionID uint64, newRecipient common.Address) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	existing, ok := lk.recipients[positionID]
	if !ok {
		return model.ErrInvalidTokenID
	}
	if caller != lk.owner && caller != existing.Recipient {
		return model.ErrNotAllowed
	}
	lk.removeFromIndex(existing.Recipient, positionID)
	lk.recipients[positionID] = model.UserRewardRecipient{Recipient: newRecipient, LPTokenID: positionID}
	lk.appendToIndex(newRecipient, positionID)
	return nil
}

// SetOverrideTeamRewards installs a per-position team override. Owner only;
// the override percentage is validated against the current agent share.
func (lk *Locker) SetOverrideTeamRewards(caller common.Address, positionID uint64, recipient common.Address, bps uint8) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner {
		return model.ErrNotAllowed
	}
	if bps > model.MaxRewardBps {
		return model.ErrInvalidRewardPercentage
	}
	if int(bps)+int(lk.config.AgentBps) > model.MaxRewardBps {
		return model.ErrExceedsMaxBps
	}
	lk.overrides[positionID] = model.TeamRewardOverride{Recipient: recipient, Bps: bps, LPTokenID: positionID}
	return nil
}

// UpdateTeamReward updates the default team percentage. Owner only; the
// whole configuration aggregate is validated before committing, so a
// violating update leaves prior values unchanged.
func (lk *Locker) UpdateTeamReward(caller common.Address, bps uint8) error {
	return lk.updateConfig(caller, func(c *model.RewardConfig) { c.TeamBps = bps })
}

// UpdateAgentReward updates the agent percentage. Owner only.
func (lk *Locker) UpdateAgentReward(caller common.Address, bps uint8) error {
	return lk.updateConfig(caller, func(c *model.RewardConfig) { c.AgentBps = bps })
}

// UpdateTeamRecipient updates the default team recipient. Owner only.
func (lk *Locker) UpdateTeamRecipient(caller, recipient common.Address) error {
	return lk.updateConfig(caller, func(c *model.RewardConfig) { c.TeamRecipient = recipient })
}

// UpdateAgentRecipient updates the agent recipient. Owner only.
func (lk *Locker) UpdateAgentRecipient(caller, recipient common.Address) error {
	return lk.updateConfig(caller, func(c *model.RewardConfig) { c.AgentRecipient = recipient })
}

func (lk *Locker) updateConfig(caller common.Address, mutate func(*model.RewardConfig)) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner {
		return model.ErrNotAllowed
	}
	candidate := lk.config
	mutate(&candidate)
	if err := candidate.Validate(); err != nil {
		return err
	}
	lk.config = candidate
	return nil
}

// RewardConfig returns the current default reward parameters.
func (lk *Locker) RewardConfig() model.RewardConfig {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.config
}

// PositionsOf returns the position ids indexed under a recipient.
func (lk *Locker) PositionsOf(user common.Address) []uint64 {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	ids := lk.userPositions[user]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// Recipient returns the reward recipient record for a position.
func (lk *Locker) Recipient(positionID uint64) (model.UserRewardRecipient, bool) {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	rec, ok := lk.recipients[positionID]
	return rec, ok
}

// CollectRewards collects accrued fees for a position and splits them.
// Callable by anyone; the shares always flow to the stored recipients. The
// recipient's share is the remainder after the team and agent cuts, so
// integer rounding dust accrues to the recipient. All state reads happen
// before any transfer.
func (lk *Locker) CollectRewards(positionID uint64) (model.RewardClaimRecord, error) {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	recipient, ok := lk.recipients[positionID]
	if !ok {
		return model.RewardClaimRecord{}, model.ErrInvalidTokenID
	}

	teamRecipient := lk.config.TeamRecipient
	teamBps := lk.config.TeamBps
	if override, ok := lk.overrides[positionID]; ok {
		teamRecipient = override.Recipient
		teamBps = override.Bps
	}
	// Overrides shadow only the team share; the agent share always follows
	// the current defaults.
	agentRecipient := lk.config.AgentRecipient
	agentBps := lk.config.AgentBps

	info, err := lk.positions.Positions(positionID)
	if err != nil {
		return model.RewardClaimRecord{}, fmt.Errorf("read position: %w", err)
	}
	total0, total1, err := lk.positions.Collect(lk.addr, dex.CollectParams{
		PositionID: positionID,
		Recipient:  lk.addr,
		Amount0Max: maxCollectAmount,
		Amount1Max: maxCollectAmount,
	})
	if err != nil {
		return model.RewardClaimRecord{}, fmt.Errorf("collect fees: %w", err)
	}

	user0, err := lk.payShares(info.Token0, total0, recipient.Recipient, teamRecipient, teamBps, agentRecipient, agentBps)
	if err != nil {
		return model.RewardClaimRecord{}, err
	}
	user1, err := lk.payShares(info.Token1, total1, recipient.Recipient, teamRecipient, teamBps, agentRecipient, agentBps)
	if err != nil {
		return model.RewardClaimRecord{}, err
	}

	record := model.RewardClaimRecord{
		PositionID:       positionID,
		Recipient:        recipient.Recipient.Hex(),
		Asset0:           info.Token0.Hex(),
		Asset1:           info.Token1.Hex(),
		RecipientAmount0: user0.String(),
		RecipientAmount1: user1.String(),
		TotalAmount0:     total0.String(),
		TotalAmount1:     total1.String(),
	}
	if lk.recorder != nil {
		if err := lk.recorder.RecordRewardClaim(record); err != nil {
			return model.RewardClaimRecord{}, fmt.Errorf("record claim: %w", err)
		}
	}
	lk.logger.Info("rewards claimed",
		zap.Uint64("position_id", positionID),
		zap.String("recipient", record.Recipient),
		zap.String("total0", record.TotalAmount0),
		zap.String("total1", record.TotalAmount1),
	)
	return record, nil
}

// payShares splits one asset's collected amount and transfers each share.
// Returns the recipient's remainder share.
func (lk *Locker) payShares(asset common.Address, total *big.Int, user, team common.Address, teamBps uint8, agent common.Address, agentBps uint8) (*big.Int, error) {
	hundred := big.NewInt(model.MaxRewardBps)
	agentAmount := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(int64(agentBps))), hundred)
	teamAmount := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(int64(teamBps))), hundred)
	userAmount := new(big.Int).Sub(total, teamAmount)
	userAmount.Sub(userAmount, agentAmount)

	if agentAmount.Sign() > 0 {
		if err := lk.ledger.Transfer(asset, lk.addr, agent, agentAmount); err != nil {
			return nil, fmt.Errorf("pay agent share: %w", err)
		}
	}
	if teamAmount.Sign() > 0 {
		if err := lk.ledger.Transfer(asset, lk.addr, team, teamAmount); err != nil {
			return nil, fmt.Errorf("pay team share: %w", err)
		}
	}
	if userAmount.Sign() > 0 {
		if err := lk.ledger.Transfer(asset, lk.addr, user, userAmount); err != nil {
			return nil, fmt.Errorf("pay recipient share: %w", err)
		}
	}
	return userAmount, nil
}

// WithdrawNative sends the locker's full native balance to the target.
// Owner only.
func (lk *Locker) WithdrawNative(caller, to common.Address) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner {
		return model.ErrNotAllowed
	}
	balance := lk.ledger.NativeBalanceOf(lk.addr)
	if balance.Sign() == 0 {
		return nil
	}
	return lk.ledger.TransferNative(lk.addr, to, balance)
}

// WithdrawToken sends the locker's full balance of a token to the target.
// Owner only.
func (lk *Locker) WithdrawToken(caller, token, to common.Address) error {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if caller != lk.owner {
		return model.ErrNotAllowed
	}
	balance := lk.ledger.BalanceOf(token, lk.addr)
	if balance.Sign() == 0 {
		return nil
	}
	return lk.ledger.Transfer(token, lk.addr, to, balance)
}

func (lk *Locker) appendToIndex(user common.Address, positionID uint64) {
	lk.indexOf[positionID] = len(lk.userPositions[user])
	lk.userPositions[user] = append(lk.userPositions[user], positionID)
}

func (lk *Locker) removeFromIndex(user common.Address, positionID uint64) {
	slot, ok := lk.indexOf[positionID]
	if !ok {
		return
	}
	ids := lk.userPositions[user]
	last := len(ids) - 1
	if slot != last {
		moved := ids[last]
		ids[slot] = moved
		lk.indexOf[moved] = slot
	}
	lk.userPositions[user] = ids[:last]
	delete(lk.indexOf, positionID)
	if len(lk.userPositions[user]) == 0 {
		delete(lk.userPositions, user)
	}
}

// LockerSnapshot captures recipient and configuration state for rollback.
type LockerSnapshot struct {
	config        model.RewardConfig
	factory       common.Address
	recipients    map[uint64]model.UserRewardRecipient
	overrides     map[uint64]model.TeamRewardOverride
	userPositions map[common.Address][]uint64
	indexOf       map[uint64]int
}

// Snapshot returns a deep copy of the locker's mutable state.
func (lk *Locker) Snapshot() *LockerSnapshot {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	s := &LockerSnapshot{
		config:        lk.config,
		factory:       lk.factory,
		recipients:    make(map[uint64]model.UserRewardRecipient, len(lk.recipients)),
		overrides:     make(map[uint64]model.TeamRewardOverride, len(lk.overrides)),
		userPositions: make(map[common.Address][]uint64, len(lk.userPositions)),
		indexOf:       make(map[uint64]int, len(lk.indexOf)),
	}
	for id, rec := range lk.recipients {
		s.recipients[id] = rec
	}
	for id, override := range lk.overrides {
		s.overrides[id] = override
	}
	for user, ids := range lk.userPositions {
		copied := make([]uint64, len(ids))
		copy(copied, ids)
		s.userPositions[user] = copied
	}
	for id, slot := range lk.indexOf {
		s.indexOf[id] = slot
	}
	return s
}

// Restore rolls the locker back to a snapshot.
func (lk *Locker) Restore(s *LockerSnapshot) {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	lk.config = s.config
	lk.factory = s.factory
	lk.recipients = s.recipients
	lk.overrides = s.overrides
	lk.userPositions = s.userPositions
	lk.indexOf = s.indexOf
}
