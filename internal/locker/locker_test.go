package locker

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"launchKit/internal/dex"
	"launchKit/internal/ledger"
	"launchKit/internal/model"
)

var (
	lockerAddr  = common.HexToAddress("0x0000000000000000000000000000000000001000")
	ownerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	factoryAddr = common.HexToAddress("0x0000000000000000000000000000000000000002")
	userAddr    = common.HexToAddress("0x0000000000000000000000000000000000000003")
	teamAddr    = common.HexToAddress("0x0000000000000000000000000000000000000004")
	agentAddr   = common.HexToAddress("0x0000000000000000000000000000000000000005")
	otherAddr   = common.HexToAddress("0x0000000000000000000000000000000000000006")
	asset0      = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	asset1      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// stubPositions hands out fixed fee amounts on collect, crediting the
// recipient on the ledger the way the external position manager would.
type stubPositions struct {
	ledger *ledger.Ledger
	owed0  *big.Int
	owed1  *big.Int
}

func (s *stubPositions) Mint(common.Address, dex.MintParams) (dex.MintResult, error) {
	return dex.MintResult{}, nil
}

func (s *stubPositions) Collect(caller common.Address, params dex.CollectParams) (*big.Int, *big.Int, error) {
	pay0 := new(big.Int).Set(s.owed0)
	pay1 := new(big.Int).Set(s.owed1)
	s.ledger.Mint(asset0, params.Recipient, pay0)
	s.ledger.Mint(asset1, params.Recipient, pay1)
	s.owed0.SetInt64(0)
	s.owed1.SetInt64(0)
	return pay0, pay1, nil
}

func (s *stubPositions) Positions(uint64) (dex.PositionInfo, error) {
	return dex.PositionInfo{Token0: asset0, Token1: asset1, Liquidity: big.NewInt(1)}, nil
}

func (s *stubPositions) OwnerOf(uint64) (common.Address, error) {
	return lockerAddr, nil
}

func (s *stubPositions) SafeTransferFrom(common.Address, common.Address, common.Address, uint64) error {
	return nil
}

func newTestLocker(t *testing.T, owed0, owed1 int64) (*Locker, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	positions := &stubPositions{ledger: l, owed0: big.NewInt(owed0), owed1: big.NewInt(owed1)}
	lk, err := New(Config{
		Address: lockerAddr,
		Owner:   ownerAddr,
		Factory: factoryAddr,
		Rewards: model.RewardConfig{
			TeamRecipient:  teamAddr,
			TeamBps:        20,
			AgentRecipient: agentAddr,
			AgentBps:       10,
		},
	}, l, positions, nil, nil)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	return lk, l
}

func TestCollectRewardsSplit(t *testing.T) {
	lk, l := newTestLocker(t, 1000, 500)
	if err := lk.AddUserRewardRecipient(factoryAddr, 1, userAddr); err != nil {
		t.Fatalf("add recipient: %v", err)
	}

	record, err := lk.CollectRewards(1)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	checks := []struct {
		asset common.Address
		who   common.Address
		want  int64
	}{
		{asset0, userAddr, 700},
		{asset0, teamAddr, 200},
		{asset0, agentAddr, 100},
		{asset1, userAddr, 350},
		{asset1, teamAddr, 100},
		{asset1, agentAddr, 50},
	}
	for _, check := range checks {
		if got := l.BalanceOf(check.asset, check.who); got.Cmp(big.NewInt(check.want)) != 0 {
			t.Fatalf("balance of %s in %s = %s, want %d", check.who, check.asset, got, check.want)
		}
	}
	if record.TotalAmount0 != "1000" || record.TotalAmount1 != "500" {
		t.Fatalf("record totals (%s, %s), want (1000, 500)", record.TotalAmount0, record.TotalAmount1)
	}
	if record.RecipientAmount0 != "700" || record.RecipientAmount1 != "350" {
		t.Fatalf("record recipient amounts (%s, %s), want (700, 350)", record.RecipientAmount0, record.RecipientAmount1)
	}
	if got := l.BalanceOf(asset0, lockerAddr); got.Sign() != 0 {
		t.Fatalf("locker retained %s of asset0", got)
	}
}

func TestCollectRewardsDustGoesToRecipient(t *testing.T) {
	// 7 units at 20/10: team 1, agent 0, recipient keeps the remainder 6.
	lk, l := newTestLocker(t, 7, 0)
	if err := lk.AddUserRewardRecipient(factoryAddr, 1, userAddr); err != nil {
		t.Fatalf("add recipient: %v", err)
	}
	if _, err := lk.CollectRewards(1); err != nil {
		t.Fatalf("collect: %v", err)
	}

	user := l.BalanceOf(asset0, userAddr)
	team := l.BalanceOf(asset0, teamAddr)
	agent := l.BalanceOf(asset0, agentAddr)
	sum := new(big.Int).Add(user, team)
	sum.Add(sum, agent)
	if sum.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("shares sum to %s, want 7", sum)
	}
	if user.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("recipient share = %s, want 6 with dust", user)
	}
}

func TestCollectRewardsOverrideShadowsTeamOnly(t *testing.T) {
	lk, l := newTestLocker(t, 1000, 0)
	if err := lk.AddUserRewardRecipient(factoryAddr, 1, userAddr); err != nil {
		t.Fatalf("add recipient: %v", err)
	}
	if err := lk.SetOverrideTeamRewards(ownerAddr, 1, otherAddr, 5); err != nil {
		t.Fatalf("set override: %v", err)
	}

	if _, err := lk.CollectRewards(1); err != nil {
		t.Fatalf("collect: %v", err)
	}

	// Override team 5% to otherAddr; the default team gets nothing and the
	// agent still takes its default 10%.
	if got := l.BalanceOf(asset0, otherAddr); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("override recipient = %s, want 50", got)
	}
	if got := l.BalanceOf(asset0, teamAddr); got.Sign() != 0 {
		t.Fatalf("default team received %s despite override", got)
	}
	if got := l.BalanceOf(asset0, agentAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("agent = %s, want 100", got)
	}
	if got := l.BalanceOf(asset0, userAddr); got.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("recipient = %s, want 850", got)
	}
}

func TestCollectRewardsUnknownPosition(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)
	if _, err := lk.CollectRewards(9); err != model.ErrInvalidTokenID {
		t.Fatalf("expected ErrInvalidTokenID, got %v", err)
	}
}

func TestUpdateRewardCrossSumGuard(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)

	if err := lk.UpdateTeamReward(ownerAddr, 95); err != model.ErrExceedsMaxBps {
		t.Fatalf("expected ErrExceedsMaxBps, got %v", err)
	}
	if got := lk.RewardConfig().TeamBps; got != 20 {
		t.Fatalf("team bps changed to %d after failed update", got)
	}

	if err := lk.UpdateAgentReward(ownerAddr, 80); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}
	if got := lk.RewardConfig().AgentBps; got != 80 {
		t.Fatalf("agent bps = %d, want 80", got)
	}

	if err := lk.UpdateTeamReward(otherAddr, 10); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed for non-owner, got %v", err)
	}
}

func TestSetOverrideValidation(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)

	if err := lk.SetOverrideTeamRewards(userAddr, 1, otherAddr, 5); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if err := lk.SetOverrideTeamRewards(ownerAddr, 1, otherAddr, 101); err != model.ErrInvalidRewardPercentage {
		t.Fatalf("expected ErrInvalidRewardPercentage, got %v", err)
	}
	// Agent share is 10, so 91 pushes the sum past 100.
	if err := lk.SetOverrideTeamRewards(ownerAddr, 1, otherAddr, 91); err != model.ErrExceedsMaxBps {
		t.Fatalf("expected ErrExceedsMaxBps, got %v", err)
	}
	if err := lk.SetOverrideTeamRewards(ownerAddr, 1, otherAddr, 90); err != nil {
		t.Fatalf("valid override failed: %v", err)
	}
}

func TestReplaceUserRewardRecipient(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)
	if err := lk.AddUserRewardRecipient(factoryAddr, 1, userAddr); err != nil {
		t.Fatalf("add recipient: %v", err)
	}
	if err := lk.AddUserRewardRecipient(factoryAddr, 2, userAddr); err != nil {
		t.Fatalf("add recipient: %v", err)
	}

	// Neither owner nor incumbent: rejected, no state change.
	if err := lk.ReplaceUserRewardRecipient(otherAddr, 1, otherAddr); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if rec, _ := lk.Recipient(1); rec.Recipient != userAddr {
		t.Fatalf("recipient changed after rejected replace")
	}

	// Incumbent replaces; the old index loses the id without holes.
	if err := lk.ReplaceUserRewardRecipient(userAddr, 1, otherAddr); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := lk.PositionsOf(userAddr); !reflect.DeepEqual(got, []uint64{2}) {
		t.Fatalf("old recipient index = %v, want [2]", got)
	}
	if got := lk.PositionsOf(otherAddr); !reflect.DeepEqual(got, []uint64{1}) {
		t.Fatalf("new recipient index = %v, want [1]", got)
	}
	rec, ok := lk.Recipient(1)
	if !ok || rec.Recipient != otherAddr {
		t.Fatalf("recipient record = %+v, want %s", rec, otherAddr)
	}

	if err := lk.ReplaceUserRewardRecipient(ownerAddr, 9, otherAddr); err != model.ErrInvalidTokenID {
		t.Fatalf("expected ErrInvalidTokenID for unknown position, got %v", err)
	}
}

func TestAddUserRewardRecipientAuth(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)
	if err := lk.AddUserRewardRecipient(otherAddr, 1, userAddr); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if err := lk.AddUserRewardRecipient(ownerAddr, 1, userAddr); err != nil {
		t.Fatalf("owner add failed: %v", err)
	}
}

func TestOnERC721ReceivedGate(t *testing.T) {
	lk, _ := newTestLocker(t, 0, 0)
	if err := lk.OnERC721Received(otherAddr, otherAddr, 1); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if err := lk.OnERC721Received(factoryAddr, factoryAddr, 1); err != nil {
		t.Fatalf("factory transfer rejected: %v", err)
	}
}

func TestWithdrawEscapeHatches(t *testing.T) {
	lk, l := newTestLocker(t, 0, 0)
	l.Mint(asset0, lockerAddr, big.NewInt(40))
	l.CreditNative(lockerAddr, big.NewInt(15))

	if err := lk.WithdrawToken(otherAddr, asset0, otherAddr); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if err := lk.WithdrawToken(ownerAddr, asset0, teamAddr); err != nil {
		t.Fatalf("withdraw token: %v", err)
	}
	if got := l.BalanceOf(asset0, teamAddr); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("withdrawn balance = %s, want 40", got)
	}
	if err := lk.WithdrawNative(ownerAddr, teamAddr); err != nil {
		t.Fatalf("withdraw native: %v", err)
	}
	if got := l.NativeBalanceOf(teamAddr); got.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("withdrawn native = %s, want 15", got)
	}
}
