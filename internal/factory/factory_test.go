package factory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchKit/internal/dex"
	"launchKit/internal/ledger"
	"launchKit/internal/locker"
	"launchKit/internal/miner"
	"launchKit/internal/model"
	"launchKit/internal/pool"
)

var (
	factoryAddr = common.HexToAddress("0x000000000000000000000000000000000000f0f0")
	lockerAddr  = common.HexToAddress("0x0000000000000000000000000000000000001000")
	ownerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	adminAddr   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	deployer    = common.HexToAddress("0x0000000000000000000000000000000000000003")
	teamAddr    = common.HexToAddress("0x0000000000000000000000000000000000000004")
	agentAddr   = common.HexToAddress("0x0000000000000000000000000000000000000005")
	outsider    = common.HexToAddress("0x0000000000000000000000000000000000000006")
	// High address so roughly every other candidate salt sorts below it.
	weth = common.HexToAddress("0x8000000000000000000000000000000000000001")
)

type harness struct {
	ledger  *ledger.Ledger
	engine  *dex.Engine
	locker  *locker.Locker
	factory *Factory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := ledger.New()
	engine, err := dex.NewEngine(l, weth)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	lk, err := locker.New(locker.Config{
		Address: lockerAddr,
		Owner:   ownerAddr,
		Factory: factoryAddr,
		Rewards: model.RewardConfig{
			TeamRecipient:  teamAddr,
			TeamBps:        20,
			AgentRecipient: agentAddr,
			AgentBps:       10,
		},
	}, l, engine, nil, nil)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	engine.RegisterReceiver(lk.Address(), lk)
	configurator := pool.NewConfigurator(engine, engine, lk, nil)

	begin := func() func() {
		ledgerSnap := l.Snapshot()
		engineSnap := engine.Snapshot()
		lockerSnap := lk.Snapshot()
		return func() {
			l.Restore(ledgerSnap)
			engine.Restore(engineSnap)
			lk.Restore(lockerSnap)
		}
	}

	f, err := New(Config{
		Address:       factoryAddr,
		Owner:         ownerAddr,
		WrappedNative: weth,
	}, Deps{
		Ledger:          l,
		Configurator:    configurator,
		Locker:          lk,
		Router:          engine,
		Campaigns:       engine,
		PositionSpender: engine.ManagerAddress(),
		CampaignSpender: engine.CampaignAddress(),
		Begin:           begin,
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	if err := f.ToggleAllowedPairedToken(ownerAddr, weth, true); err != nil {
		t.Fatalf("allow paired: %v", err)
	}
	return &harness{ledger: l, engine: engine, locker: lk, factory: f}
}

func testParams(t *testing.T, h *harness) model.DeployParams {
	t.Helper()
	params := model.DeployParams{
		Name:        "Launch Token",
		Symbol:      "LAUNCH",
		Supply:      big.NewInt(1_000_000),
		Fee:         3000,
		Deployer:    deployer,
		RequesterID: 42,
		Image:       "ipfs://QmImage",
		Provenance:  common.HexToHash("0xbeef"),
	}
	found, err := miner.FindSalt(context.Background(), miner.Input{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Supply:      params.Supply,
		RequesterID: params.RequesterID,
		Image:       params.Image,
		Provenance:  params.Provenance,
		Deployer:    params.Deployer,
		Factory:     factoryAddr,
		PairedToken: weth,
		Seed:        miner.SeedFromTime(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatalf("mine salt: %v", err)
	}
	params.Salt = found.Salt
	return params
}

func badSalt(t *testing.T, params model.DeployParams) common.Hash {
	t.Helper()
	in := miner.Input{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Supply:      params.Supply,
		RequesterID: params.RequesterID,
		Image:       params.Image,
		Provenance:  params.Provenance,
		Deployer:    params.Deployer,
		Factory:     factoryAddr,
		PairedToken: weth,
	}
	for i := int64(1); i < 1<<16; i++ {
		salt := common.BigToHash(big.NewInt(i))
		if _, ok, err := miner.VerifySalt(in, salt); err == nil && !ok {
			return salt
		}
	}
	t.Fatalf("no failing salt found")
	return common.Hash{}
}

func poolConfig() model.PoolConfig {
	return model.PoolConfig{PairedToken: weth, DevBuyFee: 3000, Tick: -60}
}

func TestDeployTokenEndToEnd(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	token, positionID, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !miner.AddressBelow(token, weth) {
		t.Fatalf("token %s does not sort below paired %s", token, weth)
	}

	info, ok := h.factory.DeploymentFor(token)
	if !ok {
		t.Fatalf("deployment not recorded")
	}
	if info.PositionID != positionID || info.Locker != lockerAddr {
		t.Fatalf("deployment info = %+v", info)
	}
	byDeployer := h.factory.TokensDeployedBy(deployer)
	if len(byDeployer) != 1 || byDeployer[0].Token != token {
		t.Fatalf("per-deployer list = %+v", byDeployer)
	}

	rec, ok := h.locker.Recipient(positionID)
	if !ok || rec.Recipient != deployer {
		t.Fatalf("locker recipient = %+v, want %s", rec, deployer)
	}
	if owner, _ := h.engine.OwnerOf(positionID); owner != lockerAddr {
		t.Fatalf("position owner = %s, want locker", owner)
	}
	// The full supply went one-sided into the pool.
	if got := h.ledger.BalanceOf(token, factoryAddr); got.Sign() != 0 {
		t.Fatalf("factory retained %s tokens", got)
	}
}

func TestDeploySameSaltTwiceFails(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	if _, _, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	if _, _, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil); err == nil {
		t.Fatalf("second deploy with same (deployer, salt) must fail")
	}
}

func TestDeployAuthAndValidation(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	if _, _, err := h.factory.DeployToken(outsider, params, poolConfig(), nil); err != model.ErrNotOwnerOrAdmin {
		t.Fatalf("expected ErrNotOwnerOrAdmin, got %v", err)
	}

	if err := h.factory.SetAdmin(outsider, adminAddr, true); err != model.ErrNotAllowed {
		t.Fatalf("expected ErrNotAllowed for non-owner setAdmin, got %v", err)
	}
	if err := h.factory.SetAdmin(ownerAddr, adminAddr, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}

	disallowed := poolConfig()
	disallowed.PairedToken = outsider
	if _, _, err := h.factory.DeployToken(adminAddr, params, disallowed, nil); err != model.ErrNotAllowedPairedToken {
		t.Fatalf("expected ErrNotAllowedPairedToken, got %v", err)
	}

	badTick := poolConfig()
	badTick.Tick = -61
	if _, _, err := h.factory.DeployToken(adminAddr, params, badTick, nil); err != model.ErrInvalidTick {
		t.Fatalf("expected ErrInvalidTick, got %v", err)
	}

	unknownFee := params
	unknownFee.Fee = 1234
	if _, _, err := h.factory.DeployToken(adminAddr, unknownFee, poolConfig(), nil); err != model.ErrInvalidTick {
		t.Fatalf("expected ErrInvalidTick for unknown fee tier, got %v", err)
	}

	// Admin deploy succeeds once parameters are valid.
	if _, _, err := h.factory.DeployToken(adminAddr, params, poolConfig(), nil); err != nil {
		t.Fatalf("admin deploy: %v", err)
	}
}

func TestDeployInvalidSaltRollsBack(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)
	good := params.Salt
	params.Salt = badSalt(t, params)

	if _, _, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil); err != model.ErrInvalidSalt {
		t.Fatalf("expected ErrInvalidSalt, got %v", err)
	}
	if got := h.factory.TokensDeployedBy(deployer); len(got) != 0 {
		t.Fatalf("failed deploy left records: %+v", got)
	}

	// The rollback released all state; a valid salt still deploys.
	params.Salt = good
	if _, _, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil); err != nil {
		t.Fatalf("deploy after rollback: %v", err)
	}
}

func TestDeployTokenWithCampaigns(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	campaigns := []model.CampaignSpec{
		{MaxClaims: 1000, AmountPerClaim: big.NewInt(100), MaxSponsoredClaims: 0},
		{MaxClaims: 500, AmountPerClaim: big.NewInt(200), MaxSponsoredClaims: 0},
	}
	token, _, err := h.factory.DeployTokenWithCampaigns(ownerAddr, params, poolConfig(), nil, campaigns, 30)
	if err != nil {
		t.Fatalf("deploy with campaigns: %v", err)
	}

	// Reserve 30% of 1,000,000; the campaigns drew 200,000 of it and the
	// rest stays approved on the factory. Remainder seeded the pool.
	reserve := big.NewInt(300_000)
	drawn := big.NewInt(200_000)
	remainder := big.NewInt(700_000)

	if got := h.ledger.BalanceOf(token, h.engine.CampaignAddress()); got.Cmp(drawn) != 0 {
		t.Fatalf("campaign balance = %s, want %s", got, drawn)
	}
	leftover := new(big.Int).Sub(reserve, drawn)
	if got := h.ledger.BalanceOf(token, factoryAddr); got.Cmp(leftover) != 0 {
		t.Fatalf("factory leftover = %s, want %s", got, leftover)
	}
	// reserve + remainder covers the full supply exactly.
	if total := new(big.Int).Add(reserve, remainder); total.Cmp(params.Supply) != 0 {
		t.Fatalf("reserve + remainder = %s, want %s", total, params.Supply)
	}
}

func TestDeployCampaignPercentageBound(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	_, _, err := h.factory.DeployTokenWithCampaigns(ownerAddr, params, poolConfig(), nil, nil, 101)
	if err != model.ErrInvalidCampaignPercentage {
		t.Fatalf("expected ErrInvalidCampaignPercentage, got %v", err)
	}
	// Rejected before any token was minted.
	predicted, _, err := miner.VerifySalt(miner.Input{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Supply:      params.Supply,
		RequesterID: params.RequesterID,
		Image:       params.Image,
		Provenance:  params.Provenance,
		Deployer:    params.Deployer,
		Factory:     factoryAddr,
		PairedToken: weth,
	}, params.Salt)
	if err != nil {
		t.Fatalf("verify salt: %v", err)
	}
	if _, ok := h.ledger.Token(predicted); ok {
		t.Fatalf("token was minted despite rejected percentage")
	}
}

func TestClaimRewardsFlow(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)

	token, positionID, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if _, err := h.factory.ClaimRewards(outsider); err != model.ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := h.engine.AccrueFees(positionID, big.NewInt(1000), big.NewInt(500)); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	record, err := h.factory.ClaimRewards(token)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if record.TotalAmount0 != "1000" || record.TotalAmount1 != "500" {
		t.Fatalf("claim totals (%s, %s), want (1000, 500)", record.TotalAmount0, record.TotalAmount1)
	}

	// Removing the paired token from the allow-list blocks new deployments
	// but leaves existing reward flow operable.
	if err := h.factory.ToggleAllowedPairedToken(ownerAddr, weth, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := h.engine.AccrueFees(positionID, big.NewInt(10), big.NewInt(5)); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if _, err := h.factory.ClaimRewards(token); err != nil {
		t.Fatalf("claim after toggle-off: %v", err)
	}
}

func TestDeployWithDevBuy(t *testing.T) {
	h := newHarness(t)
	params := testParams(t, h)
	h.ledger.CreditNative(ownerAddr, big.NewInt(1000))

	token, _, err := h.factory.DeployToken(ownerAddr, params, poolConfig(), big.NewInt(1000))
	if err != nil {
		t.Fatalf("deploy with dev buy: %v", err)
	}

	// Paired is the wrapped native asset, so the payment swaps straight
	// into the new token, credited to the deployer.
	if got := h.ledger.BalanceOf(token, deployer); got.Sign() <= 0 {
		t.Fatalf("deployer received no tokens from dev buy")
	}
	if got := h.ledger.NativeBalanceOf(ownerAddr); got.Sign() != 0 {
		t.Fatalf("payment not consumed, %s left", got)
	}
}
