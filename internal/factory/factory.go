// Package factory orchestrates token deployments: validation, deterministic
// deployment, pool bootstrapping, optional pre-trade, campaign funding, and
// deployment bookkeeping.
package factory

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"launchKit/internal/dex"
	"launchKit/internal/ledger"
	"launchKit/internal/locker"
	"launchKit/internal/miner"
	"launchKit/internal/model"
	"launchKit/internal/pool"
	"launchKit/internal/storage"
)

// tickSpacings maps supported fee tiers to their tick spacing. A fee tier
// missing here reads as spacing zero and fails tick validation.
var tickSpacings = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// Config holds the factory's identity and economic parameters.
type Config struct {
	Address           common.Address
	Owner             common.Address
	WrappedNative     common.Address
	SponsoredClaimFee *big.Int
}

// Deps are the factory's collaborators. Begin captures collaborator state
// and returns a restore function; every deployment runs under it so a failed
// sub-step rolls everything back.
type Deps struct {
	Ledger          *ledger.Ledger
	Configurator    *pool.Configurator
	Locker          *locker.Locker
	Router          dex.SwapRouter
	Campaigns       dex.CampaignCreator
	PositionSpender common.Address
	CampaignSpender common.Address
	Recorder        storage.Recorder
	Logger          *zap.Logger
	Begin           func() func()
}

// Factory is the top-level orchestrator. A single mutex guards both deploy
// paths, including the pre-trade callouts, applying the stricter reentrancy
// discipline uniformly.
type Factory struct {
	mu sync.Mutex

	cfg  Config
	deps Deps

	admins        map[common.Address]bool
	allowedPaired map[common.Address]bool

	deployments map[common.Address]model.DeploymentInfo
	byDeployer  map[common.Address][]model.DeploymentInfo
}

// New registers the factory's ledger identity and returns the orchestrator.
func New(cfg Config, deps Deps) (*Factory, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.SponsoredClaimFee == nil {
		cfg.SponsoredClaimFee = new(big.Int)
	}
	if err := deps.Ledger.RegisterContract(cfg.Address); err != nil {
		return nil, fmt.Errorf("register factory address: %w", err)
	}
	return &Factory{
		cfg:           cfg,
		deps:          deps,
		admins:        make(map[common.Address]bool),
		allowedPaired: make(map[common.Address]bool),
		deployments:   make(map[common.Address]model.DeploymentInfo),
		byDeployer:    make(map[common.Address][]model.DeploymentInfo),
	}, nil
}

// Address is the factory's ledger identity.
func (f *Factory) Address() common.Address { return f.cfg.Address }

// SetAdmin flags or unflags an administrator. Owner only.
func (f *Factory) SetAdmin(caller, admin common.Address, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.cfg.Owner {
		return model.ErrNotAllowed
	}
	f.admins[admin] = enabled
	return nil
}

// ToggleAllowedPairedToken flips a token's allow-list entry. Owner only.
// Disallowing a token does not affect reward flow for positions already
// paired with it.
func (f *Factory) ToggleAllowedPairedToken(caller, token common.Address, allowed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.cfg.Owner {
		return model.ErrNotAllowed
	}
	f.allowedPaired[token] = allowed
	return nil
}

// UpdateLiquidityLocker swaps the reward locker collaborator. Owner only.
func (f *Factory) UpdateLiquidityLocker(caller common.Address, lk *locker.Locker, configurator *pool.Configurator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.cfg.Owner {
		return model.ErrNotAllowed
	}
	f.deps.Locker = lk
	f.deps.Configurator = configurator
	return nil
}

// UpdateCampaignContract swaps the campaign collaborator. Owner only.
func (f *Factory) UpdateCampaignContract(caller common.Address, campaigns dex.CampaignCreator, spender common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.cfg.Owner {
		return model.ErrNotAllowed
	}
	f.deps.Campaigns = campaigns
	f.deps.CampaignSpender = spender
	return nil
}

// DeploymentFor returns the deployment record for a token.
func (f *Factory) DeploymentFor(token common.Address) (model.DeploymentInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.deployments[token]
	return info, ok
}

// TokensDeployedBy returns the deployments made on behalf of a deployer, in
// order.
func (f *Factory) TokensDeployedBy(deployer common.Address) []model.DeploymentInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := f.byDeployer[deployer]
	out := make([]model.DeploymentInfo, len(infos))
	copy(out, infos)
	return out
}

// DeployToken validates the request, deterministically deploys the token,
// bootstraps its pool with the full supply, optionally executes the
// pre-trade, and records the deployment.
func (f *Factory) DeployToken(caller common.Address, params model.DeployParams, poolCfg model.PoolConfig, payment *big.Int) (common.Address, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployLocked(caller, params, poolCfg, payment, nil, 0)
}

// DeployTokenWithCampaigns splits the supply into a campaign reserve and a
// liquidity remainder, funds one campaign per entry, and deploys as usual
// with the remainder. The percentage bound is checked before any token is
// minted.
func (f *Factory) DeployTokenWithCampaigns(caller common.Address, params model.DeployParams, poolCfg model.PoolConfig, payment *big.Int, campaigns []model.CampaignSpec, campaignPercentage uint8) (common.Address, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if campaignPercentage > 100 {
		return common.Address{}, 0, model.ErrInvalidCampaignPercentage
	}
	return f.deployLocked(caller, params, poolCfg, payment, campaigns, campaignPercentage)
}

// ClaimRewards forwards a collection request to the locker for the token's
// stored position.
func (f *Factory) ClaimRewards(token common.Address) (model.RewardClaimRecord, error) {
	f.mu.Lock()
	info, ok := f.deployments[token]
	lk := f.deps.Locker
	f.mu.Unlock()
	if !ok {
		return model.RewardClaimRecord{}, model.ErrTokenNotFound
	}
	return lk.CollectRewards(info.PositionID)
}

func (f *Factory) deployLocked(caller common.Address, params model.DeployParams, poolCfg model.PoolConfig, payment *big.Int, campaigns []model.CampaignSpec, campaignPercentage uint8) (common.Address, uint64, error) {
	if caller != f.cfg.Owner && !f.admins[caller] {
		return common.Address{}, 0, model.ErrNotOwnerOrAdmin
	}
	if !f.allowedPaired[poolCfg.PairedToken] {
		return common.Address{}, 0, model.ErrNotAllowedPairedToken
	}
	spacing := tickSpacings[params.Fee]
	if spacing == 0 || poolCfg.Tick%spacing != 0 {
		return common.Address{}, 0, model.ErrInvalidTick
	}
	if params.Supply == nil || params.Supply.Sign() <= 0 {
		return common.Address{}, 0, fmt.Errorf("supply must be positive")
	}

	restore := func() {}
	if f.deps.Begin != nil {
		restore = f.deps.Begin()
	}
	token, positionID, err := f.execute(caller, params, poolCfg, payment, campaigns, campaignPercentage)
	if err != nil {
		restore()
		return common.Address{}, 0, err
	}
	return token, positionID, nil
}

// execute performs the state-changing portion of a deployment. Any error
// aborts the whole operation; the caller restores the pre-call snapshot.
func (f *Factory) execute(caller common.Address, params model.DeployParams, poolCfg model.PoolConfig, payment *big.Int, campaigns []model.CampaignSpec, campaignPercentage uint8) (common.Address, uint64, error) {
	in := miner.Input{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Supply:      params.Supply,
		RequesterID: params.RequesterID,
		Image:       params.Image,
		Provenance:  params.Provenance,
		Deployer:    params.Deployer,
		Factory:     f.cfg.Address,
		PairedToken: poolCfg.PairedToken,
	}
	codeHash, err := miner.InitCodeHash(in)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("init code hash: %w", err)
	}
	token := miner.Create2Address(f.cfg.Address, miner.SaltHash(params.Deployer, params.Salt), codeHash)

	if err := f.deps.Ledger.DeployToken(token, f.cfg.Address, ledger.TokenMeta{
		Name:   params.Name,
		Symbol: params.Symbol,
		Supply: params.Supply,
	}); err != nil {
		return common.Address{}, 0, fmt.Errorf("deploy token: %w", err)
	}
	if !miner.AddressBelow(token, poolCfg.PairedToken) {
		return common.Address{}, 0, model.ErrInvalidSalt
	}

	if payment != nil && payment.Sign() > 0 {
		if err := f.deps.Ledger.TransferNative(caller, f.cfg.Address, payment); err != nil {
			return common.Address{}, 0, fmt.Errorf("take payment: %w", err)
		}
	}

	liquidity := new(big.Int).Set(params.Supply)
	devBuyValue := new(big.Int)
	if payment != nil {
		devBuyValue.Set(payment)
	}
	if len(campaigns) > 0 || campaignPercentage > 0 {
		remaining, sponsoredTotal, err := f.fundCampaigns(token, params, campaigns, campaignPercentage)
		if err != nil {
			return common.Address{}, 0, err
		}
		liquidity = remaining
		devBuyValue.Sub(devBuyValue, sponsoredTotal)
		if devBuyValue.Sign() < 0 {
			return common.Address{}, 0, fmt.Errorf("payment does not cover sponsored claim fees")
		}
	}

	// The pool configurator pulls the liquidity through the position
	// manager; approve the entire minted supply.
	f.deps.Ledger.Approve(token, f.cfg.Address, f.deps.PositionSpender, params.Supply)

	positionID, err := f.deps.Configurator.ConfigurePool(
		f.cfg.Address, token, poolCfg.PairedToken,
		poolCfg.Tick, tickSpacings[params.Fee], params.Fee,
		liquidity, params.Deployer,
	)
	if err != nil {
		return common.Address{}, 0, err
	}

	if devBuyValue.Sign() > 0 {
		if err := f.preTrade(token, poolCfg, params, devBuyValue); err != nil {
			return common.Address{}, 0, err
		}
	}

	info := model.DeploymentInfo{Token: token, PositionID: positionID, Locker: f.deps.Locker.Address()}
	f.deployments[token] = info
	f.byDeployer[params.Deployer] = append(f.byDeployer[params.Deployer], info)

	record := model.TokenCreatedRecord{
		Token:          token.Hex(),
		PositionID:     positionID,
		Deployer:       params.Deployer.Hex(),
		RequesterID:    params.RequesterID,
		Name:           params.Name,
		Symbol:         params.Symbol,
		Supply:         params.Supply.String(),
		Locker:         f.deps.Locker.Address().Hex(),
		ProvenanceHash: params.Provenance.Hex(),
	}
	if f.deps.Recorder != nil {
		if err := f.deps.Recorder.RecordDeployment(record); err != nil {
			return common.Address{}, 0, fmt.Errorf("record deployment: %w", err)
		}
	}
	f.deps.Logger.Info("token created",
		zap.String("token", record.Token),
		zap.Uint64("position_id", positionID),
		zap.String("deployer", record.Deployer),
		zap.String("symbol", params.Symbol),
	)
	return token, positionID, nil
}

// fundCampaigns approves the campaign reserve and creates one campaign per
// entry, attaching native value only for sponsored-claim fees. Returns the
// liquidity remainder and the native total spent on sponsorship; reserve
// plus remainder always equals the full supply.
func (f *Factory) fundCampaigns(token common.Address, params model.DeployParams, campaigns []model.CampaignSpec, campaignPercentage uint8) (*big.Int, *big.Int, error) {
	reserve := new(big.Int).Mul(params.Supply, big.NewInt(int64(campaignPercentage)))
	reserve.Div(reserve, big.NewInt(100))
	remainder := new(big.Int).Sub(params.Supply, reserve)

	f.deps.Ledger.Approve(token, f.cfg.Address, f.deps.CampaignSpender, reserve)

	sponsoredTotal := new(big.Int)
	for _, campaign := range campaigns {
		value := new(big.Int).Mul(f.cfg.SponsoredClaimFee, new(big.Int).SetUint64(campaign.MaxSponsoredClaims))
		if _, err := f.deps.Campaigns.CreateCampaign(
			f.cfg.Address, params.Deployer, token,
			campaign.MaxClaims, campaign.AmountPerClaim, campaign.MaxSponsoredClaims,
			value,
		); err != nil {
			return nil, nil, fmt.Errorf("create campaign: %w", err)
		}
		sponsoredTotal.Add(sponsoredTotal, value)
	}
	return remainder, sponsoredTotal, nil
}

// preTrade executes the optional deployer buy: native into the paired token
// when needed, then always paired into the new token, crediting the
// deployer. Both swaps run with zero minimum output and no price limit;
// slippage protection is deliberately absent.
func (f *Factory) preTrade(token common.Address, poolCfg model.PoolConfig, params model.DeployParams, value *big.Int) error {
	amountIn := new(big.Int).Set(value)
	if poolCfg.PairedToken != f.cfg.WrappedNative {
		out, err := f.deps.Router.ExactInputSingle(f.cfg.Address, dex.ExactInputSingleParams{
			TokenIn:          f.cfg.WrappedNative,
			TokenOut:         poolCfg.PairedToken,
			Fee:              poolCfg.DevBuyFee,
			Recipient:        f.cfg.Address,
			AmountIn:         value,
			AmountOutMinimum: new(big.Int),
		}, value)
		if err != nil {
			return fmt.Errorf("swap native to paired: %w", err)
		}
		amountIn = out
		f.deps.Ledger.Approve(poolCfg.PairedToken, f.cfg.Address, f.deps.PositionSpender, amountIn)
		if _, err := f.deps.Router.ExactInputSingle(f.cfg.Address, dex.ExactInputSingleParams{
			TokenIn:          poolCfg.PairedToken,
			TokenOut:         token,
			Fee:              params.Fee,
			Recipient:        params.Deployer,
			AmountIn:         amountIn,
			AmountOutMinimum: new(big.Int),
		}, nil); err != nil {
			return fmt.Errorf("swap paired to token: %w", err)
		}
		return nil
	}

	if _, err := f.deps.Router.ExactInputSingle(f.cfg.Address, dex.ExactInputSingleParams{
		TokenIn:          f.cfg.WrappedNative,
		TokenOut:         token,
		Fee:              params.Fee,
		Recipient:        params.Deployer,
		AmountIn:         amountIn,
		AmountOutMinimum: new(big.Int),
	}, value); err != nil {
		return fmt.Errorf("swap native to token: %w", err)
	}
	return nil
}
