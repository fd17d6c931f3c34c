package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"launchKit/internal/ledger"
	"launchKit/internal/model"
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

type poolState struct {
	addr         common.Address
	key          poolKey
	sqrtPriceX96 *big.Int
	initialized  bool
}

type position struct {
	owner     common.Address
	info      PositionInfo
	pool      common.Address
	owed0     *big.Int
	owed1     *big.Int
}

// Engine is the in-memory rendering of the external AMM collaborators:
// pool factory, position manager, swap router, and campaign contract, all
// settling balances on the shared ledger. Swaps fill at the pool's current
// sqrt price; curve movement is out of scope here.
type Engine struct {
	ledger        *ledger.Ledger
	wrappedNative common.Address
	managerAddr   common.Address
	campaignAddr  common.Address

	pools         map[poolKey]*poolState
	poolsByAddr   map[common.Address]*poolState
	positions     map[uint64]*position
	receivers     map[common.Address]PositionReceiver
	nextPosition  uint64
	nextCampaign  uint64
}

// NewEngine creates an engine bound to the ledger. The manager and campaign
// identities are registered as occupied ledger addresses.
func NewEngine(l *ledger.Ledger, wrappedNative common.Address) (*Engine, error) {
	e := &Engine{
		ledger:        l,
		wrappedNative: wrappedNative,
		managerAddr:   common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
		campaignAddr:  common.HexToAddress("0x00000000000000000000000000000000000cafe5"),
		pools:         make(map[poolKey]*poolState),
		poolsByAddr:   make(map[common.Address]*poolState),
		positions:     make(map[uint64]*position),
		receivers:     make(map[common.Address]PositionReceiver),
	}
	if err := l.RegisterContract(e.managerAddr); err != nil {
		return nil, err
	}
	if err := l.RegisterContract(e.campaignAddr); err != nil {
		return nil, err
	}
	return e, nil
}

// ManagerAddress is the spender identity the position manager and router
// pull token allowances through.
func (e *Engine) ManagerAddress() common.Address { return e.managerAddr }

// CampaignAddress is the spender identity the campaign contract pulls the
// campaign reserve through.
func (e *Engine) CampaignAddress() common.Address { return e.campaignAddr }

// RegisterReceiver installs the receive hook called when a position receipt
// is transferred to addr.
func (e *Engine) RegisterReceiver(addr common.Address, receiver PositionReceiver) {
	e.receivers[addr] = receiver
}

// CreatePool derives a deterministic pool address for the sorted token pair
// and fee tier.
func (e *Engine) CreatePool(caller, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	token0, token1 := sortTokens(tokenA, tokenB)
	key := poolKey{token0: token0, token1: token1, fee: fee}
	if _, exists := e.pools[key]; exists {
		return common.Address{}, fmt.Errorf("pool already exists for %s/%s fee %d", token0, token1, fee)
	}

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], fee)
	hash := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes(), feeBytes[:])
	addr := common.BytesToAddress(hash.Bytes()[12:])
	if err := e.ledger.RegisterContract(addr); err != nil {
		return common.Address{}, err
	}

	pool := &poolState{addr: addr, key: key}
	e.pools[key] = pool
	e.poolsByAddr[addr] = pool
	return addr, nil
}

// Initialize sets the pool's starting sqrt price.
func (e *Engine) Initialize(pool common.Address, sqrtPriceX96 *big.Int) error {
	state, ok := e.poolsByAddr[pool]
	if !ok {
		return fmt.Errorf("unknown pool %s", pool)
	}
	if state.initialized {
		return fmt.Errorf("pool %s already initialized", pool)
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return fmt.Errorf("sqrt price must be positive")
	}
	state.sqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	state.initialized = true
	return nil
}

// Mint pulls the desired amounts from the caller through the manager's
// allowance and records a position owned by params.Recipient.
func (e *Engine) Mint(caller common.Address, params MintParams) (MintResult, error) {
	token0, token1 := sortTokens(params.Token0, params.Token1)
	pool, ok := e.pools[poolKey{token0: token0, token1: token1, fee: params.Fee}]
	if !ok {
		return MintResult{}, fmt.Errorf("no pool for %s/%s fee %d", token0, token1, params.Fee)
	}
	if !pool.initialized {
		return MintResult{}, fmt.Errorf("pool %s not initialized", pool.addr)
	}
	if params.TickLower >= params.TickUpper {
		return MintResult{}, fmt.Errorf("tick range [%d, %d) is empty", params.TickLower, params.TickUpper)
	}

	amount0 := bigOrZero(params.Amount0Desired)
	amount1 := bigOrZero(params.Amount1Desired)
	if amount0.Sign() > 0 {
		if err := e.ledger.TransferFrom(token0, e.managerAddr, caller, pool.addr, amount0); err != nil {
			return MintResult{}, fmt.Errorf("pull token0: %w", err)
		}
	}
	if amount1.Sign() > 0 {
		if err := e.ledger.TransferFrom(token1, e.managerAddr, caller, pool.addr, amount1); err != nil {
			return MintResult{}, fmt.Errorf("pull token1: %w", err)
		}
	}

	e.nextPosition++
	id := e.nextPosition
	liquidity := new(big.Int).Add(amount0, amount1)
	e.positions[id] = &position{
		owner: params.Recipient,
		pool:  pool.addr,
		info: PositionInfo{
			Token0:    token0,
			Token1:    token1,
			Fee:       params.Fee,
			TickLower: params.TickLower,
			TickUpper: params.TickUpper,
			Liquidity: liquidity,
		},
		owed0: new(big.Int),
		owed1: new(big.Int),
	}
	return MintResult{PositionID: id, Liquidity: liquidity, Amount0: amount0, Amount1: amount1}, nil
}

// AccrueFees credits uncollected fees to a position, minting the underlying
// amounts into the pool. Stands in for trading activity.
func (e *Engine) AccrueFees(positionID uint64, amount0, amount1 *big.Int) error {
	pos, ok := e.positions[positionID]
	if !ok {
		return fmt.Errorf("unknown position %d", positionID)
	}
	if amount0 != nil && amount0.Sign() > 0 {
		e.ledger.Mint(pos.info.Token0, pos.pool, amount0)
		pos.owed0.Add(pos.owed0, amount0)
	}
	if amount1 != nil && amount1.Sign() > 0 {
		e.ledger.Mint(pos.info.Token1, pos.pool, amount1)
		pos.owed1.Add(pos.owed1, amount1)
	}
	return nil
}

// Collect pays out accrued fees, capped at the requested maxima, to the
// collect recipient. Only the position owner may collect.
func (e *Engine) Collect(caller common.Address, params CollectParams) (*big.Int, *big.Int, error) {
	pos, ok := e.positions[params.PositionID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown position %d", params.PositionID)
	}
	if pos.owner != caller {
		return nil, nil, fmt.Errorf("caller %s does not own position %d", caller, params.PositionID)
	}

	pay0 := minBig(pos.owed0, bigOrZero(params.Amount0Max))
	pay1 := minBig(pos.owed1, bigOrZero(params.Amount1Max))
	if pay0.Sign() > 0 {
		if err := e.ledger.Transfer(pos.info.Token0, pos.pool, params.Recipient, pay0); err != nil {
			return nil, nil, fmt.Errorf("pay token0: %w", err)
		}
		pos.owed0.Sub(pos.owed0, pay0)
	}
	if pay1.Sign() > 0 {
		if err := e.ledger.Transfer(pos.info.Token1, pos.pool, params.Recipient, pay1); err != nil {
			return nil, nil, fmt.Errorf("pay token1: %w", err)
		}
		pos.owed1.Sub(pos.owed1, pay1)
	}
	return pay0, pay1, nil
}

// Positions returns the stored position state.
func (e *Engine) Positions(positionID uint64) (PositionInfo, error) {
	pos, ok := e.positions[positionID]
	if !ok {
		return PositionInfo{}, fmt.Errorf("unknown position %d", positionID)
	}
	info := pos.info
	info.Liquidity = new(big.Int).Set(pos.info.Liquidity)
	return info, nil
}

// OwnerOf returns the position receipt's current owner.
func (e *Engine) OwnerOf(positionID uint64) (common.Address, error) {
	pos, ok := e.positions[positionID]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown position %d", positionID)
	}
	return pos.owner, nil
}

// SafeTransferFrom moves a position receipt, invoking the destination's
// receive hook first; a rejecting hook aborts the transfer.
func (e *Engine) SafeTransferFrom(caller, from, to common.Address, positionID uint64) error {
	pos, ok := e.positions[positionID]
	if !ok {
		return fmt.Errorf("unknown position %d", positionID)
	}
	if pos.owner != from {
		return fmt.Errorf("%s does not own position %d", from, positionID)
	}
	if caller != from {
		return model.ErrNotAllowed
	}
	if receiver, ok := e.receivers[to]; ok {
		if err := receiver.OnERC721Received(caller, from, positionID); err != nil {
			return err
		}
	}
	pos.owner = to
	return nil
}

// ExactInputSingle fills a single-hop swap at the pool's current sqrt price.
// A positive value means native currency was attached; it is wrapped 1:1 and
// used as the input amount. When no pool exists for a wrapped-native input
// the fill happens against the external market at par.
func (e *Engine) ExactInputSingle(caller common.Address, params ExactInputSingleParams, value *big.Int) (*big.Int, error) {
	amountIn := bigOrZero(params.AmountIn)
	nativeIn := value != nil && value.Sign() > 0
	if nativeIn {
		if params.TokenIn != e.wrappedNative {
			return nil, fmt.Errorf("native value attached but input token is %s", params.TokenIn)
		}
		if err := e.ledger.TransferNative(caller, e.managerAddr, value); err != nil {
			return nil, fmt.Errorf("take native payment: %w", err)
		}
		amountIn = new(big.Int).Set(value)
	}
	if amountIn.Sign() == 0 {
		return nil, fmt.Errorf("swap amount must be positive")
	}

	token0, token1 := sortTokens(params.TokenIn, params.TokenOut)
	pool, ok := e.pools[poolKey{token0: token0, token1: token1, fee: params.Fee}]
	if !ok {
		if nativeIn {
			// External market fill at par for routes outside the engine.
			e.ledger.Mint(params.TokenOut, params.Recipient, amountIn)
			return amountIn, nil
		}
		return nil, fmt.Errorf("no pool for %s/%s fee %d", token0, token1, params.Fee)
	}
	if !pool.initialized {
		return nil, fmt.Errorf("pool %s not initialized", pool.addr)
	}

	if nativeIn {
		e.ledger.Mint(params.TokenIn, pool.addr, amountIn)
	} else {
		if err := e.ledger.TransferFrom(params.TokenIn, e.managerAddr, caller, pool.addr, amountIn); err != nil {
			return nil, fmt.Errorf("pull input token: %w", err)
		}
	}

	priceSq := new(big.Int).Mul(pool.sqrtPriceX96, pool.sqrtPriceX96)
	amountOut := new(big.Int)
	if params.TokenIn == token0 {
		amountOut.Div(new(big.Int).Mul(amountIn, priceSq), q192)
	} else {
		amountOut.Div(new(big.Int).Mul(amountIn, q192), priceSq)
	}
	if params.AmountOutMinimum != nil && amountOut.Cmp(params.AmountOutMinimum) < 0 {
		return nil, fmt.Errorf("output %s below minimum %s", amountOut, params.AmountOutMinimum)
	}
	if err := e.ledger.Transfer(params.TokenOut, pool.addr, params.Recipient, amountOut); err != nil {
		return nil, fmt.Errorf("pay output token: %w", err)
	}
	return amountOut, nil
}

// CreateCampaign pulls the campaign's claimable total from the caller's
// approved reserve and records the campaign. Value covers sponsored claims.
func (e *Engine) CreateCampaign(caller, manager, token common.Address, maxClaims uint64, amountPerClaim *big.Int, maxSponsoredClaims uint64, value *big.Int) (uint64, error) {
	if amountPerClaim == nil || amountPerClaim.Sign() <= 0 {
		return 0, fmt.Errorf("amount per claim must be positive")
	}
	total := new(big.Int).Mul(amountPerClaim, new(big.Int).SetUint64(maxClaims))
	if total.Sign() > 0 {
		if err := e.ledger.TransferFrom(token, e.campaignAddr, caller, e.campaignAddr, total); err != nil {
			return 0, fmt.Errorf("fund campaign: %w", err)
		}
	}
	if value != nil && value.Sign() > 0 {
		if err := e.ledger.TransferNative(caller, e.campaignAddr, value); err != nil {
			return 0, fmt.Errorf("sponsor fees: %w", err)
		}
	}
	e.nextCampaign++
	return e.nextCampaign, nil
}

// EngineSnapshot captures pool and position state so a failed multi-step
// operation can roll the engine back together with the ledger.
type EngineSnapshot struct {
	pools        map[poolKey]*poolState
	positions    map[uint64]*position
	nextPosition uint64
	nextCampaign uint64
}

// Snapshot returns a deep copy of the mutable engine state.
func (e *Engine) Snapshot() *EngineSnapshot {
	s := &EngineSnapshot{
		pools:        make(map[poolKey]*poolState, len(e.pools)),
		positions:    make(map[uint64]*position, len(e.positions)),
		nextPosition: e.nextPosition,
		nextCampaign: e.nextCampaign,
	}
	for key, pool := range e.pools {
		copied := &poolState{addr: pool.addr, key: pool.key, initialized: pool.initialized}
		if pool.sqrtPriceX96 != nil {
			copied.sqrtPriceX96 = new(big.Int).Set(pool.sqrtPriceX96)
		}
		s.pools[key] = copied
	}
	for id, pos := range e.positions {
		info := pos.info
		info.Liquidity = new(big.Int).Set(pos.info.Liquidity)
		s.positions[id] = &position{
			owner: pos.owner,
			pool:  pos.pool,
			info:  info,
			owed0: new(big.Int).Set(pos.owed0),
			owed1: new(big.Int).Set(pos.owed1),
		}
	}
	return s
}

// Restore rolls the engine back to a snapshot.
func (e *Engine) Restore(s *EngineSnapshot) {
	e.pools = s.pools
	e.positions = s.positions
	e.nextPosition = s.nextPosition
	e.nextCampaign = s.nextCampaign
	e.poolsByAddr = make(map[common.Address]*poolState, len(s.pools))
	for _, pool := range s.pools {
		e.poolsByAddr[pool.addr] = pool
	}
}

func sortTokens(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) < 0 {
		return a, b
	}
	return b, a
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
