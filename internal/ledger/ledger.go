package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"launchKit/internal/model"
)

// TokenMeta describes a token deployed on the ledger.
type TokenMeta struct {
	Name   string
	Symbol string
	Supply *big.Int
}

// Ledger is an in-memory balance ledger with the sequential, all-or-nothing
// execution model of the host chain. One mutex gives the global ordering;
// callers bracket multi-step operations with Snapshot/Restore so a failed
// sub-step reverts every state change made since the snapshot.
type Ledger struct {
	mu sync.Mutex

	native     map[common.Address]*big.Int
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	tokens     map[common.Address]TokenMeta
	deployed   map[common.Address]bool
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		native:     make(map[common.Address]*big.Int),
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		tokens:     make(map[common.Address]TokenMeta),
		deployed:   make(map[common.Address]bool),
	}
}

// Lock acquires the global operation lock. Every top-level engine operation
// holds it for its full duration, including external-collaborator calls.
func (l *Ledger) Lock() { l.mu.Lock() }

// Unlock releases the global operation lock.
func (l *Ledger) Unlock() { l.mu.Unlock() }

// Snapshot captures the full ledger state. The caller must hold the lock.
type Snapshot struct {
	native     map[common.Address]*big.Int
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	tokens     map[common.Address]TokenMeta
	deployed   map[common.Address]bool
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() *Snapshot {
	s := &Snapshot{
		native:     make(map[common.Address]*big.Int, len(l.native)),
		balances:   make(map[common.Address]map[common.Address]*big.Int, len(l.balances)),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int, len(l.allowances)),
		tokens:     make(map[common.Address]TokenMeta, len(l.tokens)),
		deployed:   make(map[common.Address]bool, len(l.deployed)),
	}
	for addr, amount := range l.native {
		s.native[addr] = new(big.Int).Set(amount)
	}
	for token, holders := range l.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, amount := range holders {
			copied[holder] = new(big.Int).Set(amount)
		}
		s.balances[token] = copied
	}
	for token, owners := range l.allowances {
		copiedOwners := make(map[common.Address]map[common.Address]*big.Int, len(owners))
		for owner, spenders := range owners {
			copiedSpenders := make(map[common.Address]*big.Int, len(spenders))
			for spender, amount := range spenders {
				copiedSpenders[spender] = new(big.Int).Set(amount)
			}
			copiedOwners[owner] = copiedSpenders
		}
		s.allowances[token] = copiedOwners
	}
	for token, meta := range l.tokens {
		s.tokens[token] = TokenMeta{Name: meta.Name, Symbol: meta.Symbol, Supply: new(big.Int).Set(meta.Supply)}
	}
	for addr, ok := range l.deployed {
		s.deployed[addr] = ok
	}
	return s
}

// Restore rolls the ledger back to a snapshot.
func (l *Ledger) Restore(s *Snapshot) {
	l.native = s.native
	l.balances = s.balances
	l.allowances = s.allowances
	l.tokens = s.tokens
	l.deployed = s.deployed
}

// RegisterContract marks an address as occupied without token semantics
// (pools, lockers, factories).
func (l *Ledger) RegisterContract(addr common.Address) error {
	if l.deployed[addr] {
		return model.ErrSaltCollision
	}
	l.deployed[addr] = true
	return nil
}

// DeployToken registers a token at a pre-derived deterministic address and
// mints the full supply to the creator. Deploying twice at the same address
// fails; the same (deployer, salt) pair always derives the same address, so
// redeployment is idempotent-by-collision.
func (l *Ledger) DeployToken(addr common.Address, creator common.Address, meta TokenMeta) error {
	if l.deployed[addr] {
		return model.ErrSaltCollision
	}
	if meta.Supply == nil || meta.Supply.Sign() < 0 {
		return fmt.Errorf("token supply must be non-negative")
	}
	l.deployed[addr] = true
	l.tokens[addr] = TokenMeta{Name: meta.Name, Symbol: meta.Symbol, Supply: new(big.Int).Set(meta.Supply)}
	l.credit(addr, creator, meta.Supply)
	return nil
}

// Token returns metadata for a deployed token.
func (l *Ledger) Token(addr common.Address) (TokenMeta, bool) {
	meta, ok := l.tokens[addr]
	return meta, ok
}

// Mint credits freshly created units of a token. Used when external systems
// (fee accrual, wrapped-native deposits) introduce balance.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) {
	l.credit(token, to, amount)
}

// BalanceOf returns the holder's balance of a token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	if holders, ok := l.balances[token]; ok {
		if amount, ok := holders[holder]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return new(big.Int)
}

// Transfer moves tokens between holders.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	l.credit(token, to, amount)
	return nil
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) {
	owners, ok := l.allowances[token]
	if !ok {
		owners = make(map[common.Address]map[common.Address]*big.Int)
		l.allowances[token] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		owners[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
}

// Allowance returns the spender's remaining allowance over the owner's balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	if owners, ok := l.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			if amount, ok := spenders[spender]; ok {
				return new(big.Int).Set(amount)
			}
		}
	}
	return new(big.Int)
}

// TransferFrom moves tokens on behalf of the owner, consuming allowance.
func (l *Ledger) TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	allowance := l.allowanceRef(token, owner, spender)
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return model.ErrInsufficientAllowance
	}
	if err := l.debit(token, owner, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	l.credit(token, to, amount)
	return nil
}

// CreditNative introduces native currency onto the ledger.
func (l *Ledger) CreditNative(to common.Address, amount *big.Int) {
	balance, ok := l.native[to]
	if !ok {
		balance = new(big.Int)
		l.native[to] = balance
	}
	balance.Add(balance, amount)
}

// NativeBalanceOf returns the holder's native balance.
func (l *Ledger) NativeBalanceOf(holder common.Address) *big.Int {
	if balance, ok := l.native[holder]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// TransferNative moves native currency between holders.
func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, ok := l.native[from]
	if !ok || balance.Cmp(amount) < 0 {
		return model.ErrInsufficientNative
	}
	balance.Sub(balance, amount)
	l.CreditNative(to, amount)
	return nil
}

func (l *Ledger) credit(token, to common.Address, amount *big.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	balance, ok := holders[to]
	if !ok {
		balance = new(big.Int)
		holders[to] = balance
	}
	balance.Add(balance, amount)
}

func (l *Ledger) debit(token, from common.Address, amount *big.Int) error {
	holders, ok := l.balances[token]
	if !ok {
		return model.ErrInsufficientBalance
	}
	balance, ok := holders[from]
	if !ok || balance.Cmp(amount) < 0 {
		return model.ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	return nil
}

func (l *Ledger) allowanceRef(token, owner, spender common.Address) *big.Int {
	if owners, ok := l.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			return spenders[spender]
		}
	}
	return nil
}
