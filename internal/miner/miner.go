package miner

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// Input describes one salt search. The constructor parameters must be exactly
// those used at deployment time or the predicted and real addresses diverge.
type Input struct {
	Name        string
	Symbol      string
	Supply      *big.Int
	RequesterID uint64
	Image       string
	Provenance  common.Hash
	Deployer    common.Address
	Factory     common.Address
	PairedToken common.Address
	Seed        common.Hash
}

// Result is a mined salt together with the address it derives.
type Result struct {
	Salt       common.Hash
	Address    common.Address
	Iterations uint64
}

const cancelCheckMask = 0x3ff

var errSaltFound = errors.New("salt found")

// SaltHash derives the creation salt the factory actually deploys with.
func SaltHash(deployer common.Address, salt common.Hash) common.Hash {
	return crypto.Keccak256Hash(deployer.Bytes(), salt.Bytes())
}

// Create2Address derives the deterministic deployment address
// keccak256(0xff ++ factory ++ salt ++ initCodeHash)[12:].
func Create2Address(factory common.Address, salt common.Hash, initCodeHash common.Hash) common.Address {
	hash := crypto.Keccak256Hash([]byte{0xff}, factory.Bytes(), salt.Bytes(), initCodeHash.Bytes())
	return common.BytesToAddress(hash.Bytes()[12:])
}

// AddressBelow reports whether a sorts strictly below b as a big-endian
// unsigned integer. Pool creation requires its token arguments in this order.
func AddressBelow(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// VerifySalt is the cheap on-path check: it recomputes the deterministic
// address for a candidate salt and checks the ordering constraint. The
// search itself stays off-path.
func VerifySalt(in Input, salt common.Hash) (common.Address, bool, error) {
	codeHash, err := InitCodeHash(in)
	if err != nil {
		return common.Address{}, false, err
	}
	addr := Create2Address(in.Factory, SaltHash(in.Deployer, salt), codeHash)
	return addr, AddressBelow(addr, in.PairedToken), nil
}

// SeedFromTime derives a search seed from the wall clock, for offline mining
// when no recent block hash is available.
func SeedFromTime(now time.Time) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(now.UnixNano()))
	return crypto.Keccak256Hash(buf[:])
}

// FindSalt linearly increments a 256-bit counter from the seed until the
// derived address sorts below the paired token. Addresses are uniformly
// distributed over the 160-bit space, so the expected iteration count is
// constant, but there is no upper bound; cancellation is the only limit.
func FindSalt(ctx context.Context, in Input) (Result, error) {
	codeHash, err := InitCodeHash(in)
	if err != nil {
		return Result{}, err
	}
	return scan(ctx, in, codeHash, in.Seed, 1)
}

// FindSaltParallel runs the same search sharded across workers, each starting
// at seed+w and stepping by the worker count so the candidate sets are
// disjoint.
func FindSaltParallel(ctx context.Context, in Input, workers int) (Result, error) {
	if workers <= 1 {
		return FindSalt(ctx, in)
	}
	codeHash, err := InitCodeHash(in)
	if err != nil {
		return Result{}, err
	}

	results := make(chan Result, workers)
	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		offset := uint64(w)
		group.Go(func() error {
			start := new(uint256.Int).SetBytes(in.Seed.Bytes())
			start.AddUint64(start, offset)
			found, err := scan(groupCtx, in, codeHash, common.Hash(start.Bytes32()), uint64(workers))
			if err != nil {
				return err
			}
			results <- found
			return errSaltFound
		})
	}

	err = group.Wait()
	select {
	case found := <-results:
		return found, nil
	default:
	}
	if errors.Is(err, errSaltFound) {
		err = context.Canceled
	}
	return Result{}, err
}

func scan(ctx context.Context, in Input, codeHash common.Hash, start common.Hash, stride uint64) (Result, error) {
	counter := new(uint256.Int).SetBytes(start.Bytes())
	for iterations := uint64(1); ; iterations++ {
		if iterations&cancelCheckMask == 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			default:
			}
		}
		salt := common.Hash(counter.Bytes32())
		addr := Create2Address(in.Factory, SaltHash(in.Deployer, salt), codeHash)
		if AddressBelow(addr, in.PairedToken) {
			return Result{Salt: salt, Address: addr, Iterations: iterations}, nil
		}
		counter.AddUint64(counter, stride)
	}
}
