package miner

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// tokenCreationCode is the creation bytecode of the token contract. The
// deterministic address depends on the hash of this code plus the encoded
// constructor arguments, so both must match what deployment actually uses.
var tokenCreationCode = common.FromHex(
	"0x60806040523480156200001157600080fd5b50604051620017b8380380620017b8833981016040819052620000349162000199" +
		"565b8351849084906200004d9060039060208501906200010a565b508051620000639060049060208401906200010a565b5050" +
		"600580546001600160a01b031916331790555062000084818362000095565b505060065550620002cd92505050565b60006020" +
		"82840312156200015757600080fd5b81516001600160a01b03811681146200016f57600080fd5b9392505050565b6000806000" +
		"806080858703121562000199576000803e3d6000fd5b505050505056fe",
)

var (
	constructorArgs     abi.Arguments
	constructorArgsOnce sync.Once
	constructorArgsErr  error
)

func constructorArguments() (abi.Arguments, error) {
	constructorArgsOnce.Do(func() {
		build := func(t string) abi.Type {
			typ, err := abi.NewType(t, "", nil)
			if err != nil && constructorArgsErr == nil {
				constructorArgsErr = fmt.Errorf("abi type %s: %w", t, err)
			}
			return typ
		}
		constructorArgs = abi.Arguments{
			{Name: "name", Type: build("string")},
			{Name: "symbol", Type: build("string")},
			{Name: "supply", Type: build("uint256")},
			{Name: "requesterId", Type: build("uint256")},
			{Name: "image", Type: build("string")},
			{Name: "provenance", Type: build("bytes32")},
		}
	})
	return constructorArgs, constructorArgsErr
}

// InitCode returns creation bytecode concatenated with the ABI-encoded
// constructor arguments for the token described by the input.
func InitCode(in Input) ([]byte, error) {
	args, err := constructorArguments()
	if err != nil {
		return nil, err
	}
	if in.Supply == nil {
		return nil, fmt.Errorf("supply is required")
	}
	encoded, err := args.Pack(
		in.Name,
		in.Symbol,
		in.Supply,
		new(big.Int).SetUint64(in.RequesterID),
		in.Image,
		[32]byte(in.Provenance),
	)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	code := make([]byte, 0, len(tokenCreationCode)+len(encoded))
	code = append(code, tokenCreationCode...)
	code = append(code, encoded...)
	return code, nil
}

// InitCodeHash returns keccak256 of the full init code.
func InitCodeHash(in Input) (common.Hash, error) {
	code, err := InitCode(in)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(code), nil
}
