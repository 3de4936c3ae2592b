package vault

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const managedVaultABI = `[
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"assetsInUse","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setAssetsInUse","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

// Contract is the subset of a managed vault the syncer needs.
type Contract interface {
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	SetAssetsInUse(ctx context.Context, amount *big.Int) (common.Hash, error)
}

// Binder resolves a vault address to its contract.
type Binder interface {
	Bind(address common.Address) (Contract, error)
}

// Chain binds managed vault contracts over an RPC endpoint and signs writes
// with a single key.
type Chain struct {
	client  *ethclient.Client
	abi     abi.ABI
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func Dial(ctx context.Context, rpcURL, hexKey string, chainID int64) (*Chain, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("rpc url is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(managedVaultABI))
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Chain{client: client, abi: parsed, key: key, chainID: big.NewInt(chainID)}, nil
}

func (c *Chain) Close() {
	c.client.Close()
}

func (c *Chain) Bind(address common.Address) (Contract, error) {
	bound := bind.NewBoundContract(address, c.abi, c.client, c.client, c.client)
	return &managedVault{contract: bound, key: c.key, chainID: c.chainID}, nil
}

type managedVault struct {
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

func (v *managedVault) Symbol(ctx context.Context) (string, error) {
	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, "symbol"); err != nil {
		return "", fmt.Errorf("symbol: %w", err)
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", errors.New("symbol: unexpected return type")
	}
	return symbol, nil
}

func (v *managedVault) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, errors.New("decimals: unexpected return type")
	}
	return decimals, nil
}

func (v *managedVault) SetAssetsInUse(ctx context.Context, amount *big.Int) (common.Hash, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(v.key, v.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	opts.Context = ctx
	tx, err := v.contract.Transact(opts, "setAssetsInUse", amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("setAssetsInUse: %w", err)
	}
	return tx.Hash(), nil
}
