package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"aimint/internal/domain"
	"aimint/internal/infra"
)

type contractTransactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// WaitFunc blocks until tx is included in a block.
type WaitFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// MinterOptions wires a Minter.
type MinterOptions struct {
	Contract contractTransactor
	Address  common.Address
	Auth     *bind.TransactOpts
	Value    *big.Int
	Wait     WaitFunc
	Timeout  time.Duration
	Logger   *infra.Logger
}

// Minter submits mint(tokenURI) with a fixed payment and waits for it to be
// mined. Sends are serialised because every mint is signed by the same
// account and takes its nonce from the pending count.
type Minter struct {
	sendMu   sync.Mutex
	contract contractTransactor
	address  common.Address
	abi      abi.ABI
	auth     *bind.TransactOpts
	value    *big.Int
	wait     WaitFunc
	timeout  time.Duration
	logger   *infra.Logger
}

// MintResult describes a confirmed mint.
type MintResult struct {
	TxHash      common.Hash
	BlockNumber uint64
	TokenID     *big.Int
}

// NewMinter validates opts and builds a Minter.
func NewMinter(opts MinterOptions) (*Minter, error) {
	if opts.Contract == nil {
		return nil, errors.New("chain: contract is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("chain: transactor is required")
	}
	if opts.Wait == nil {
		return nil, errors.New("chain: wait func is required")
	}
	if opts.Value == nil || opts.Value.Sign() < 0 {
		return nil, errors.New("chain: mint value must be non-negative")
	}
	parsed, err := parseNFTABI()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Minter{
		contract: opts.Contract,
		address:  opts.Address,
		abi:      parsed,
		auth:     opts.Auth,
		value:    new(big.Int).Set(opts.Value),
		wait:     opts.Wait,
		timeout:  opts.Timeout,
		logger:   logger,
	}, nil
}

// Value returns the payment attached to every mint, in wei.
func (m *Minter) Value() *big.Int {
	return new(big.Int).Set(m.value)
}

// send holds sendMu until the node has accepted the transaction, so the next
// sender sees it in the pending nonce. Waiting for the receipt happens outside.
func (m *Minter) send(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	return m.contract.Transact(opts, "mint", tokenURI)
}

// Mint calls mint(tokenURI) and blocks until the transaction is mined.
func (m *Minter) Mint(ctx context.Context, tokenURI string) (*MintResult, error) {
	if tokenURI == "" {
		return nil, errors.New("chain: token uri is required")
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	opts := *m.auth
	opts.Context = ctx
	opts.Value = new(big.Int).Set(m.value)

	tx, err := m.send(&opts, tokenURI)
	if err != nil {
		return nil, fmt.Errorf("chain: send mint: %w", err)
	}
	m.logger.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Str("token_uri", tokenURI).
		Str("value_wei", opts.Value.String()).
		Msg("chain: mint submitted")

	receipt, err := m.wait(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait for mint %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionReverted, tx.Hash().Hex())
	}

	result := &MintResult{
		TxHash:  tx.Hash(),
		TokenID: tokenIDFromReceipt(m.abi, m.address, receipt),
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	event := m.logger.Info().Str("tx_hash", result.TxHash.Hex()).Uint64("block", result.BlockNumber)
	if result.TokenID != nil {
		event = event.Str("token_id", result.TokenID.String())
	}
	event.Msg("chain: mint confirmed")
	return result, nil
}
