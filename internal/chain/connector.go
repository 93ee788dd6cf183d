package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"aimint/internal/domain"
	"aimint/internal/infra"
	"aimint/internal/networks"
)

// ConnectOptions configures Connect.
type ConnectOptions struct {
	RPCURL      string
	PrivateKey  string
	Networks    *networks.Config
	MintValue   *big.Int
	MintTimeout time.Duration
	Logger      *infra.Logger
}

// Connection is the resolved chain context: which network the RPC endpoint
// serves, which account signs and which contract is bound.
type Connection struct {
	client       *ethclient.Client
	chainID      *big.Int
	account      common.Address
	network      networks.Network
	supported    bool
	netsVersion  int
	contractName string
	minter       *Minter
	logger       *infra.Logger
}

// Status is the connection summary exposed to the UI.
type Status struct {
	ChainID         string `json:"chain_id"`
	Network         string `json:"network,omitempty"`
	Supported       bool   `json:"supported"`
	Account         string `json:"account"`
	ContractAddress string `json:"contract_address,omitempty"`
	ContractName    string `json:"contract_name,omitempty"`
	MintValueWei    string `json:"mint_value_wei,omitempty"`
	NetworksVersion int    `json:"networks_version"`
}

// ParsePrivateKey accepts a hex key with or without 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if raw == "" {
		return nil, errors.New("chain: private key is required")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}
	return key, nil
}

// Connect dials the RPC endpoint once, resolves the chain id and binds the
// configured NFT contract. An unknown chain id is not an error: the returned
// connection reports itself unsupported and refuses to mint.
func Connect(ctx context.Context, opts ConnectOptions) (*Connection, error) {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	if opts.Networks == nil {
		return nil, errors.New("chain: network configuration is required")
	}
	key, err := ParsePrivateKey(opts.PrivateKey)
	if err != nil {
		return nil, err
	}
	value := opts.MintValue
	if value == nil {
		value = big.NewInt(0)
	}

	client, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", opts.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: resolve chain id: %w", err)
	}

	conn := &Connection{
		client:      client,
		chainID:     chainID,
		account:     crypto.PubkeyToAddress(key.PublicKey),
		netsVersion: opts.Networks.Version(),
		logger:      logger,
	}

	network, err := opts.Networks.Lookup(chainID.Uint64())
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedNetwork) {
			logger.Warn().Str("chain_id", chainID.String()).Msg("chain: no contract configured for network")
			return conn, nil
		}
		client.Close()
		return nil, err
	}
	conn.network = network
	conn.supported = true

	nft, err := NewNFT(network.NFTContract, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	if name, err := nft.Name(ctx); err != nil {
		logger.Warn().Err(err).Str("contract", network.NFTContract.Hex()).Msg("chain: contract name unavailable")
	} else {
		conn.contractName = name
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}
	minter, err := NewMinter(MinterOptions{
		Contract: nft,
		Address:  network.NFTContract,
		Auth:     auth,
		Value:    value,
		Wait: func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
			return bind.WaitMined(ctx, client, tx)
		},
		Timeout: opts.MintTimeout,
		Logger:  logger,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	conn.minter = minter

	logger.Info().
		Str("chain_id", chainID.String()).
		Str("network", network.Name).
		Str("contract", network.NFTContract.Hex()).
		Str("contract_name", conn.contractName).
		Str("account", conn.account.Hex()).
		Msg("chain: connected")
	return conn, nil
}

// Supported reports whether the connected network has a configured contract.
func (c *Connection) Supported() bool {
	return c != nil && c.supported
}

// Status summarises the connection.
func (c *Connection) Status() Status {
	if c == nil {
		return Status{}
	}
	st := Status{
		ChainID:         c.chainID.String(),
		Supported:       c.supported,
		Account:         c.account.Hex(),
		NetworksVersion: c.netsVersion,
	}
	if c.supported {
		st.Network = c.network.Name
		st.ContractAddress = c.network.NFTContract.Hex()
		st.ContractName = c.contractName
		st.MintValueWei = c.minter.Value().String()
	}
	return st
}

// Ready returns nil when minting is possible on the connected network.
func (c *Connection) Ready() error {
	if c.Supported() {
		return nil
	}
	if c == nil || c.chainID == nil {
		return domain.ErrUnsupportedNetwork
	}
	return fmt.Errorf("%w: chain %s", domain.ErrUnsupportedNetwork, c.chainID)
}

// Mint delegates to the bound minter, or fails with
// domain.ErrUnsupportedNetwork when no contract is configured.
func (c *Connection) Mint(ctx context.Context, tokenURI string) (*MintResult, error) {
	if !c.Supported() || c.minter == nil {
		return nil, domain.ErrUnsupportedNetwork
	}
	return c.minter.Mint(ctx, tokenURI)
}

// Close releases the RPC client.
func (c *Connection) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}
