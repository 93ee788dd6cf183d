package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// nftABI covers the subset of the deployed ERC-721 contract this service calls.
const nftABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"tokenURI","type":"string"}],"outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}
	]}
]`

func parseNFTABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(nftABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chain: parse nft abi: %w", err)
	}
	return parsed, nil
}

// NFT is a handle on the deployed contract.
type NFT struct {
	contract *bind.BoundContract
}

// NewNFT binds the contract at address to backend.
func NewNFT(address common.Address, backend bind.ContractBackend) (*NFT, error) {
	parsed, err := parseNFTABI()
	if err != nil {
		return nil, err
	}
	return &NFT{contract: bind.NewBoundContract(address, parsed, backend, backend, backend)}, nil
}

// Name calls the contract's name().
func (n *NFT) Name(ctx context.Context) (string, error) {
	var out []interface{}
	if err := n.contract.Call(&bind.CallOpts{Context: ctx}, &out, "name"); err != nil {
		return "", fmt.Errorf("chain: call name: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("chain: name returned nothing")
	}
	name, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("chain: name returned %T", out[0])
	}
	return name, nil
}

// Transact sends a state-changing call to the contract.
func (n *NFT) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	return n.contract.Transact(opts, method, params...)
}

// tokenIDFromReceipt extracts the id of the token minted by contract from
// the receipt's Transfer log, or nil when none is present.
func tokenIDFromReceipt(parsed abi.ABI, contract common.Address, receipt *types.Receipt) *big.Int {
	event, ok := parsed.Events["Transfer"]
	if !ok || receipt == nil {
		return nil
	}
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) != 4 || lg.Topics[0] != event.ID {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[3].Bytes())
	}
	return nil
}
