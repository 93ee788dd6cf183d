package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func transferLog(contract common.Address, to common.Address, tokenID int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
			{},
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func TestTokenIDFromReceipt(t *testing.T) {
	parsed, err := parseNFTABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	receipt := &types.Receipt{Logs: []*types.Log{
		transferLog(other, owner, 99),
		{Address: contract, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))}},
		transferLog(contract, owner, 7),
	}}
	got := tokenIDFromReceipt(parsed, contract, receipt)
	if got == nil || got.Int64() != 7 {
		t.Fatalf("token id = %v, want 7", got)
	}
	if id := tokenIDFromReceipt(parsed, contract, &types.Receipt{}); id != nil {
		t.Fatalf("token id = %v, want nil for receipt without logs", id)
	}
}
