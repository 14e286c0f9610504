package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"finvoice/native/receivables"
	"finvoice/storage"
)

func nodeAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestMintTokenEnforcesAuthority(t *testing.T) {
	node := NewNode(storage.NewMemDB())
	defer node.Close()
	authority := nodeAddr(0xAD)
	mint := nodeAddr(0x01)
	holder := nodeAddr(0xB1)

	require.NoError(t, node.RegisterToken(authority, mint, "USDX", 6))

	err := node.MintToken(nodeAddr(0x0F), mint, holder, big.NewInt(100))
	require.ErrorIs(t, err, receivables.ErrUnauthorized)

	err = node.MintToken(authority, nodeAddr(0x09), holder, big.NewInt(100))
	require.ErrorIs(t, err, receivables.ErrInvalidParameter)

	require.NoError(t, node.MintToken(authority, mint, holder, big.NewInt(100)))
	balance, err := node.TokenBalance(mint, holder)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance.Int64())
}

func TestTransferTokenDebitsCaller(t *testing.T) {
	node := NewNode(storage.NewMemDB())
	defer node.Close()
	authority := nodeAddr(0xAD)
	mint := nodeAddr(0x01)
	alice := nodeAddr(0xA1)
	bob := nodeAddr(0xB1)

	require.NoError(t, node.RegisterToken(authority, mint, "USDX", 6))
	require.NoError(t, node.MintToken(authority, mint, alice, big.NewInt(50)))

	require.NoError(t, node.TransferToken(alice, mint, bob, big.NewInt(20)))
	aliceBalance, err := node.TokenBalance(mint, alice)
	require.NoError(t, err)
	require.Equal(t, int64(30), aliceBalance.Int64())

	err = node.TransferToken(bob, mint, alice, big.NewInt(21))
	require.ErrorIs(t, err, receivables.ErrInsufficientFunds)
}

func TestNodeLifecycleAndEvents(t *testing.T) {
	node := NewNode(storage.NewMemDB())
	defer node.Close()
	admin := nodeAddr(0xAD)
	payMint := nodeAddr(0x01)
	creator := nodeAddr(0xC0)
	recipient := nodeAddr(0xC1)

	require.NoError(t, node.RegisterToken(admin, payMint, "USDX", 6))
	_, err := node.Initialize(admin, 2, 100)
	require.NoError(t, err)
	_, err = node.CreateVault(admin, payMint)
	require.NoError(t, err)
	require.NoError(t, node.MintToken(admin, payMint, recipient, big.NewInt(100)))

	contract, err := node.CreateContract(creator, recipient, payMint, big.NewInt(100), 4_000_000_000, 1)
	require.NoError(t, err)
	_, err = node.Approve(contract.ID, recipient)
	require.NoError(t, err)
	_, err = node.Pay(contract.ID, recipient, payMint)
	require.NoError(t, err)
	_, err = node.Redeem(contract.ID, creator)
	require.NoError(t, err)

	stored, ok := node.GetContract(contract.ID)
	require.True(t, ok)
	require.Equal(t, receivables.StatusRedeemed, stored.Status)

	state, ok := node.GetProgramState()
	require.True(t, ok)
	require.Equal(t, admin, state.Admin)

	vault, ok := node.GetVault(payMint)
	require.True(t, ok)
	escrowed, err := node.TokenBalance(payMint, vault.Address)
	require.NoError(t, err)
	require.Equal(t, int64(2), escrowed.Int64())

	entries := node.Events("receivable.", 0)
	require.Len(t, entries, 6)
	require.Equal(t, receivables.EventTypeRedeemed, entries[len(entries)-1].Type)
}
