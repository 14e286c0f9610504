package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"finvoice/native/receivables"
	"finvoice/storage"
)

// Manager provides typed read/write access to ledger state. Every record is
// RLP-encoded and stored under a keccak-hashed, prefix-tagged key so record
// families cannot collide.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// TokenMetadata describes a registered mint. Authority is the only identity
// allowed to issue new units through the node surface; ownership mints set
// the authority to the mint itself so supply stays at one.
type TokenMetadata struct {
	Mint      [20]byte
	Symbol    string
	Decimals  uint8
	Authority [20]byte
}

var (
	programStateKey = ethcrypto.Keccak256([]byte("receivables/state"))
	vaultPrefix     = []byte("receivables/vault:")
	approverPrefix  = []byte("receivables/approver:")
	contractPrefix  = []byte("receivables/contract:")
	tokenPrefix     = []byte("token/meta:")
	balancePrefix   = []byte("token/balance:")
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte{}, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) store(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// --- Program state ---

func (m *Manager) ProgramStatePut(state *receivables.ProgramState) error {
	if state == nil {
		return fmt.Errorf("nil program state")
	}
	return m.store(programStateKey, state)
}

func (m *Manager) ProgramStateGet() (*receivables.ProgramState, bool) {
	state := new(receivables.ProgramState)
	ok, err := m.load(programStateKey, state)
	if err != nil || !ok {
		return nil, false
	}
	return state, true
}

// --- Vault registry ---

func vaultKey(payMint [20]byte) []byte {
	return prefixedKey(vaultPrefix, payMint[:])
}

func (m *Manager) VaultPut(vault *receivables.Vault) error {
	if vault == nil {
		return fmt.Errorf("nil vault")
	}
	return m.store(vaultKey(vault.PayMint), vault)
}

func (m *Manager) VaultGet(payMint [20]byte) (*receivables.Vault, bool) {
	vault := new(receivables.Vault)
	ok, err := m.load(vaultKey(payMint), vault)
	if err != nil || !ok {
		return nil, false
	}
	return vault, true
}

// --- Approver directory ---

func approverKey(owner, delegate [20]byte) []byte {
	return prefixedKey(approverPrefix, owner[:], delegate[:])
}

func (m *Manager) ApproverPut(record *receivables.Approver) error {
	if record == nil {
		return fmt.Errorf("nil approver record")
	}
	return m.store(approverKey(record.Admin, record.Key), record)
}

func (m *Manager) ApproverGet(owner, delegate [20]byte) (*receivables.Approver, bool) {
	record := new(receivables.Approver)
	ok, err := m.load(approverKey(owner, delegate), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// --- Contracts ---

func contractKey(id [32]byte) []byte {
	return prefixedKey(contractPrefix, id[:])
}

func (m *Manager) ContractPut(contract *receivables.Contract) error {
	sanitized, err := receivables.SanitizeContract(contract)
	if err != nil {
		return err
	}
	return m.store(contractKey(sanitized.ID), sanitized)
}

func (m *Manager) ContractGet(id [32]byte) (*receivables.Contract, bool) {
	contract := new(receivables.Contract)
	ok, err := m.load(contractKey(id), contract)
	if err != nil || !ok {
		return nil, false
	}
	return contract, true
}

// --- Token ledger ---
//
// The token primitive is deliberately dumb: register, mint, transfer, burn,
// query. Authority enforcement for external issuance lives at the node
// surface; the receivables engine is a trusted orchestrator of these calls.

func tokenKey(mint [20]byte) []byte {
	return prefixedKey(tokenPrefix, mint[:])
}

func balanceKey(mint, holder [20]byte) []byte {
	return prefixedKey(balancePrefix, mint[:], holder[:])
}

func (m *Manager) TokenRegister(mint [20]byte, symbol string, decimals uint8, authority [20]byte) error {
	if symbol == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if exists := m.TokenExists(mint); exists {
		return fmt.Errorf("%w: token already registered", receivables.ErrAlreadyExists)
	}
	meta := &TokenMetadata{Mint: mint, Symbol: symbol, Decimals: decimals, Authority: authority}
	return m.store(tokenKey(mint), meta)
}

func (m *Manager) TokenExists(mint [20]byte) bool {
	_, ok := m.TokenMetadataGet(mint)
	return ok
}

func (m *Manager) TokenMetadataGet(mint [20]byte) (*TokenMetadata, bool) {
	meta := new(TokenMetadata)
	ok, err := m.load(tokenKey(mint), meta)
	if err != nil || !ok {
		return nil, false
	}
	return meta, true
}

func (m *Manager) TokenBalance(mint, holder [20]byte) (*big.Int, error) {
	data, err := m.db.Get(balanceKey(mint, holder))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (m *Manager) balancePut(mint, holder [20]byte, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("invalid balance")
	}
	return m.store(balanceKey(mint, holder), balance)
}

func (m *Manager) TokenMint(mint, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", receivables.ErrInvalidAmount)
	}
	if !m.TokenExists(mint) {
		return fmt.Errorf("%w: unknown mint", receivables.ErrInvalidParameter)
	}
	balance, err := m.TokenBalance(mint, to)
	if err != nil {
		return err
	}
	return m.balancePut(mint, to, new(big.Int).Add(balance, amount))
}

func (m *Manager) TokenTransfer(mint, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer amount must be non-negative", receivables.ErrInvalidAmount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := m.TokenBalance(mint, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s short of %s", receivables.ErrInsufficientFunds, fromBalance, amount)
	}
	toBalance, err := m.TokenBalance(mint, to)
	if err != nil {
		return err
	}
	if err := m.balancePut(mint, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.balancePut(mint, to, new(big.Int).Add(toBalance, amount))
}

func (m *Manager) TokenBurn(mint, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: burn amount must be positive", receivables.ErrInvalidAmount)
	}
	balance, err := m.TokenBalance(mint, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s short of burn %s", receivables.ErrInsufficientFunds, balance, amount)
	}
	return m.balancePut(mint, from, new(big.Int).Sub(balance, amount))
}
