package core

import (
	"fmt"
	"math/big"
	"sync"

	"finvoice/core/events"
	"finvoice/core/state"
	"finvoice/native/receivables"
	"finvoice/storage"
)

// Node owns the ledger storage handle and serializes instruction execution.
// Each instruction runs under the state mutex against a fresh state manager
// and engine, mirroring the ledger's per-account exclusivity: two racing
// transitions on the same contract cannot both observe the precondition.
type Node struct {
	stateMu sync.Mutex
	db      storage.Database
	events  *events.Memory
}

// NewNode wires a node around the supplied database.
func NewNode(db storage.Database) *Node {
	return &Node{
		db:     db,
		events: events.NewMemory(4096),
	}
}

// Close releases the underlying storage handle.
func (n *Node) Close() {
	if n == nil || n.db == nil {
		return
	}
	n.db.Close()
}

func (n *Node) newEngine(manager *state.Manager) *receivables.Engine {
	engine := receivables.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(n.events)
	return engine
}

// --- Receivables instructions ---

func (n *Node) Initialize(caller [20]byte, fee, feeScalar uint64) (*receivables.ProgramState, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).Initialize(caller, fee, feeScalar)
}

func (n *Node) CreateVault(caller, payMint [20]byte) (*receivables.Vault, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).CreateVault(caller, payMint)
}

func (n *Node) SetApprover(owner, delegate [20]byte) (*receivables.Approver, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).SetApprover(owner, delegate)
}

func (n *Node) CreateContract(creator, recipient, payMint [20]byte, amountDue *big.Int, dueDate, nonce uint64) (*receivables.Contract, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).Create(creator, recipient, payMint, amountDue, dueDate, nonce)
}

func (n *Node) Approve(id [32]byte, caller [20]byte) (*receivables.Contract, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).Approve(id, caller)
}

func (n *Node) Pay(id [32]byte, caller, sourceMint [20]byte) (*receivables.Contract, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).Pay(id, caller, sourceMint)
}

func (n *Node) Redeem(id [32]byte, caller [20]byte) (*receivables.Contract, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return n.newEngine(manager).Redeem(id, caller)
}

// --- Token primitives (trusted building block surface) ---

// RegisterToken records a new payment asset. The caller becomes the mint
// authority.
func (n *Node) RegisterToken(caller, mint [20]byte, symbol string, decimals uint8) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return manager.TokenRegister(mint, symbol, decimals, caller)
}

// MintToken issues new units of a registered asset. Only the recorded mint
// authority may issue.
func (n *Node) MintToken(caller, mint, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	meta, ok := manager.TokenMetadataGet(mint)
	if !ok {
		return fmt.Errorf("%w: unknown mint", receivables.ErrInvalidParameter)
	}
	if meta.Authority != caller {
		return fmt.Errorf("%w: caller is not the mint authority", receivables.ErrUnauthorized)
	}
	return manager.TokenMint(mint, to, amount)
}

// TransferToken moves units between holders on behalf of the owning caller.
func (n *Node) TransferToken(caller, mint, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	return manager.TokenTransfer(mint, caller, to, amount)
}

// --- Queries ---

func (n *Node) GetProgramState() (*receivables.ProgramState, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return state.NewManager(n.db).ProgramStateGet()
}

func (n *Node) GetVault(payMint [20]byte) (*receivables.Vault, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return state.NewManager(n.db).VaultGet(payMint)
}

func (n *Node) GetContract(id [32]byte) (*receivables.Contract, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return state.NewManager(n.db).ContractGet(id)
}

func (n *Node) GetApprover(owner, delegate [20]byte) (*receivables.Approver, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return state.NewManager(n.db).ApproverGet(owner, delegate)
}

func (n *Node) TokenBalance(mint, holder [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return state.NewManager(n.db).TokenBalance(mint, holder)
}

// Events lists recently emitted ledger events, optionally filtered by type
// prefix.
func (n *Node) Events(prefix string, limit int) []events.Entry {
	return n.events.List(prefix, limit)
}
