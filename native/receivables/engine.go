package receivables

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"finvoice/core/events"
	"finvoice/core/types"
	"finvoice/crypto"
)

var errNilState = errors.New("receivables engine: state not configured")

// engineState is the storage surface the engine transitions against. It is
// satisfied by *state.Manager in production and by lightweight mocks in
// tests.
type engineState interface {
	ProgramStatePut(*ProgramState) error
	ProgramStateGet() (*ProgramState, bool)
	VaultPut(*Vault) error
	VaultGet(payMint [20]byte) (*Vault, bool)
	ApproverPut(*Approver) error
	ApproverGet(owner, delegate [20]byte) (*Approver, bool)
	ContractPut(*Contract) error
	ContractGet(id [32]byte) (*Contract, bool)
	TokenExists(mint [20]byte) bool
	TokenRegister(mint [20]byte, symbol string, decimals uint8, authority [20]byte) error
	TokenMint(mint, to [20]byte, amount *big.Int) error
	TokenTransfer(mint, from, to [20]byte, amount *big.Int) error
	TokenBurn(mint, from [20]byte, amount *big.Int) error
	TokenBalance(mint, holder [20]byte) (*big.Int, error)
}

type receivableEvent struct {
	evt *types.Event
}

func (e receivableEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e receivableEvent) Event() *types.Event { return e.evt }

// Engine wires the receivables business logic with external state and event
// emitters. Every public method is one instruction: it validates the caller's
// authority and the referenced records' invariants, applies exactly one state
// transition, and persists it. Balance movements precede the status flip so a
// failed transfer leaves the contract untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a receivables engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(receivableEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) programState() (*ProgramState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, ok := e.state.ProgramStateGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	return state, nil
}

func (e *Engine) loadContract(id [32]byte) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	contract, ok := e.state.ContractGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return contract, nil
}

// VaultAddress derives the escrow account address custodying the supplied
// payment asset.
func VaultAddress(payMint [20]byte) [20]byte {
	return crypto.Derive("vault", payMint[:])
}

// OwnershipMint derives the mint identifier of the supply-of-one token
// representing the right to redeem the contract.
func OwnershipMint(contractID [32]byte) [20]byte {
	return crypto.Derive("mint", contractID[:])
}

// ContractID derives the deterministic identifier for a contract definition.
// The nonce distinguishes otherwise identical definitions submitted by the
// same creator.
func ContractID(creator, recipient, payMint [20]byte, nonce uint64) [32]byte {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.DeriveID("contract", creator[:], recipient[:], payMint[:], nonceBytes[:])
}

// Initialize creates the program state singleton. Callable once per
// deployment; the caller becomes the protocol administrator.
func (e *Engine) Initialize(caller [20]byte, fee, feeScalar uint64) (*ProgramState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if feeScalar == 0 {
		return nil, fmt.Errorf("%w: fee scalar must be non-zero", ErrInvalidParameter)
	}
	if _, ok := e.state.ProgramStateGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	state := &ProgramState{Admin: caller, Fee: fee, FeeScalar: feeScalar}
	if err := e.state.ProgramStatePut(state); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(state))
	return state, nil
}

// CreateVault registers the escrow account for a payment asset. Admin-gated;
// the vault address is derived from the pay mint so at most one vault exists
// per asset.
func (e *Engine) CreateVault(caller, payMint [20]byte) (*Vault, error) {
	state, err := e.programState()
	if err != nil {
		return nil, err
	}
	if caller != state.Admin {
		return nil, fmt.Errorf("%w: vault creation requires the protocol admin", ErrUnauthorized)
	}
	if !e.state.TokenExists(payMint) {
		return nil, fmt.Errorf("%w: unknown pay mint", ErrInvalidParameter)
	}
	if _, ok := e.state.VaultGet(payMint); ok {
		return nil, fmt.Errorf("%w: vault for this asset", ErrAlreadyExists)
	}
	vault := &Vault{
		PayMint:   payMint,
		Address:   VaultAddress(payMint),
		CreatedAt: uint64(e.now()),
	}
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	e.emit(NewVaultCreatedEvent(vault))
	return vault, nil
}

// SetApprover creates or overwrites the delegation record authorizing the
// delegate to approve contracts on the caller's behalf.
func (e *Engine) SetApprover(owner, delegate [20]byte) (*Approver, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if delegate == ([20]byte{}) {
		return nil, fmt.Errorf("%w: delegate must be a non-zero identity", ErrInvalidParameter)
	}
	record := &Approver{Admin: owner, Key: delegate}
	if err := e.state.ApproverPut(record); err != nil {
		return nil, err
	}
	e.emit(NewApproverSetEvent(record))
	return record, nil
}

// Create persists a new contract and mints its ownership token to the
// creator. The recipient is the identity entitled to approve (directly or via
// delegation) and to fund the contract.
func (e *Engine) Create(creator, recipient, payMint [20]byte, amountDue *big.Int, dueDate uint64, nonce uint64) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amt := cloneBigInt(amountDue)
	if amt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	if dueDate <= uint64(now) {
		return nil, ErrInvalidDueDate
	}
	if _, ok := e.state.VaultGet(payMint); !ok {
		return nil, fmt.Errorf("%w: no vault accepts this pay mint", ErrInvalidParameter)
	}
	id := ContractID(creator, recipient, payMint, nonce)
	if _, ok := e.state.ContractGet(id); ok {
		return nil, fmt.Errorf("%w: contract with this definition", ErrAlreadyExists)
	}
	mint := OwnershipMint(id)
	// The mint is its own authority: nobody can issue a second unit.
	if err := e.state.TokenRegister(mint, "RCVB", 0, mint); err != nil {
		return nil, err
	}
	if err := e.state.TokenMint(mint, creator, big.NewInt(1)); err != nil {
		return nil, err
	}
	contract := &Contract{
		ID:        id,
		Creator:   creator,
		Recipient: recipient,
		Mint:      mint,
		PayMint:   payMint,
		AmountDue: amt,
		DueDate:   dueDate,
		Status:    StatusCreated,
		CreatedAt: uint64(now),
	}
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(contract))
	return contract.Clone(), nil
}

// Approve transitions a contract from Created to Approved. Two authorization
// paths exist: the recipient signs directly, or a registered delegate of the
// recipient signs. Delegated approvals are attributed to the owner of the
// delegation record, not the delegate, so a bogus record registered for an
// unrelated owner never authorizes anything.
func (e *Engine) Approve(id [32]byte, caller [20]byte) (*Contract, error) {
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusCreated {
		return nil, fmt.Errorf("%w: cannot approve in status %s", ErrInvalidState, contract.Status)
	}
	switch {
	case caller == contract.Recipient:
		contract.Approver = caller
	default:
		record, ok := e.state.ApproverGet(contract.Recipient, caller)
		if !ok || record.Admin != contract.Recipient || record.Key != caller {
			return nil, fmt.Errorf("%w: not an authorized approver", ErrUnauthorized)
		}
		contract.Approver = contract.Recipient
	}
	contract.Status = StatusApproved
	contract.ApprovedAt = uint64(e.now())
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewApprovedEvent(contract))
	return contract.Clone(), nil
}

// Pay transitions a contract from Approved to Paid, escrowing the face amount
// from the caller's balance into the matching vault. The caller must be the
// contract's recipient and the source asset must equal the pay mint.
func (e *Engine) Pay(id [32]byte, caller, sourceMint [20]byte) (*Contract, error) {
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusApproved {
		return nil, fmt.Errorf("%w: cannot pay in status %s", ErrInvalidState, contract.Status)
	}
	if caller != contract.Recipient {
		return nil, fmt.Errorf("%w: only the approved recipient may pay", ErrUnauthorized)
	}
	if sourceMint != contract.PayMint {
		return nil, fmt.Errorf("%w: source asset does not match pay mint", ErrAssetMismatch)
	}
	vault, ok := e.state.VaultGet(contract.PayMint)
	if !ok || vault.PayMint != contract.PayMint {
		return nil, fmt.Errorf("%w: vault does not custody the pay mint", ErrAssetMismatch)
	}
	if err := e.state.TokenTransfer(contract.PayMint, caller, vault.Address, contract.AmountDue); err != nil {
		return nil, err
	}
	contract.Payer = caller
	contract.Status = StatusPaid
	contract.PaidAt = uint64(e.now())
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewPaidEvent(contract))
	return contract.Clone(), nil
}

// Redeem transitions a contract from Paid to Redeemed. The caller must hold
// the single unit of the contract's ownership mint. The net payout moves from
// the vault to the caller; the fee remainder stays pooled in the vault as
// protocol revenue. The ownership token is burned so the claim cannot be
// presented twice.
func (e *Engine) Redeem(id [32]byte, caller [20]byte) (*Contract, error) {
	state, err := e.programState()
	if err != nil {
		return nil, err
	}
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusPaid {
		return nil, fmt.Errorf("%w: cannot redeem in status %s", ErrInvalidState, contract.Status)
	}
	held, err := e.state.TokenBalance(contract.Mint, caller)
	if err != nil {
		return nil, err
	}
	if held == nil || held.Cmp(big.NewInt(1)) != 0 {
		return nil, fmt.Errorf("%w: caller does not hold the ownership token", ErrUnauthorized)
	}
	vault, ok := e.state.VaultGet(contract.PayMint)
	if !ok || vault.PayMint != contract.PayMint {
		return nil, fmt.Errorf("%w: vault does not custody the pay mint", ErrAssetMismatch)
	}
	quote, err := QuoteFee(contract.AmountDue, state.Fee, state.FeeScalar)
	if err != nil {
		return nil, err
	}
	if quote.Payout.Sign() > 0 {
		if err := e.state.TokenTransfer(contract.PayMint, vault.Address, caller, quote.Payout); err != nil {
			return nil, err
		}
	}
	if err := e.state.TokenBurn(contract.Mint, caller, big.NewInt(1)); err != nil {
		return nil, err
	}
	contract.Status = StatusRedeemed
	contract.RedeemedAt = uint64(e.now())
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewRedeemedEvent(contract))
	return contract.Clone(), nil
}
