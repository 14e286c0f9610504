package receivables

import (
	"fmt"
	"math/big"
)

// Status tracks a contract through its lifecycle. Transitions are strictly
// monotone: no state is skipped and no transition is reversible. The
// enumeration is canonical; "paid" and "redeemed" are distinct observable
// states.
type Status uint8

const (
	StatusCreated Status = iota
	StatusApproved
	StatusPaid
	StatusRedeemed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusApproved, StatusPaid, StatusRedeemed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusApproved:
		return "approved"
	case StatusPaid:
		return "paid"
	case StatusRedeemed:
		return "redeemed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ProgramState is the deployment-wide singleton holding the protocol
// administrator and the fee parameters applied at redemption. FeeScalar is
// always non-zero once the state exists.
type ProgramState struct {
	Admin     [20]byte
	Fee       uint64
	FeeScalar uint64
}

// Vault records an escrow account accepting one payment asset. The account
// address is derived deterministically from the pay mint, so at most one
// vault exists per asset and any caller can recompute it. Only the redeem
// transition moves funds out of a vault.
type Vault struct {
	PayMint   [20]byte
	Address   [20]byte
	CreatedAt uint64
}

// Approver is a delegation record: Key is authorized to approve contracts
// whose recipient equals Admin. The record address is derived from the
// (owner, delegate) pair, so one owner may register many distinct delegates.
type Approver struct {
	Admin [20]byte
	Key   [20]byte
}

// Contract is the receivable itself: an invoice-like payment obligation with
// an associated supply-of-one ownership mint representing the transferable
// right to redeem the escrowed funds.
type Contract struct {
	ID         [32]byte
	Creator    [20]byte
	Recipient  [20]byte
	Mint       [20]byte
	PayMint    [20]byte
	AmountDue  *big.Int
	DueDate    uint64
	Approver   [20]byte
	Payer      [20]byte
	Status     Status
	CreatedAt  uint64
	ApprovedAt uint64
	PaidAt     uint64
	RedeemedAt uint64
}

// Clone returns a deep copy of the contract so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	if c.AmountDue != nil {
		clone.AmountDue = new(big.Int).Set(c.AmountDue)
	} else {
		clone.AmountDue = big.NewInt(0)
	}
	return &clone
}

// Approved reports whether an approver identity has been recorded. The
// approver field transitions from the zero value to a non-zero identity
// exactly once.
func (c *Contract) Approved() bool {
	return c != nil && c.Approver != ([20]byte{})
}

// SanitizeContract validates and normalises the supplied contract, returning
// a cloned instance with a non-nil amount. The original value is not mutated.
func SanitizeContract(c *Contract) (*Contract, error) {
	if c == nil {
		return nil, fmt.Errorf("nil contract")
	}
	clone := c.Clone()
	if clone.AmountDue.Sign() < 0 {
		return nil, fmt.Errorf("contract amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid contract status: %d", clone.Status)
	}
	return clone, nil
}
