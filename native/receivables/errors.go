package receivables

import "errors"

// Error taxonomy surfaced verbatim to callers. Every failure is terminal for
// the invoking instruction; no partial state is committed and no automatic
// retry occurs.
var (
	// ErrUnauthorized rejects a caller lacking the authority required by the
	// targeted transition (wrong signer, missing delegation, or a redeem
	// attempt without the ownership token).
	ErrUnauthorized = errors.New("receivables: unauthorized")
	// ErrInvalidState rejects an operation attempted from the wrong
	// lifecycle state.
	ErrInvalidState = errors.New("receivables: invalid contract state")
	// ErrAlreadyInitialized rejects a second initialization of the program
	// state singleton.
	ErrAlreadyInitialized = errors.New("receivables: already initialized")
	// ErrNotInitialized rejects admin-gated operations before the program
	// state singleton exists.
	ErrNotInitialized = errors.New("receivables: program state not initialized")
	// ErrAlreadyExists rejects duplicate creation of a deterministic record
	// (vault or contract).
	ErrAlreadyExists = errors.New("receivables: record already exists")
	// ErrInvalidParameter rejects malformed instruction parameters such as a
	// zero fee scalar or an unregistered pay mint.
	ErrInvalidParameter = errors.New("receivables: invalid parameter")
	// ErrInvalidAmount rejects a non-positive face amount.
	ErrInvalidAmount = errors.New("receivables: amount must be positive")
	// ErrInvalidDueDate rejects a due date that is not in the future at
	// creation time.
	ErrInvalidDueDate = errors.New("receivables: due date must be in the future")
	// ErrAssetMismatch rejects a payment whose source asset does not match
	// the contract's pay mint, or a vault/asset disagreement.
	ErrAssetMismatch = errors.New("receivables: asset mismatch")
	// ErrInsufficientFunds propagates a balance shortfall from the token
	// ledger.
	ErrInsufficientFunds = errors.New("receivables: insufficient funds")
	// ErrNotFound signals that a referenced contract does not exist.
	ErrNotFound = errors.New("receivables: contract not found")
)
