package receivables

import (
	"encoding/hex"
	"strconv"

	"finvoice/core/types"
)

const (
	EventTypeInitialized  = "receivable.initialized"
	EventTypeVaultCreated = "receivable.vault_created"
	EventTypeCreated      = "receivable.created"
	EventTypeApproverSet  = "receivable.approver_set"
	EventTypeApproved     = "receivable.approved"
	EventTypePaid         = "receivable.paid"
	EventTypeRedeemed     = "receivable.redeemed"
)

// NewInitializedEvent returns the canonical event payload emitted when the
// program state singleton is created.
func NewInitializedEvent(state *ProgramState) *types.Event {
	attrs := make(map[string]string)
	if state != nil {
		attrs["admin"] = hex.EncodeToString(state.Admin[:])
		attrs["fee"] = strconv.FormatUint(state.Fee, 10)
		attrs["feeScalar"] = strconv.FormatUint(state.FeeScalar, 10)
	}
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

// NewVaultCreatedEvent returns the canonical event payload for a newly
// registered escrow vault.
func NewVaultCreatedEvent(vault *Vault) *types.Event {
	attrs := make(map[string]string)
	if vault != nil {
		attrs["payMint"] = hex.EncodeToString(vault.PayMint[:])
		attrs["vault"] = hex.EncodeToString(vault.Address[:])
		attrs["createdAt"] = strconv.FormatUint(vault.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeVaultCreated, Attributes: attrs}
}

// NewApproverSetEvent returns the canonical event payload for a delegation
// record written to the approver directory.
func NewApproverSetEvent(record *Approver) *types.Event {
	attrs := make(map[string]string)
	if record != nil {
		attrs["owner"] = hex.EncodeToString(record.Admin[:])
		attrs["delegate"] = hex.EncodeToString(record.Key[:])
	}
	return &types.Event{Type: EventTypeApproverSet, Attributes: attrs}
}

// NewCreatedEvent returns the canonical event payload for a newly created
// contract.
func NewCreatedEvent(c *Contract) *types.Event { return newContractEvent(EventTypeCreated, c) }

// NewApprovedEvent returns the canonical event payload emitted when a
// contract is approved by its recipient or a registered delegate.
func NewApprovedEvent(c *Contract) *types.Event { return newContractEvent(EventTypeApproved, c) }

// NewPaidEvent returns the canonical event payload emitted when the face
// amount has been escrowed into the matching vault.
func NewPaidEvent(c *Contract) *types.Event { return newContractEvent(EventTypePaid, c) }

// NewRedeemedEvent returns the canonical event payload emitted when escrowed
// funds are released to the claim holder.
func NewRedeemedEvent(c *Contract) *types.Event { return newContractEvent(EventTypeRedeemed, c) }

func newContractEvent(eventType string, c *Contract) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeContract(c)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["creator"] = hex.EncodeToString(sanitized.Creator[:])
	attrs["recipient"] = hex.EncodeToString(sanitized.Recipient[:])
	attrs["mint"] = hex.EncodeToString(sanitized.Mint[:])
	attrs["payMint"] = hex.EncodeToString(sanitized.PayMint[:])
	attrs["amountDue"] = sanitized.AmountDue.String()
	attrs["dueDate"] = strconv.FormatUint(sanitized.DueDate, 10)
	attrs["status"] = sanitized.Status.String()
	if sanitized.Approved() {
		attrs["approver"] = hex.EncodeToString(sanitized.Approver[:])
	}
	if sanitized.Payer != ([20]byte{}) {
		attrs["payer"] = hex.EncodeToString(sanitized.Payer[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
