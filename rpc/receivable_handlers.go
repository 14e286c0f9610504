package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"finvoice/core/events"
	"finvoice/crypto"
	"finvoice/native/receivables"
)

type initializeParams struct {
	Caller    string `json:"caller"`
	Fee       uint64 `json:"fee"`
	FeeScalar uint64 `json:"feeScalar"`
}

type createVaultParams struct {
	Caller  string `json:"caller"`
	PayMint string `json:"payMint"`
}

type registerTokenParams struct {
	Caller   string `json:"caller"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type mintParams struct {
	Caller string `json:"caller"`
	Mint   string `json:"mint"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferParams struct {
	Caller string `json:"caller"`
	Mint   string `json:"mint"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type setApproverParams struct {
	Caller   string `json:"caller"`
	Delegate string `json:"delegate"`
}

type createParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient,omitempty"`
	PayMint   string `json:"payMint"`
	AmountDue string `json:"amountDue"`
	DueDate   uint64 `json:"dueDate"`
	Nonce     uint64 `json:"nonce"`
}

type contractActionParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

type payParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	SourceMint string `json:"sourceMint,omitempty"`
}

type getVaultParams struct {
	PayMint string `json:"payMint"`
}

type getContractParams struct {
	ID string `json:"id"`
}

type getBalanceParams struct {
	Mint   string `json:"mint"`
	Holder string `json:"holder"`
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type stateJSON struct {
	Admin     string `json:"admin"`
	Fee       uint64 `json:"fee"`
	FeeScalar uint64 `json:"feeScalar"`
}

type vaultJSON struct {
	PayMint   string `json:"payMint"`
	Address   string `json:"address"`
	CreatedAt uint64 `json:"createdAt"`
}

type approverJSON struct {
	Owner    string `json:"owner"`
	Delegate string `json:"delegate"`
}

type contractJSON struct {
	ID         string `json:"id"`
	Creator    string `json:"creator"`
	Recipient  string `json:"recipient"`
	Mint       string `json:"mint"`
	PayMint    string `json:"payMint"`
	AmountDue  string `json:"amountDue"`
	DueDate    uint64 `json:"dueDate"`
	Approver   string `json:"approver,omitempty"`
	Payer      string `json:"payer,omitempty"`
	Status     string `json:"status"`
	CreatedAt  uint64 `json:"createdAt"`
	ApprovedAt uint64 `json:"approvedAt,omitempty"`
	PaidAt     uint64 `json:"paidAt,omitempty"`
	RedeemedAt uint64 `json:"redeemedAt,omitempty"`
}

type receiptResult struct {
	Receipt  string        `json:"receipt"`
	State    *stateJSON    `json:"state,omitempty"`
	Vault    *vaultJSON    `json:"vault,omitempty"`
	Approver *approverJSON `json:"approver,omitempty"`
	Contract *contractJSON `json:"contract,omitempty"`
	Mint     string        `json:"mint,omitempty"`
}

func invalidParams(detail string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: detail}
}

func singleParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func parseAddr(field, value string) ([20]byte, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return addr.Raw(), nil
}

func parseID(value string) ([32]byte, *RPCError) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, invalidParams("id must be 32 hex-encoded bytes")
	}
	var id [32]byte
	copy(id[:], decoded)
	return id, nil
}

func parsePositiveBigInt(value string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, invalidParams("amount must be a base-10 integer")
	}
	if amount.Sign() <= 0 {
		return nil, invalidParams("amount must be positive")
	}
	return amount, nil
}

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(addr[:]).String()
}

func newStateJSON(state *receivables.ProgramState) *stateJSON {
	if state == nil {
		return nil
	}
	return &stateJSON{Admin: addrString(state.Admin), Fee: state.Fee, FeeScalar: state.FeeScalar}
}

func newVaultJSON(vault *receivables.Vault) *vaultJSON {
	if vault == nil {
		return nil
	}
	return &vaultJSON{
		PayMint:   addrString(vault.PayMint),
		Address:   addrString(vault.Address),
		CreatedAt: vault.CreatedAt,
	}
}

func newContractJSON(c *receivables.Contract) *contractJSON {
	if c == nil {
		return nil
	}
	out := &contractJSON{
		ID:         hex.EncodeToString(c.ID[:]),
		Creator:    addrString(c.Creator),
		Recipient:  addrString(c.Recipient),
		Mint:       addrString(c.Mint),
		PayMint:    addrString(c.PayMint),
		AmountDue:  c.AmountDue.String(),
		DueDate:    c.DueDate,
		Status:     c.Status.String(),
		CreatedAt:  c.CreatedAt,
		ApprovedAt: c.ApprovedAt,
		PaidAt:     c.PaidAt,
		RedeemedAt: c.RedeemedAt,
	}
	if c.Approved() {
		out.Approver = addrString(c.Approver)
	}
	if c.Payer != ([20]byte{}) {
		out.Payer = addrString(c.Payer)
	}
	return out
}

func (s *Server) handleInitialize(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params initializeParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	state, err := s.node.Initialize(caller, params.Fee, params.FeeScalar)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), State: newStateJSON(state)}, nil
}

func (s *Server) handleCreateVault(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params createVaultParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	payMint, errParams := parseAddr("payMint", params.PayMint)
	if errParams != nil {
		return nil, errParams
	}
	vault, err := s.node.CreateVault(caller, payMint)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Vault: newVaultJSON(vault)}, nil
}

func (s *Server) handleRegisterToken(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params registerTokenParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.Symbol))
	if symbol == "" {
		return nil, invalidParams("symbol is required")
	}
	mint := crypto.Derive("token", []byte(symbol))
	if err := s.node.RegisterToken(caller, mint, symbol, params.Decimals); err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Mint: addrString(mint)}, nil
}

func (s *Server) handleMintToken(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params mintParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	mint, errParams := parseAddr("mint", params.Mint)
	if errParams != nil {
		return nil, errParams
	}
	to, errParams := parseAddr("to", params.To)
	if errParams != nil {
		return nil, errParams
	}
	amount, errParams := parsePositiveBigInt(params.Amount)
	if errParams != nil {
		return nil, errParams
	}
	if err := s.node.MintToken(caller, mint, to, amount); err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString()}, nil
}

func (s *Server) handleTransferToken(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params transferParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	mint, errParams := parseAddr("mint", params.Mint)
	if errParams != nil {
		return nil, errParams
	}
	to, errParams := parseAddr("to", params.To)
	if errParams != nil {
		return nil, errParams
	}
	amount, errParams := parsePositiveBigInt(params.Amount)
	if errParams != nil {
		return nil, errParams
	}
	if err := s.node.TransferToken(caller, mint, to, amount); err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString()}, nil
}

func (s *Server) handleSetApprover(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params setApproverParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	delegate, errParams := parseAddr("delegate", params.Delegate)
	if errParams != nil {
		return nil, errParams
	}
	record, err := s.node.SetApprover(caller, delegate)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{
		Receipt:  uuid.NewString(),
		Approver: &approverJSON{Owner: addrString(record.Admin), Delegate: addrString(record.Key)},
	}, nil
}

func (s *Server) handleCreate(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params createParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	// The designated signer defaults to the creator when no explicit
	// recipient is supplied.
	recipient := caller
	if strings.TrimSpace(params.Recipient) != "" {
		recipient, errParams = parseAddr("recipient", params.Recipient)
		if errParams != nil {
			return nil, errParams
		}
	}
	payMint, errParams := parseAddr("payMint", params.PayMint)
	if errParams != nil {
		return nil, errParams
	}
	amount, errParams := parsePositiveBigInt(params.AmountDue)
	if errParams != nil {
		return nil, errParams
	}
	contract, err := s.node.CreateContract(caller, recipient, payMint, amount, params.DueDate, params.Nonce)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Contract: newContractJSON(contract)}, nil
}

func (s *Server) handleApprove(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params contractActionParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	id, errParams := parseID(params.ID)
	if errParams != nil {
		return nil, errParams
	}
	contract, err := s.node.Approve(id, caller)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Contract: newContractJSON(contract)}, nil
}

func (s *Server) handlePay(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params payParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	id, errParams := parseID(params.ID)
	if errParams != nil {
		return nil, errParams
	}
	contract, ok := s.node.GetContract(id)
	if !ok {
		return nil, &RPCError{Code: codeNotFound, Message: "not_found", Data: "unknown contract"}
	}
	// The source asset defaults to the contract's pay mint; an explicit
	// sourceMint lets the engine reject mismatched funding accounts.
	sourceMint := contract.PayMint
	if strings.TrimSpace(params.SourceMint) != "" {
		sourceMint, errParams = parseAddr("sourceMint", params.SourceMint)
		if errParams != nil {
			return nil, errParams
		}
	}
	updated, err := s.node.Pay(id, caller, sourceMint)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Contract: newContractJSON(updated)}, nil
}

func (s *Server) handleRedeem(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params contractActionParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	caller, errParams := parseAddr("caller", params.Caller)
	if errParams != nil {
		return nil, errParams
	}
	id, errParams := parseID(params.ID)
	if errParams != nil {
		return nil, errParams
	}
	contract, err := s.node.Redeem(id, caller)
	if err != nil {
		return nil, engineError(err)
	}
	return &receiptResult{Receipt: uuid.NewString(), Contract: newContractJSON(contract)}, nil
}

func (s *Server) handleGetState(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	state, ok := s.node.GetProgramState()
	if !ok {
		return nil, &RPCError{Code: codeNotFound, Message: "not_found", Data: "program state not initialized"}
	}
	return newStateJSON(state), nil
}

func (s *Server) handleGetVault(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params getVaultParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	payMint, errParams := parseAddr("payMint", params.PayMint)
	if errParams != nil {
		return nil, errParams
	}
	vault, ok := s.node.GetVault(payMint)
	if !ok {
		return nil, &RPCError{Code: codeNotFound, Message: "not_found", Data: "no vault for this asset"}
	}
	balance, err := s.node.TokenBalance(payMint, vault.Address)
	if err != nil {
		return nil, engineError(err)
	}
	result := struct {
		*vaultJSON
		Balance string `json:"balance"`
	}{newVaultJSON(vault), balance.String()}
	return result, nil
}

func (s *Server) handleGetContract(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params getContractParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	id, errParams := parseID(params.ID)
	if errParams != nil {
		return nil, errParams
	}
	contract, ok := s.node.GetContract(id)
	if !ok {
		return nil, &RPCError{Code: codeNotFound, Message: "not_found", Data: "unknown contract"}
	}
	return newContractJSON(contract), nil
}

func (s *Server) handleGetBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params getBalanceParams
	if errParams := singleParams(req, &params); errParams != nil {
		return nil, errParams
	}
	mint, errParams := parseAddr("mint", params.Mint)
	if errParams != nil {
		return nil, errParams
	}
	holder, errParams := parseAddr("holder", params.Holder)
	if errParams != nil {
		return nil, errParams
	}
	balance, err := s.node.TokenBalance(mint, holder)
	if err != nil {
		return nil, engineError(err)
	}
	return struct {
		Balance string `json:"balance"`
	}{balance.String()}, nil
}

func (s *Server) handleListEvents(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	params := listEventsParams{Limit: 100}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			return nil, invalidParams(err.Error())
		}
	}
	entries := s.node.Events(strings.TrimSpace(params.Prefix), params.Limit)
	if entries == nil {
		entries = []events.Entry{}
	}
	return entries, nil
}
