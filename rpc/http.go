package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finvoice/core"
	"finvoice/native/receivables"
	"finvoice/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "FINVOICE_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeAuthRequired   = -32001

	codeUnauthorized      = -32021
	codeInvalidState      = -32022
	codeAlreadyExists     = -32023
	codeInvalidParameter  = -32024
	codeAssetMismatch     = -32025
	codeInsufficientFunds = -32026
	codeNotFound          = -32027
)

type Server struct {
	node      *core.Node
	authToken string
	logger    *slog.Logger
	metrics   *observability.InstructionMetrics
}

// NewServer builds the JSON-RPC surface over a node. Mutating instructions
// require the bearer token from FINVOICE_RPC_TOKEN when one is configured.
func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		logger:    logger,
		metrics:   observability.Instructions(),
	}
}

// Router assembles the HTTP handler: the JSON-RPC endpoint plus health and
// metrics surfaces.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type authError struct {
	Code    int
	Message string
	Data    interface{}
}

func (s *Server) requireAuth(r *http.Request) *authError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &authError{Code: codeAuthRequired, Message: "unauthorized", Data: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &authError{Code: codeAuthRequired, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, *RPCError)

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"fin_initialize":    s.auth(s.handleInitialize),
		"fin_createVault":   s.auth(s.handleCreateVault),
		"fin_registerToken": s.auth(s.handleRegisterToken),
		"fin_mint":          s.auth(s.handleMintToken),
		"fin_transfer":      s.auth(s.handleTransferToken),
		"fin_setApprover":   s.auth(s.handleSetApprover),
		"fin_create":        s.auth(s.handleCreate),
		"fin_approve":       s.auth(s.handleApprove),
		"fin_pay":           s.auth(s.handlePay),
		"fin_redeem":        s.auth(s.handleRedeem),
		"fin_getState":      s.handleGetState,
		"fin_getVault":      s.handleGetVault,
		"fin_getContract":   s.handleGetContract,
		"fin_getBalance":    s.handleGetBalance,
		"fin_listEvents":    s.handleListEvents,
	}
}

// auth wraps a mutating handler with bearer-token verification.
func (s *Server) auth(next handlerFunc) handlerFunc {
	return func(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
		if authErr := s.requireAuth(r); authErr != nil {
			return nil, &RPCError{Code: authErr.Code, Message: authErr.Message, Data: authErr.Data}
		}
		return next(r, req)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}
	handler, ok := s.handlers()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}

	started := time.Now()
	result, rpcErr := handler(r, &req)
	if rpcErr != nil {
		s.metrics.Observe(req.Method, started, errorLabel(rpcErr.Code))
		s.logger.Warn("instruction rejected", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.metrics.Observe(req.Method, started, "")
	writeResult(w, req.ID, result)
}

func httpStatusFor(code int) int {
	switch code {
	case codeAuthRequired, codeUnauthorized:
		return http.StatusUnauthorized
	case codeNotFound:
		return http.StatusNotFound
	case codeInvalidState, codeAlreadyExists:
		return http.StatusConflict
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func errorLabel(code int) string {
	switch code {
	case codeUnauthorized, codeAuthRequired:
		return "unauthorized"
	case codeInvalidState:
		return "invalid_state"
	case codeAlreadyExists:
		return "already_exists"
	case codeInvalidParameter, codeInvalidParams:
		return "invalid_parameter"
	case codeAssetMismatch:
		return "asset_mismatch"
	case codeInsufficientFunds:
		return "insufficient_funds"
	case codeNotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// engineError translates the engine's error taxonomy into JSON-RPC codes so
// callers can distinguish rejection classes programmatically.
func engineError(err error) *RPCError {
	switch {
	case errors.Is(err, receivables.ErrUnauthorized):
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: err.Error()}
	case errors.Is(err, receivables.ErrInvalidState), errors.Is(err, receivables.ErrNotInitialized):
		return &RPCError{Code: codeInvalidState, Message: "invalid_state", Data: err.Error()}
	case errors.Is(err, receivables.ErrAlreadyInitialized), errors.Is(err, receivables.ErrAlreadyExists):
		return &RPCError{Code: codeAlreadyExists, Message: "already_exists", Data: err.Error()}
	case errors.Is(err, receivables.ErrInvalidParameter),
		errors.Is(err, receivables.ErrInvalidAmount),
		errors.Is(err, receivables.ErrInvalidDueDate):
		return &RPCError{Code: codeInvalidParameter, Message: "invalid_parameter", Data: err.Error()}
	case errors.Is(err, receivables.ErrAssetMismatch):
		return &RPCError{Code: codeAssetMismatch, Message: "asset_mismatch", Data: err.Error()}
	case errors.Is(err, receivables.ErrInsufficientFunds):
		return &RPCError{Code: codeInsufficientFunds, Message: "insufficient_funds", Data: err.Error()}
	case errors.Is(err, receivables.ErrNotFound):
		return &RPCError{Code: codeNotFound, Message: "not_found", Data: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "server_error", Data: err.Error()}
	}
}
