package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftescrow/core"
	"nftescrow/core/events"
	"nftescrow/crypto"
	"nftescrow/eventlog"
	"nftescrow/observability"
	"nftescrow/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	metricsModule   = "rpc"
)

// ServerConfig captures the listener-independent RPC settings.
type ServerConfig struct {
	Auth      AuthConfig
	RateLimit RateLimit
}

// EventJournal is the read side of the committed event log.
type EventJournal interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
}

// Option customises a Server.
type Option func(*Server)

// WithJournal enables escrow_listEvents.
func WithJournal(journal EventJournal) Option {
	return func(s *Server) { s.journal = journal }
}

// WithBroadcaster enables the /ws/events stream.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(s *Server) { s.stream = b }
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type methodHandler func(ctx context.Context, req *RPCRequest) (interface{}, error)

type method struct {
	module string
	// mutating methods always require an authenticated caller.
	mutating bool
	handle   methodHandler
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	auth    *authenticator
	limiter *rateLimiter
	journal EventJournal
	stream  *events.Broadcaster
	logger  *slog.Logger
	tracer  trace.Tracer
	methods map[string]method
	router  http.Handler
}

func NewServer(node *core.Node, cfg ServerConfig, opts ...Option) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    newAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  slog.Default(),
		tracer:  otel.Tracer("nftescrow/rpc"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.methods = s.registerMethods()
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "escrow-rpc"))

	return r
}

func (s *Server) registerMethods() map[string]method {
	return map[string]method{
		"escrow_createTrade":         {module: "escrow", mutating: true, handle: s.handleCreateTrade},
		"escrow_deposit":             {module: "escrow", mutating: true, handle: s.handleDeposit},
		"escrow_depositAll":          {module: "escrow", mutating: true, handle: s.handleDepositAll},
		"escrow_lock":                {module: "escrow", mutating: true, handle: s.handleLock},
		"escrow_withdraw":            {module: "escrow", mutating: true, handle: s.handleWithdraw},
		"escrow_cancelTradeOffer":    {module: "escrow", mutating: true, handle: s.handleCancelTradeOffer},
		"escrow_getTrade":            {module: "escrow", handle: s.handleGetTrade},
		"escrow_getRequiredItems":    {module: "escrow", handle: s.handleGetRequiredItems},
		"escrow_getTradeIdsOf":       {module: "escrow", handle: s.handleGetTradeIDsOf},
		"escrow_getTradesOf":         {module: "escrow", handle: s.handleGetTradesOf},
		"escrow_listEvents":          {module: "escrow", handle: s.handleListEvents},
		"escrow_vault":               {module: "escrow", handle: s.handleVault},
		"registry_ownerOf":           {module: "registry", handle: s.handleOwnerOf},
		"registry_approve":           {module: "registry", mutating: true, handle: s.handleApprove},
		"registry_setApprovalForAll": {module: "registry", mutating: true, handle: s.handleSetApprovalForAll},
		"registry_transfer":          {module: "registry", mutating: true, handle: s.handleTransfer},
		"registry_getCollection":     {module: "registry", handle: s.handleGetCollection},
		"registry_isApproved":        {module: "registry", handle: s.handleIsApproved},
		"registry_tokensOf":          {module: "registry", handle: s.handleTokensOf},
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

// paramError marks a malformed parameter payload.
type paramError struct {
	err error
}

func (e *paramError) Error() string { return e.err.Error() }

func (e *paramError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{err: fmt.Errorf(format, args...)}
}

// decodeParams unmarshals the single parameter object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &paramError{err: err}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	done := observability.RPC().Begin(m.module, req.Method)
	done(s.dispatch(w, r, req, m))
}

// dispatch authenticates, throttles and runs one method. It returns the HTTP
// status written.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest, m method) int {
	ctx, span := s.tracer.Start(r.Context(), req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	caller, err := s.auth.authenticate(r)
	switch {
	case err == nil:
		ctx = withCaller(ctx, caller)
		span.SetAttributes(attribute.String("escrow.caller", crypto.FormatAccount(caller)))
	case errors.Is(err, errMissingToken) && !m.mutating && s.cfg.Auth.AllowAnonymous:
	default:
		observability.RPC().Reject(m.module, "unauthenticated")
		s.logger.Debug("rpc caller rejected",
			slog.String("method", req.Method),
			slog.String("remote", clientID(r)),
			logging.MaskField("authorization", r.Header.Get("Authorization")),
			slog.Any("error", err))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
		return http.StatusUnauthorized
	}

	visitor := "ip:" + clientID(r)
	if caller, ok := callerFrom(ctx); ok {
		visitor = crypto.FormatAccount(caller)
	}
	if !s.limiter.allow(visitor) {
		observability.RPC().Reject(m.module, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return http.StatusTooManyRequests
	}

	result, err := m.handle(ctx, req)
	if err != nil {
		var perr *paramError
		if errors.As(err, &perr) {
			span.SetStatus(codes.Error, "invalid params")
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return http.StatusBadRequest
		}
		mapping := classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, mapping.message)
		level := slog.LevelDebug
		if mapping.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "rpc call failed",
			slog.String("method", req.Method),
			slog.String("reason", errorLabel(err)),
			slog.Any("error", err))
		writeError(w, mapping.status, req.ID, mapping.code, mapping.message, err.Error())
		return mapping.status
	}
	writeResult(w, req.ID, result)
	return http.StatusOK
}

func requireCaller(ctx context.Context) ([20]byte, error) {
	caller, ok := callerFrom(ctx)
	if !ok {
		return [20]byte{}, errMissingToken
	}
	return caller, nil
}
