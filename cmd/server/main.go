// Package main provides the launch ledger server:
// - Participant operations: participate, update, cancel, claim refund
// - Operator operations: batch refund, finalize winners, withdraw
// - Manager operations: groups, currencies, pause
// - Observability: audit event queries, WebSocket stream, Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
	"launch-ledger/internal/engine"
	"launch-ledger/internal/events"
	"launch-ledger/internal/funds"
	"launch-ledger/internal/ledger"
	"launch-ledger/internal/observability"
	"launch-ledger/internal/storage"
	chstore "launch-ledger/internal/storage/clickhouse"
	"launch-ledger/internal/storage/memory"
	"launch-ledger/internal/storage/migrations"
	pgstore "launch-ledger/internal/storage/postgres"
)

// Server holds the engine and its read surfaces behind the HTTP API.
type Server struct {
	launchID string
	chainID  string

	engine     *engine.Engine
	vault      *funds.MemoryVault
	eventStore storage.EventStore
	hub        *events.Hub
	logger     *log.Logger

	// The engine rejects overlapping calls rather than queueing them,
	// so the server serializes mutating requests here.
	engineMu sync.Mutex

	startedAt time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	launchID := flag.String("launch-id", os.Getenv("LAUNCH_ID"), "Launch deployment identifier")
	chainID := flag.String("chain-id", os.Getenv("CHAIN_ID"), "Chain identifier requests must be bound to")
	tokenDecimals := flag.Uint("token-decimals", 9, "Decimals of the token being sold")
	withdrawalAddress := flag.String("withdrawal-address", os.Getenv("WITHDRAWAL_ADDRESS"), "Initial withdrawal address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the audit log")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "Optional ClickHouse connection string for the analytics copy")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	signerKeys := flag.String("signer-keys", os.Getenv("SIGNER_KEYS"), "Comma-separated base58 ed25519 public keys granted the signer capability")
	managers := flag.String("managers", os.Getenv("MANAGERS"), "Comma-separated identities granted the manager capability")
	operators := flag.String("operators", os.Getenv("OPERATORS"), "Comma-separated identities granted the operator capability")
	withdrawers := flag.String("withdrawers", os.Getenv("WITHDRAWERS"), "Comma-separated identities granted the withdrawer capability")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *launchID == "" {
		logger.Fatal("--launch-id is required")
	}
	if *chainID == "" {
		logger.Fatal("--chain-id is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *signerKeys == "" {
		logger.Fatal("--signer-keys is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create event stores
	primary, analytics, cleanup, err := createEventStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create event stores: %v", err)
	}
	defer cleanup()

	// Resume the event sequence where the audit log left off
	startSeq, err := lastSequence(ctx, primary)
	if err != nil {
		logger.Fatalf("Failed to read last event sequence: %v", err)
	}
	if startSeq > 0 {
		logger.Printf("Resuming event sequence after %d", startSeq)
	}

	// Grant capabilities
	caps := authn.NewMemoryChecker()
	grantAll(caps, *signerKeys, authn.CapabilitySigner)
	grantAll(caps, *managers, authn.CapabilityManager)
	grantAll(caps, *operators, authn.CapabilityOperator)
	grantAll(caps, *withdrawers, authn.CapabilityWithdrawer)

	// Assemble the engine
	hub := events.NewHub(nil, log.New(os.Stdout, "[events] ", log.LstdFlags))
	defer hub.Close()

	emitter := events.MultiEmitter{events.NewStoreEmitter(primary)}
	if analytics != nil {
		emitter = append(emitter, events.NewStoreEmitter(analytics))
	}
	emitter = append(emitter, hub)

	vault := funds.NewMemoryVault()
	eng, err := engine.New(engine.Config{
		LaunchID:          *launchID,
		ChainID:           *chainID,
		TokenDecimals:     *tokenDecimals,
		WithdrawalAddress: *withdrawalAddress,
		StartSequence:     startSeq,
		Ledger:            ledger.New(),
		Capabilities:      caps,
		Transferor:        vault,
		Emitter:           emitter,
		Metrics:           observability.NewMetrics(""),
		Logger:            log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	server := &Server{
		launchID:   *launchID,
		chainID:    *chainID,
		engine:     eng,
		vault:      vault,
		eventStore: primary,
		hub:        hub,
		logger:     logger,
		startedAt:  time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Serving launch %s on %s", *launchID, *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createEventStores creates the durable audit log and the optional
// analytics copy.
func createEventStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (primary, analytics storage.EventStore, cleanup func(), err error) {
	if useMemory {
		return memory.NewEventStore(), nil, func() {}, nil
	}

	// PostgreSQL holds the authoritative audit log
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	primary = pgstore.NewEventStore(pool)
	cleanup = pool.Close

	// ClickHouse carries a second copy for analytics queries
	if clickhouseDSN != "" {
		var conn *chstore.Conn
		conn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		analytics = chstore.NewEventStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return primary, analytics, cleanup, nil
}

// lastSequence returns the highest sequence present in the audit log.
func lastSequence(ctx context.Context, store storage.EventStore) (uint64, error) {
	all, err := store.GetBySequenceRange(ctx, 1, math.MaxUint64)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, nil
	}
	return all[len(all)-1].Sequence, nil
}

// grantAll grants one capability to every identity in a comma-separated list.
func grantAll(caps *authn.MemoryChecker, list string, capability authn.Capability) {
	for _, identity := range strings.Split(list, ",") {
		identity = strings.TrimSpace(identity)
		if identity != "" {
			caps.Grant(identity, capability)
		}
	}
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status and event stream
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws/events", s.hub)

	// Participant operations
	mux.HandleFunc("/v1/participate", post(s.handleParticipate))
	mux.HandleFunc("/v1/participation/update", post(s.handleUpdateParticipation))
	mux.HandleFunc("/v1/participation/cancel", post(s.handleCancelParticipation))
	mux.HandleFunc("/v1/refund/claim", post(s.handleClaimRefund))

	// Operator operations
	mux.HandleFunc("/v1/refund/batch", post(s.handleBatchRefund))
	mux.HandleFunc("/v1/winners/finalize", post(s.handleFinalizeWinners))
	mux.HandleFunc("/v1/withdraw", post(s.handleWithdraw))

	// Manager operations
	mux.HandleFunc("/v1/admin/group/create", post(s.handleCreateGroup))
	mux.HandleFunc("/v1/admin/group/status", post(s.handleSetGroupStatus))
	mux.HandleFunc("/v1/admin/group/settings", post(s.handleSetGroupSettings))
	mux.HandleFunc("/v1/admin/currency", post(s.handleSetCurrencyConfig))
	mux.HandleFunc("/v1/admin/withdrawal-address", post(s.handleSetWithdrawalAddress))
	mux.HandleFunc("/v1/admin/pause", post(s.handlePause))
	mux.HandleFunc("/v1/admin/unpause", post(s.handleUnpause))

	// Dev faucet for the in-process vault
	mux.HandleFunc("/v1/dev/credit", post(s.handleCredit))

	// Reads
	mux.HandleFunc("/v1/groups", s.handleGroups)
	mux.HandleFunc("/v1/group", s.handleGroup)
	mux.HandleFunc("/v1/participation", s.handleParticipation)
	mux.HandleFunc("/v1/events", s.handleEvents)

	return mux
}

// post restricts a handler to the POST method.
func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// signatureJSON is a detached request signature on the wire.
type signatureJSON struct {
	SignerKey string `json:"signer_key"`
	Value     string `json:"value"`
}

func (s signatureJSON) toSignature() authn.Signature {
	return authn.Signature{SignerKey: s.SignerKey, Value: s.Value}
}

// participationJSON is a participation record on the wire. Amounts are
// decimal strings.
type participationJSON struct {
	ParticipationID string `json:"participation_id"`
	GroupID         string `json:"group_id"`
	UserID          string `json:"user_id"`
	TokenAmount     string `json:"token_amount"`
	CurrencyAmount  string `json:"currency_amount"`
	CurrencyID      string `json:"currency_id"`
	PayerAddress    string `json:"payer_address"`
	IsFinalized     bool   `json:"is_finalized"`
}

func toParticipationJSON(p *domain.ParticipationInfo) participationJSON {
	return participationJSON{
		ParticipationID: p.ParticipationID,
		GroupID:         p.GroupID,
		UserID:          p.UserID,
		TokenAmount:     p.TokenAmount.String(),
		CurrencyAmount:  p.CurrencyAmount.String(),
		CurrencyID:      p.CurrencyID,
		PayerAddress:    p.PayerAddress,
		IsFinalized:     p.IsFinalized,
	}
}

// groupJSON is a launch group on the wire.
type groupJSON struct {
	ID                       string `json:"id"`
	StartsAt                 int64  `json:"starts_at"`
	EndsAt                   int64  `json:"ends_at"`
	MinTokenAmountPerUser    string `json:"min_token_amount_per_user"`
	MaxTokenAmountPerUser    string `json:"max_token_amount_per_user"`
	MaxTokenAllocation       string `json:"max_token_allocation"`
	FinalizesAtParticipation bool   `json:"finalizes_at_participation"`
	Status                   string `json:"status"`
	TokensSold               string `json:"tokens_sold"`
}

func (s *Server) toGroupJSON(g *domain.LaunchGroup) groupJSON {
	return groupJSON{
		ID:                       g.ID,
		StartsAt:                 g.StartsAt,
		EndsAt:                   g.EndsAt,
		MinTokenAmountPerUser:    g.MinTokenAmountPerUser.String(),
		MaxTokenAmountPerUser:    g.MaxTokenAmountPerUser.String(),
		MaxTokenAllocation:       g.MaxTokenAllocation.String(),
		FinalizesAtParticipation: g.FinalizesAtParticipation,
		Status:                   g.Status.String(),
		TokensSold:               s.engine.TokensSold(g.ID).String(),
	}
}

type participateRequest struct {
	Caller           string        `json:"caller"`
	GroupID          string        `json:"group_id"`
	ParticipationID  string        `json:"participation_id"`
	UserID           string        `json:"user_id"`
	UserAddress      string        `json:"user_address"`
	TokenAmount      string        `json:"token_amount"`
	CurrencyID       string        `json:"currency_id"`
	RequestExpiresAt int64         `json:"request_expires_at"`
	Signature        signatureJSON `json:"signature"`
}

func (s *Server) handleParticipate(w http.ResponseWriter, r *http.Request) {
	var req participateRequest
	if !s.decode(w, r, &req) {
		return
	}
	tokenAmount, ok := s.amount(w, req.TokenAmount)
	if !ok {
		return
	}

	s.engineMu.Lock()
	info, err := s.engine.Participate(r.Context(), req.Caller, &domain.ParticipationRequest{
		ChainID:          s.chainID,
		LaunchID:         s.launchID,
		GroupID:          req.GroupID,
		ParticipationID:  req.ParticipationID,
		UserID:           req.UserID,
		UserAddress:      req.UserAddress,
		TokenAmount:      tokenAmount,
		CurrencyID:       req.CurrencyID,
		RequestExpiresAt: req.RequestExpiresAt,
	}, req.Signature.toSignature())
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toParticipationJSON(info))
}

type updateParticipationRequest struct {
	Caller              string        `json:"caller"`
	GroupID             string        `json:"group_id"`
	PrevParticipationID string        `json:"prev_participation_id"`
	NewParticipationID  string        `json:"new_participation_id"`
	UserID              string        `json:"user_id"`
	UserAddress         string        `json:"user_address"`
	TokenAmount         string        `json:"token_amount"`
	CurrencyID          string        `json:"currency_id"`
	RequestExpiresAt    int64         `json:"request_expires_at"`
	Signature           signatureJSON `json:"signature"`
}

func (s *Server) handleUpdateParticipation(w http.ResponseWriter, r *http.Request) {
	var req updateParticipationRequest
	if !s.decode(w, r, &req) {
		return
	}
	tokenAmount, ok := s.amount(w, req.TokenAmount)
	if !ok {
		return
	}

	s.engineMu.Lock()
	info, err := s.engine.UpdateParticipation(r.Context(), req.Caller, &domain.UpdateParticipationRequest{
		ChainID:             s.chainID,
		LaunchID:            s.launchID,
		GroupID:             req.GroupID,
		PrevParticipationID: req.PrevParticipationID,
		NewParticipationID:  req.NewParticipationID,
		UserID:              req.UserID,
		UserAddress:         req.UserAddress,
		TokenAmount:         tokenAmount,
		CurrencyID:          req.CurrencyID,
		RequestExpiresAt:    req.RequestExpiresAt,
	}, req.Signature.toSignature())
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toParticipationJSON(info))
}

type cancelParticipationRequest struct {
	Caller           string        `json:"caller"`
	GroupID          string        `json:"group_id"`
	ParticipationID  string        `json:"participation_id"`
	UserID           string        `json:"user_id"`
	UserAddress      string        `json:"user_address"`
	RequestExpiresAt int64         `json:"request_expires_at"`
	Signature        signatureJSON `json:"signature"`
}

func (s *Server) handleCancelParticipation(w http.ResponseWriter, r *http.Request) {
	var req cancelParticipationRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.CancelParticipation(r.Context(), req.Caller, &domain.CancelParticipationRequest{
		ChainID:          s.chainID,
		LaunchID:         s.launchID,
		GroupID:          req.GroupID,
		ParticipationID:  req.ParticipationID,
		UserID:           req.UserID,
		UserAddress:      req.UserAddress,
		RequestExpiresAt: req.RequestExpiresAt,
	}, req.Signature.toSignature())
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleClaimRefund(w http.ResponseWriter, r *http.Request) {
	var req cancelParticipationRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.ClaimRefund(r.Context(), req.Caller, &domain.ClaimRefundRequest{
		ChainID:          s.chainID,
		LaunchID:         s.launchID,
		GroupID:          req.GroupID,
		ParticipationID:  req.ParticipationID,
		UserID:           req.UserID,
		UserAddress:      req.UserAddress,
		RequestExpiresAt: req.RequestExpiresAt,
	}, req.Signature.toSignature())
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

type batchRequest struct {
	Caller           string   `json:"caller"`
	GroupID          string   `json:"group_id"`
	ParticipationIDs []string `json:"participation_ids"`
}

func (s *Server) handleBatchRefund(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.BatchRefund(r.Context(), req.Caller, req.GroupID, req.ParticipationIDs)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"refunded": len(req.ParticipationIDs)})
}

func (s *Server) handleFinalizeWinners(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.FinalizeWinners(r.Context(), req.Caller, req.GroupID, req.ParticipationIDs)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"finalized": len(req.ParticipationIDs)})
}

type withdrawRequest struct {
	Caller     string `json:"caller"`
	CurrencyID string `json:"currency_id"`
	Amount     string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, ok := s.amount(w, req.Amount)
	if !ok {
		return
	}

	s.engineMu.Lock()
	err := s.engine.Withdraw(r.Context(), req.Caller, req.CurrencyID, amount)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

type createGroupRequest struct {
	Caller                   string `json:"caller"`
	GroupID                  string `json:"group_id"`
	StartsAt                 int64  `json:"starts_at"`
	EndsAt                   int64  `json:"ends_at"`
	MinTokenAmountPerUser    string `json:"min_token_amount_per_user"`
	MaxTokenAmountPerUser    string `json:"max_token_amount_per_user"`
	MaxTokenAllocation       string `json:"max_token_allocation"`
	FinalizesAtParticipation bool   `json:"finalizes_at_participation"`
	CurrencyID               string `json:"currency_id"`
	TokenPriceBps            string `json:"token_price_bps"`
	CurrencyEnabled          bool   `json:"currency_enabled"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !s.decode(w, r, &req) {
		return
	}
	minPerUser, ok := s.amount(w, req.MinTokenAmountPerUser)
	if !ok {
		return
	}
	maxPerUser, ok := s.amount(w, req.MaxTokenAmountPerUser)
	if !ok {
		return
	}
	maxAllocation, ok := s.amount(w, req.MaxTokenAllocation)
	if !ok {
		return
	}
	priceBps, ok := s.amount(w, req.TokenPriceBps)
	if !ok {
		return
	}

	group := &domain.LaunchGroup{
		ID:                       req.GroupID,
		StartsAt:                 req.StartsAt,
		EndsAt:                   req.EndsAt,
		MinTokenAmountPerUser:    minPerUser,
		MaxTokenAmountPerUser:    maxPerUser,
		MaxTokenAllocation:       maxAllocation,
		FinalizesAtParticipation: req.FinalizesAtParticipation,
	}
	currency := &domain.CurrencyConfig{
		GroupID:       req.GroupID,
		CurrencyID:    req.CurrencyID,
		TokenPriceBps: priceBps,
		IsEnabled:     req.CurrencyEnabled,
	}

	s.engineMu.Lock()
	err := s.engine.CreateGroup(r.Context(), req.Caller, group, currency)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.toGroupJSON(group))
}

type setGroupStatusRequest struct {
	Caller  string `json:"caller"`
	GroupID string `json:"group_id"`
	Status  string `json:"status"`
}

func (s *Server) handleSetGroupStatus(w http.ResponseWriter, r *http.Request) {
	var req setGroupStatusRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.SetGroupStatus(r.Context(), req.Caller, req.GroupID, domain.GroupStatus(req.Status))
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type setGroupSettingsRequest struct {
	Caller                   string `json:"caller"`
	GroupID                  string `json:"group_id"`
	StartsAt                 int64  `json:"starts_at"`
	EndsAt                   int64  `json:"ends_at"`
	MinTokenAmountPerUser    string `json:"min_token_amount_per_user"`
	MaxTokenAmountPerUser    string `json:"max_token_amount_per_user"`
	MaxTokenAllocation       string `json:"max_token_allocation"`
	FinalizesAtParticipation bool   `json:"finalizes_at_participation"`
	Status                   string `json:"status"`
}

func (s *Server) handleSetGroupSettings(w http.ResponseWriter, r *http.Request) {
	var req setGroupSettingsRequest
	if !s.decode(w, r, &req) {
		return
	}
	minPerUser, ok := s.amount(w, req.MinTokenAmountPerUser)
	if !ok {
		return
	}
	maxPerUser, ok := s.amount(w, req.MaxTokenAmountPerUser)
	if !ok {
		return
	}
	maxAllocation, ok := s.amount(w, req.MaxTokenAllocation)
	if !ok {
		return
	}

	s.engineMu.Lock()
	err := s.engine.SetGroupSettings(r.Context(), req.Caller, req.GroupID, domain.GroupSettings{
		StartsAt:                 req.StartsAt,
		EndsAt:                   req.EndsAt,
		MinTokenAmountPerUser:    minPerUser,
		MaxTokenAmountPerUser:    maxPerUser,
		MaxTokenAllocation:       maxAllocation,
		FinalizesAtParticipation: req.FinalizesAtParticipation,
		Status:                   domain.GroupStatus(req.Status),
	})
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type setCurrencyConfigRequest struct {
	Caller        string `json:"caller"`
	GroupID       string `json:"group_id"`
	CurrencyID    string `json:"currency_id"`
	TokenPriceBps string `json:"token_price_bps"`
	IsEnabled     bool   `json:"is_enabled"`
}

func (s *Server) handleSetCurrencyConfig(w http.ResponseWriter, r *http.Request) {
	var req setCurrencyConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	priceBps, ok := s.amount(w, req.TokenPriceBps)
	if !ok {
		return
	}

	s.engineMu.Lock()
	err := s.engine.SetCurrencyConfig(r.Context(), req.Caller, req.GroupID, &domain.CurrencyConfig{
		GroupID:       req.GroupID,
		CurrencyID:    req.CurrencyID,
		TokenPriceBps: priceBps,
		IsEnabled:     req.IsEnabled,
	})
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type setWithdrawalAddressRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleSetWithdrawalAddress(w http.ResponseWriter, r *http.Request) {
	var req setWithdrawalAddressRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.SetWithdrawalAddress(r.Context(), req.Caller, req.Address)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type pauseRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.Pause(r.Context(), req.Caller)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.engineMu.Lock()
	err := s.engine.Unpause(r.Context(), req.Caller)
	s.engineMu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

type creditRequest struct {
	CurrencyID string `json:"currency_id"`
	Address    string `json:"address"`
	Amount     string `json:"amount"`
}

// handleCredit funds an account in the in-process vault. The vault is
// custodial and process-local; production deployments put a real
// settlement adapter behind funds.Transferor instead.
func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, ok := s.amount(w, req.Amount)
	if !ok {
		return
	}

	s.vault.Credit(req.CurrencyID, req.Address, amount)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"balance": s.vault.Balance(req.CurrencyID, req.Address).String(),
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.GroupIDs()
	groups := make([]groupJSON, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.engine.Group(id); ok {
			groups = append(groups, s.toGroupJSON(g))
		}
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	g, ok := s.engine.Group(id)
	if !ok {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.toGroupJSON(g))
}

func (s *Server) handleParticipation(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	info := s.engine.GetParticipation(id)
	if !info.Exists() {
		http.Error(w, "participation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, toParticipationJSON(info))
}

// handleEvents serves the audit log, filtered by group or by an
// inclusive sequence range.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var (
		list []*domain.LaunchEvent
		err  error
	)

	q := r.URL.Query()
	switch {
	case q.Get("group_id") != "":
		list, err = s.eventStore.GetByGroup(r.Context(), q.Get("group_id"))
	case q.Get("kind") != "":
		list, err = s.eventStore.GetByKind(r.Context(), domain.EventKind(q.Get("kind")))
	default:
		start, end := uint64(1), uint64(math.MaxUint64)
		if v := q.Get("from"); v != "" {
			if _, perr := fmt.Sscan(v, &start); perr != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
		}
		if v := q.Get("to"); v != "" {
			if _, perr := fmt.Sscan(v, &end); perr != nil {
				http.Error(w, "invalid to", http.StatusBadRequest)
				return
			}
		}
		list, err = s.eventStore.GetBySequenceRange(r.Context(), start, end)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	wire := make([]*events.WireEvent, len(list))
	for i, e := range list {
		wire[i] = events.ToWire(e)
	}
	s.writeJSON(w, http.StatusOK, wire)
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status    string `json:"status"`
	LaunchID  string `json:"launch_id"`
	ChainID   string `json:"chain_id"`
	Uptime    string `json:"uptime"`
	Groups    int    `json:"groups"`
	Paused    bool   `json:"paused"`
	WSClients int    `json:"ws_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "running"
	if s.engine.Paused() {
		status = "paused"
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:    status,
		LaunchID:  s.launchID,
		ChainID:   s.chainID,
		Uptime:    time.Since(s.startedAt).String(),
		Groups:    len(s.engine.GroupIDs()),
		Paused:    s.engine.Paused(),
		WSClients: s.hub.ClientCount(),
	})
}

// decode parses a JSON request body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// amount parses a decimal-string amount, answering 400 on failure.
func (s *Server) amount(w http.ResponseWriter, raw string) (*big.Int, bool) {
	if raw == "" {
		http.Error(w, "missing amount", http.StatusBadRequest)
		return nil, false
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		http.Error(w, fmt.Sprintf("malformed amount %q", raw), http.StatusBadRequest)
		return nil, false
	}
	return v, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

// writeError maps engine and authn failures onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errorStatus(err))
}

func errorStatus(err error) int {
	var capErr *authn.CapabilityError
	var existsErr *engine.ParticipationAlreadyExistsError

	switch {
	case errors.Is(err, engine.ErrEnginePaused),
		errors.Is(err, engine.ErrReentrantCall):
		return http.StatusServiceUnavailable
	case errors.As(err, &capErr):
		return http.StatusForbidden
	case errors.Is(err, authn.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.As(err, &existsErr):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, funds.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		// Validation failures: bindings, expiry, caps, statuses,
		// windows, winners, refunds.
		return http.StatusBadRequest
	}
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
