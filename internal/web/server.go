/*

This file contains the HTTP surface of the daemon. Read endpoints serve live
cellar state and persisted history; mutating endpoints run user flows and
strategist operations and require the configured bearer token. The server
never holds cellar state of its own, every request goes straight to the
cellar or the database.

*/

package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/engine"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/state"
	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/utils"
)

// WebServer handles HTTP requests for cellar state and operations.
type WebServer struct {
	router     *mux.Router
	port       string
	apiToken   string
	cellar     *cellar.Cellar
	strategist string
	logger     zerolog.Logger
}

// ServerConfig holds the dependencies for creating a new web server.
type ServerConfig struct {
	Port string
	// APIToken guards the mutating endpoints. When empty they are disabled
	// rather than left open.
	APIToken string
	Cellar   *cellar.Cellar
	// Strategist is the identity used for rebalance batches submitted over
	// the API.
	Strategist string
}

// NewWebServer creates a new web server instance.
func NewWebServer(cfg ServerConfig) (*WebServer, error) {
	if cfg.Cellar == nil {
		return nil, errors.New("cellar cannot be nil")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       cfg.Port,
		apiToken:   cfg.APIToken,
		cellar:     cfg.Cellar,
		strategist: cfg.Strategist,
		logger:     logger.GetForComponent("web_server"),
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Read API
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleVaultSummary).Methods("GET")
	api.HandleFunc("/vault/positions", ws.handleVaultPositions).Methods("GET")
	api.HandleFunc("/rebalances", ws.handleGetRebalances).Methods("GET")
	api.HandleFunc("/rebalances/{id}", ws.handleGetRebalance).Methods("GET")
	api.HandleFunc("/accruals", ws.handleGetAccruals).Methods("GET")
	api.HandleFunc("/observations", ws.handleGetObservations).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Mutating API, bearer token required
	api.HandleFunc("/deposit", ws.requireAuth(ws.handleDeposit)).Methods("POST")
	api.HandleFunc("/withdraw", ws.requireAuth(ws.handleWithdraw)).Methods("POST")
	api.HandleFunc("/rebalance", ws.requireAuth(ws.handleRebalance)).Methods("POST")
	api.HandleFunc("/fees/accrue", ws.requireAuth(ws.handleAccrueFees)).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// Handler exposes the configured router, used for embedding and tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// requireAuth guards a mutating endpoint with the configured bearer token.
func (ws *WebServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ws.apiToken == "" {
			ws.writeErrorResponse(w, http.StatusForbidden, "Mutating API is disabled: no API token configured")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			ws.writeErrorResponse(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(ws.apiToken)) != 1 {
			ws.writeErrorResponse(w, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		next(w, r)
	}
}

// handleHealth returns server, database and cellar health.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	valuationHealthy := true
	if _, err := ws.cellar.TotalAssets(); err != nil {
		valuationHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":   "cellard",
			"cellar": ws.cellar.Name(),
		},
		"cellar_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"valuation_healthy": valuationHealthy,
			"paused":            ws.cellar.Paused(),
			"shutdown_active":   ws.cellar.ShutdownActive(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleVaultSummary returns the live cellar state plus persisted aggregates.
func (ws *WebServer) handleVaultSummary(w http.ResponseWriter, r *http.Request) {
	totalAssets, err := ws.cellar.TotalAssets()
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to value cellar for summary")
		ws.writeErrorResponse(w, statusForError(err), "Valuation unavailable: "+err.Error())
		return
	}
	withdrawable, err := ws.cellar.TotalAssetsWithdrawable()
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Valuation unavailable: "+err.Error())
		return
	}

	totalSupply := ws.cellar.TotalSupply()
	feeData := ws.cellar.FeeData()

	response := map[string]interface{}{
		"name":                     ws.cellar.Name(),
		"address":                  ws.cellar.Address(),
		"asset":                    ws.cellar.Asset(),
		"share_denom":              ws.cellar.ShareDenom(),
		"total_assets":             totalAssets,
		"total_assets_withdrawable": withdrawable,
		"total_supply":             totalSupply,
		"share_price":              engine.SharePrice(totalAssets, totalSupply, ws.cellar.Asset().Decimals),
		"holding_position":         ws.cellar.HoldingPosition(),
		"shutdown_active":          ws.cellar.ShutdownActive(),
		"paused":                   ws.cellar.Paused(),
		"platform_fee":             feeData.PlatformFee,
		"strategist_platform_cut":  feeData.StrategistPlatformCut,
		"last_accrual":             feeData.LastAccrual,
		"rebalance_deviation":      ws.cellar.RebalanceDeviation(),
		"share_lock_period_seconds": int64(ws.cellar.ShareLockPeriod().Seconds()),
	}

	if display, err := utils.SDKIntToFloat64(totalAssets, int(ws.cellar.Asset().Decimals)); err == nil {
		response["total_assets_display"] = display
	}

	// Persisted aggregates are best-effort; the summary works without a DB.
	if rebalanceStats, err := state.GetRebalanceStats(); err == nil {
		response["rebalances"] = rebalanceStats
	}
	if accrualStats, err := state.GetAccrualStats(); err == nil {
		response["accruals"] = accrualStats
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleVaultPositions returns the ordered credit and debt position arrays.
func (ws *WebServer) handleVaultPositions(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"holding_position": ws.cellar.HoldingPosition(),
		"credit":           ws.cellar.CreditPositions(),
		"debt":             ws.cellar.DebtPositions(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRebalances returns recent rebalance receipts.
func (ws *WebServer) handleGetRebalances(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	receipts, err := state.GetRecentRebalances(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent rebalances")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalances")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"rebalances": receipts,
		"count":      len(receipts),
		"limit":      limit,
	})
}

// handleGetRebalance returns a specific rebalance receipt by ID.
func (ws *WebServer) handleGetRebalance(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid receipt ID")
		return
	}

	receipt, err := state.GetRebalanceByID(id)
	if err != nil {
		ws.logger.Error().Err(err).Int64("receiptId", id).Msg("Failed to get rebalance receipt")
		ws.writeErrorResponse(w, http.StatusNotFound, "Rebalance receipt not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleGetAccruals returns recent fee accrual records.
func (ws *WebServer) handleGetAccruals(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	records, err := state.GetRecentAccruals(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent accruals")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve accruals")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"accruals": records,
		"count":    len(records),
		"limit":    limit,
	})
}

// handleGetObservations returns recent share price observations.
func (ws *WebServer) handleGetObservations(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	observations, err := state.GetRecentObservations(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get share observations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve observations")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"observations": observations,
		"count":        len(observations),
		"limit":        limit,
	})
}

// handleGetParameters returns the recorded governed-parameter history.
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	history, err := state.GetParameterHistory(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get parameter history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve parameters")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"parameters": history,
		"count":      len(history),
		"limit":      limit,
	})
}

type depositRequest struct {
	Account  string      `json:"account"`
	Receiver string      `json:"receiver,omitempty"` // defaults to account
	Amount   interface{} `json:"amount"`             // base unit string or whole token number
}

// handleDeposit deposits accounting assets for shares.
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	amount, ok := ws.parseAmount(req.Amount)
	if !ok || req.Account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "account and a positive amount are required")
		return
	}
	receiver := req.Receiver
	if receiver == "" {
		receiver = req.Account
	}

	shares, err := ws.cellar.Deposit(req.Account, receiver, amount)
	if err != nil {
		ws.logger.Warn().Err(err).Str("account", req.Account).Msg("Deposit rejected")
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"account":  req.Account,
		"receiver": receiver,
		"assets":   amount,
		"shares":   shares,
	})
}

type withdrawRequest struct {
	Account  string      `json:"account"`
	Receiver string      `json:"receiver,omitempty"` // defaults to account
	Amount   interface{} `json:"amount"`             // base unit string or whole token number
}

// handleWithdraw redeems shares for an exact amount of accounting assets.
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	amount, ok := ws.parseAmount(req.Amount)
	if !ok || req.Account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "account and a positive amount are required")
		return
	}
	receiver := req.Receiver
	if receiver == "" {
		receiver = req.Account
	}

	// Reject claims beyond the owner's withdrawable balance up front, rather
	// than letting the ledger report a generic shortfall mid-walk.
	maxAssets, err := ws.cellar.MaxWithdraw(req.Account)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}
	if amount.GT(maxAssets) {
		ws.writeErrorResponse(w, http.StatusBadRequest,
			types.ErrExceedsMax.Error()+": requested "+amount.String()+", withdrawable "+maxAssets.String())
		return
	}

	shares, err := ws.cellar.Withdraw(req.Account, receiver, req.Account, amount)
	if err != nil {
		ws.logger.Warn().Err(err).Str("account", req.Account).Msg("Withdraw rejected")
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"account":  req.Account,
		"receiver": receiver,
		"assets":   amount,
		"shares":   shares,
	})
}

type rebalanceRequest struct {
	Calls []types.AdaptorCall `json:"calls"`
}

// handleRebalance executes a strategist adaptor-call batch and persists the
// receipt whether it committed or rolled back.
func (ws *WebServer) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Calls) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "calls cannot be empty")
		return
	}

	traceID := uuid.New().String()
	batchLogger := ws.logger.With().Str("trace_id", traceID).Logger()

	receipt, err := ws.cellar.CallOnAdaptor(ws.strategist, req.Calls)

	// A zero timestamp means the batch never started (auth, pause, guard);
	// there is nothing worth persisting then.
	if !receipt.Timestamp.IsZero() {
		receipt.TraceID = traceID
		if receiptID, saveErr := state.SaveRebalanceReceipt(receipt); saveErr != nil {
			batchLogger.Error().Err(saveErr).Msg("Failed to persist rebalance receipt")
		} else {
			receipt.ReceiptID = receiptID
		}
	}

	if err != nil {
		batchLogger.Warn().Err(err).Msg("Rebalance batch rejected")
		if receipt.Timestamp.IsZero() {
			ws.writeErrorResponse(w, statusForError(err), err.Error())
			return
		}
		ws.writeJSONResponse(w, statusForError(err), map[string]interface{}{
			"error":     true,
			"message":   err.Error(),
			"receipt":   receipt,
			"timestamp": time.Now().UTC(),
		})
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}

// handleAccrueFees runs an explicit platform fee accrual.
func (ws *WebServer) handleAccrueFees(w http.ResponseWriter, r *http.Request) {
	record, err := ws.cellar.AccrueFees()
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}

	record.TraceID = uuid.New().String()
	if recordID, saveErr := state.SaveFeeAccrual(record); saveErr != nil {
		ws.logger.Error().Err(saveErr).Msg("Failed to persist fee accrual")
	} else {
		record.RecordID = recordID
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"accrual": record})
}

// statusForError maps cellar rejections to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrCellarPaused),
		errors.Is(err, types.ErrCellarShutdown),
		errors.Is(err, types.ErrReentrancy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// parseAmount parses a positive token amount. Strings carry base units;
// JSON numbers carry whole tokens and are scaled by the asset's decimals.
func (ws *WebServer) parseAmount(value interface{}) (sdkmath.Int, bool) {
	switch v := value.(type) {
	case string:
		amount, ok := sdkmath.NewIntFromString(v)
		if !ok || !amount.IsPositive() {
			return sdkmath.Int{}, false
		}
		return amount, true
	case float64:
		amount, err := utils.Float64ToSDKInt(v, int(ws.cellar.Asset().Decimals))
		if err != nil || !amount.IsPositive() {
			return sdkmath.Int{}, false
		}
		return amount, true
	default:
		return sdkmath.Int{}, false
	}
}

// parseLimit reads the limit query parameter with a default.
func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
