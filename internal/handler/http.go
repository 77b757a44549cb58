package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatcoins/internal/domain"
	"github.com/chatcoins/internal/service"
	"github.com/chatcoins/internal/websocket"
)

// Handler provides HTTP handlers for the economy API
type Handler struct {
	economy *service.EconomyService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(economy *service.EconomyService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		economy: economy,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket event feed
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transfers", h.Transfer)

		r.Route("/bets", func(r chi.Router) {
			r.Post("/roulette", h.PlayRoulette)
			r.Post("/dice", h.PlayDice)
		})

		r.Post("/thefts", h.Steal)
		r.Post("/arrests", h.Arrest)
		r.Post("/privileges/purchase", h.PurchasePrivilege)
		r.Post("/bonus/run", h.RunBonusCycle)

		r.Route("/marriages", func(r chi.Router) {
			r.Post("/propose", h.ProposeMarriage)
			r.Post("/respond", h.RespondMarriage)
			r.Post("/divorce", h.RequestDivorce)
			r.Post("/divorce/respond", h.RespondDivorce)
		})

		r.Route("/accounts/{actorID}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Get("/transactions", h.GetTransactions)
		})

		r.Get("/richlist", h.GetRichList)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a taxonomy error to its HTTP status. Cooldown errors
// additionally carry the remaining wait in seconds.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		seconds := int64(cooldown.Remaining.Round(time.Second) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		h.writeJSON(w, http.StatusTooManyRequests, APIResponse{
			Success: false,
			Error:   cooldown.Error(),
			Data:    map[string]int64{"retry_after_seconds": seconds},
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// statusFor translates the error taxonomy into HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInState), errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded), errors.Is(err, domain.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// TransferRequest is the payload for a player-to-player transfer
type TransferRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// Transfer handles a player-to-player coin transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.FromID == "" || req.ToID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	amount, err := domain.ParseCoins(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.economy.Transfer(r.Context(), req.FromID, req.ToID, amount, req.Memo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, rec)
}

// RouletteRequest is the payload for a roulette round
type RouletteRequest struct {
	ActorID string             `json:"actor_id"`
	Bet     domain.RouletteBet `json:"bet"`
	Amount  string             `json:"amount"`
}

// PlayRoulette handles one roulette round
func (h *Handler) PlayRoulette(w http.ResponseWriter, r *http.Request) {
	var req RouletteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ActorID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	amount, err := domain.ParseCoins(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.economy.PlayRoulette(r.Context(), req.ActorID, req.Bet, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, outcome)
}

// DiceRequest is the payload for a dice round
type DiceRequest struct {
	ActorID string         `json:"actor_id"`
	Bet     domain.DiceBet `json:"bet"`
	Amount  string         `json:"amount"`
}

// PlayDice handles one dice round
func (h *Handler) PlayDice(w http.ResponseWriter, r *http.Request) {
	var req DiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ActorID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	amount, err := domain.ParseCoins(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.economy.PlayDice(r.Context(), req.ActorID, req.Bet, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, outcome)
}

// TheftRequest is the payload for a theft attempt
type TheftRequest struct {
	ThiefID  string `json:"thief_id"`
	VictimID string `json:"victim_id"`
}

// Steal handles a theft attempt
func (h *Handler) Steal(w http.ResponseWriter, r *http.Request) {
	var req TheftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ThiefID == "" || req.VictimID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	outcome, err := h.economy.Steal(r.Context(), req.ThiefID, req.VictimID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, outcome)
}

// ArrestRequest is the payload for an arrest
type ArrestRequest struct {
	OfficerID string `json:"officer_id"`
	TargetID  string `json:"target_id"`
	Duration  string `json:"duration,omitempty"`
}

// Arrest handles an arrest request
func (h *Handler) Arrest(w http.ResponseWriter, r *http.Request) {
	var req ArrestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.OfficerID == "" || req.TargetID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	rec, err := h.economy.Arrest(r.Context(), req.OfficerID, req.TargetID, req.Duration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, rec)
}

// PurchaseRequest is the payload for a privilege purchase
type PurchaseRequest struct {
	ActorID string `json:"actor_id"`
	Kind    string `json:"kind"`
}

// PurchasePrivilege handles a catalog purchase
func (h *Handler) PurchasePrivilege(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ActorID == "" || req.Kind == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	priv, err := h.economy.PurchasePrivilege(r.Context(), req.ActorID, req.Kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, priv)
}

// RunBonusCycle triggers one bonus distribution cycle
func (h *Handler) RunBonusCycle(w http.ResponseWriter, r *http.Request) {
	granted, err := h.economy.RunBonusCycle(r.Context(), 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]int{"grants": granted})
}

// ProposalRequest is the payload for a marriage proposal
type ProposalRequest struct {
	ProposerID string `json:"proposer_id"`
	TargetID   string `json:"target_id"`
}

// ProposeMarriage files a marriage proposal
func (h *Handler) ProposeMarriage(w http.ResponseWriter, r *http.Request) {
	var req ProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ProposerID == "" || req.TargetID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	proposal, err := h.economy.ProposeMarriage(r.Context(), req.ProposerID, req.TargetID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, proposal)
}

// RespondRequest is the payload answering a pending proposal
type RespondRequest struct {
	ResponderID string `json:"responder_id"`
	ProposerID  string `json:"proposer_id"`
	Accept      bool   `json:"accept"`
}

// RespondMarriage answers a pending marriage proposal
func (h *Handler) RespondMarriage(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ResponderID == "" || req.ProposerID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	marriage, err := h.economy.RespondMarriage(r.Context(), req.ResponderID, req.ProposerID, req.Accept)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if marriage == nil {
		h.writeSuccess(w, map[string]string{"status": "declined"})
		return
	}
	h.writeSuccess(w, marriage)
}

// DivorceRequest is the payload filing a divorce
type DivorceRequest struct {
	RequesterID string `json:"requester_id"`
}

// RequestDivorce files a divorce request with the requester's spouse
func (h *Handler) RequestDivorce(w http.ResponseWriter, r *http.Request) {
	var req DivorceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.RequesterID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	proposal, err := h.economy.RequestDivorce(r.Context(), req.RequesterID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, proposal)
}

// RespondDivorce answers a pending divorce request
func (h *Handler) RespondDivorce(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.ResponderID == "" || req.ProposerID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.economy.RespondDivorce(r.Context(), req.ResponderID, req.ProposerID, req.Accept); err != nil {
		h.writeError(w, err)
		return
	}
	status := "declined"
	if req.Accept {
		status = "divorced"
	}
	h.writeSuccess(w, map[string]string{"status": status})
}

// GetAccount returns the full view of one account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")

	view, err := h.economy.Account(r.Context(), actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, view)
}

// GetTransactions returns an account's ledger history
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	records, err := h.economy.Transactions(r.Context(), actorID, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, records)
}

// GetRichList returns the top balances
func (h *Handler) GetRichList(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.economy.TopRich(r.Context(), n)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}
