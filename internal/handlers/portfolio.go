package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/nami-portfolio/internal/errors"
	"github.com/tropicaldog17/nami-portfolio/internal/models"
	"github.com/tropicaldog17/nami-portfolio/internal/services"
)

type PortfolioHandler struct {
	service services.PortfolioService
	logger  *zap.Logger
}

func NewPortfolioHandler(service services.PortfolioService, logger *zap.Logger) *PortfolioHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortfolioHandler{service: service, logger: logger}
}

// Register mounts the portfolio routes under /api/users/{userId}
func (h *PortfolioHandler) Register(r *mux.Router) {
	u := r.PathPrefix("/api/users/{userId}").Subrouter()
	u.HandleFunc("/balances", h.HandleBalances).Methods(http.MethodGet)
	u.HandleFunc("/balances/{asset}/lock", h.HandleLock).Methods(http.MethodPost)
	u.HandleFunc("/balances/{asset}/unlock", h.HandleUnlock).Methods(http.MethodPost)
	u.HandleFunc("/summary", h.HandleSummary).Methods(http.MethodGet)
	u.HandleFunc("/transactions", h.HandleListTransactions).Methods(http.MethodGet)
	u.HandleFunc("/transactions", h.HandleRecordTransaction).Methods(http.MethodPost)
	u.HandleFunc("/history", h.HandleHistory).Methods(http.MethodGet)
	u.HandleFunc("/performance", h.HandlePerformance).Methods(http.MethodGet)
}

// HandleBalances lists a user's balances.
// @Summary List balances
// @Description Per-asset available, locked, average cost and realized P&L
// @Tags balances
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} models.Balance
// @Failure 400 {string} string "Invalid request"
// @Failure 500 {string} string "Internal server error"
// @Router /users/{userId}/balances [get]
func (h *PortfolioHandler) HandleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.GetAssetBalances(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// HandleSummary values the portfolio at current prices.
// @Summary Portfolio summary
// @Description Total value, P&L, allocation and diversification score
// @Tags portfolio
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} models.PortfolioSummary
// @Failure 502 {string} string "Pricing unavailable"
// @Failure 500 {string} string "Internal server error"
// @Router /users/{userId}/summary [get]
func (h *PortfolioHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetPortfolioSummary(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleListTransactions returns a page of the ledger, newest first.
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Param userId path string true "User ID"
// @Param assets query string false "Comma-separated asset symbols"
// @Param kinds query string false "Comma-separated kinds (BUY, SELL, ...)"
// @Param statuses query string false "Comma-separated statuses"
// @Param start_date query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param end_date query string false "End date (YYYY-MM-DD or RFC3339)"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} models.TransactionPage
// @Failure 400 {string} string "Invalid request"
// @Router /users/{userId}/transactions [get]
func (h *PortfolioHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, err := h.service.GetTransactionHistory(r.Context(), mux.Vars(r)["userId"], filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type recordResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Balance     *models.Balance     `json:"balance"`
}

// HandleRecordTransaction records a completed transaction and updates the balance.
// @Summary Record completed transaction
// @Description Inserts a COMPLETED entry, or completes a stored PENDING one named by id
// @Tags transactions
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param transaction body models.Transaction true "Transaction"
// @Success 201 {object} recordResponse
// @Failure 400 {string} string "Invalid request"
// @Failure 409 {string} string "Already completed or concurrent update"
// @Failure 422 {string} string "Would make the balance negative"
// @Router /users/{userId}/transactions [post]
func (h *PortfolioHandler) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if kind, ok := models.ParseKind(string(tx.Kind)); ok {
		tx.Kind = kind
	}
	// the ledger stamps entries itself; a client-chosen created_at could
	// slot an outflow ahead of lots it was never matched against
	tx.Status = ""
	tx.CompletedAt = nil
	tx.CreatedAt = time.Time{}

	balance, err := h.service.RecordCompletedTransaction(r.Context(), mux.Vars(r)["userId"], &tx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{Transaction: &tx, Balance: balance})
}

// HandleHistory returns the approximated daily portfolio value.
// @Summary Portfolio value history
// @Tags portfolio
// @Produce json
// @Param userId path string true "User ID"
// @Param days query int false "Number of days (default 30)"
// @Success 200 {array} models.HistoryPoint
// @Router /users/{userId}/history [get]
func (h *PortfolioHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	history, err := h.service.GetPortfolioHistory(r.Context(), mux.Vars(r)["userId"], days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandlePerformance returns period change, Sharpe ratio and diversification.
// @Summary Portfolio performance
// @Tags portfolio
// @Produce json
// @Param userId path string true "User ID"
// @Param days query int false "Number of days (default 30)"
// @Success 200 {object} models.PerformanceReport
// @Router /users/{userId}/performance [get]
func (h *PortfolioHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.service.GetPerformance(r.Context(), mux.Vars(r)["userId"], days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type fundsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleLock reserves part of the available balance.
// @Summary Lock funds
// @Tags balances
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param asset path string true "Asset symbol"
// @Param request body fundsRequest true "Amount"
// @Success 200 {object} models.Balance
// @Failure 422 {string} string "Insufficient available funds"
// @Router /users/{userId}/balances/{asset}/lock [post]
func (h *PortfolioHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.service.LockFunds)
}

// HandleUnlock releases previously locked funds.
// @Summary Unlock funds
// @Tags balances
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param asset path string true "Asset symbol"
// @Param request body fundsRequest true "Amount"
// @Success 200 {object} models.Balance
// @Failure 422 {string} string "Insufficient locked funds"
// @Router /users/{userId}/balances/{asset}/unlock [post]
func (h *PortfolioHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.service.UnlockFunds)
}

type fundsFunc func(ctx context.Context, userID, asset string, amount decimal.Decimal) (*models.Balance, error)

func (h *PortfolioHandler) moveFunds(w http.ResponseWriter, r *http.Request, move fundsFunc) {
	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	vars := mux.Vars(r)
	balance, err := move(r.Context(), vars["userId"], vars["asset"], req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// writeError maps the error taxonomy onto HTTP status codes
func (h *PortfolioHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperrors.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperrors.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case apperrors.IsInvariant(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case apperrors.IsUpstream(err):
		h.logger.Warn("upstream failure", zap.Error(err))
		http.Error(w, "Pricing unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, apperrors.NewValidation("days", "must be a positive integer")
	}
	return days, nil
}

// parseTime accepts a date or an RFC3339 instant. A bare end date covers
// the whole day.
func parseTime(field, raw string, endOfDay bool) (*time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	return nil, apperrors.NewValidation(field, "must be YYYY-MM-DD or RFC3339")
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFilter(r *http.Request) (*models.TransactionFilter, error) {
	q := r.URL.Query()
	filter := &models.TransactionFilter{}

	for _, a := range splitList(q.Get("assets")) {
		filter.Assets = append(filter.Assets, strings.ToUpper(a))
	}
	for _, k := range splitList(q.Get("kinds")) {
		kind, ok := models.ParseKind(k)
		if !ok {
			return nil, apperrors.NewValidation("kinds", "unknown kind "+k)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	for _, s := range splitList(q.Get("statuses")) {
		status := models.TransactionStatus(strings.ToUpper(s))
		if status != models.StatusPending && status != models.StatusCompleted {
			return nil, apperrors.NewValidation("statuses", "unknown status "+s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	var err error
	if raw := q.Get("start_date"); raw != "" {
		if filter.StartDate, err = parseTime("start_date", raw, false); err != nil {
			return nil, err
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if filter.EndDate, err = parseTime("end_date", raw, true); err != nil {
			return nil, err
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, apperrors.NewValidation("limit", "must be an integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil {
			return nil, apperrors.NewValidation("offset", "must be an integer")
		}
	}
	return filter, nil
}
