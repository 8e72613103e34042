package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/middleware/trace"
)

type transactionResponse struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      core.FormatAmount(tx.Amount),
		Type:        tx.Type.String(),
		Date:        tx.Date,
		CreatedAt:   tx.CreatedAt,
	}
}

type summaryResponse struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	NetBalance    string `json:"netBalance"`
}

// createTransactionRequest accepts amount as either a JSON string or number;
// clients send both forms.
type createTransactionRequest struct {
	Description string `json:"description"`
	Amount      any    `json:"amount"`
	Type        string `json:"type"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, ok := s.listCache.Get(listCacheKey)
	if !ok {
		gen := s.cacheGen.Load()
		var err error
		txs, err = s.ledger.List(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "List transactions error",
				applog.FieldOperation, applog.OpList,
				applog.FieldRequestID, trace.GetRequestID(r.Context()),
				"error", err)
			respondError(w, http.StatusInternalServerError, "Failed to fetch transactions")
			return
		}
		// Only cache if no mutation landed while we were reading.
		if s.cacheGen.Load() == gen {
			s.listCache.Set(listCacheKey, txs)
		}
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	desc := sanitizeInput(req.Description)
	amountStr := stringValue(req.Amount)
	if desc == "" || amountStr == "" || req.Type == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: description, amount, type")
		return
	}

	typ := core.TransactionType(req.Type)
	if !typ.Valid() {
		respondError(w, http.StatusBadRequest, `Type must be either "income" or "expense"`)
		return
	}

	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Amount must be a positive number")
		return
	}

	tx, err := s.ledger.Create(r.Context(), desc, amount, typ)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to create transaction")
		return
	}

	s.invalidateCaches()

	slog.InfoContext(r.Context(), "Transaction created",
		"transaction_id", tx.ID,
		"amount", core.FormatAmount(tx.Amount),
		"type", tx.Type)

	respondJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	if err := s.ledger.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Failed to delete transaction")
		return
	}

	s.invalidateCaches()

	slog.InfoContext(r.Context(), "Transaction deleted", "transaction_id", id)

	respondJSON(w, http.StatusOK, messageResponse{Message: "Transaction deleted successfully"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.summaryCache.Get(summaryCacheKey)
	if !ok {
		gen := s.cacheGen.Load()
		var err error
		summary, err = s.ledger.Summary(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Summary error",
				applog.FieldOperation, applog.OpSummary,
				applog.FieldRequestID, trace.GetRequestID(r.Context()),
				"error", err)
			respondError(w, http.StatusInternalServerError, "Failed to compute summary")
			return
		}
		if s.cacheGen.Load() == gen {
			s.summaryCache.Set(summaryCacheKey, summary)
		}
	}

	respondJSON(w, http.StatusOK, summaryResponse{
		TotalIncome:   core.FormatAmount(summary.TotalIncome),
		TotalExpenses: core.FormatAmount(summary.TotalExpenses),
		NetBalance:    core.FormatAmount(summary.NetBalance),
	})
}

// writeServiceError maps ledger errors to status codes. Every error kind maps
// to exactly one status; anything unrecognized is a store failure and stays
// generic so internals never leak.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, genericMsg string) {
	switch {
	case errors.Is(err, core.ErrEmptyDescription):
		respondError(w, http.StatusBadRequest, "Description must not be empty")
	case errors.Is(err, core.ErrDescriptionTooLong):
		respondError(w, http.StatusBadRequest, "Description must not exceed 255 characters")
	case errors.Is(err, core.ErrInvalidType):
		respondError(w, http.StatusBadRequest, `Type must be either "income" or "expense"`)
	case errors.Is(err, core.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "Amount must be a positive number")
	case errors.Is(err, core.ErrNotFound):
		respondError(w, http.StatusNotFound, "Transaction not found")
	default:
		slog.ErrorContext(r.Context(), "Ledger operation failed",
			applog.FieldRequestID, trace.GetRequestID(r.Context()),
			"error", err)
		respondError(w, http.StatusInternalServerError, genericMsg)
	}
}
