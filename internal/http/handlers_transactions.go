package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/log"
)

type updateTransactionRequest struct {
	ID           json.Number      `json:"id"`
	Name         *string          `json:"name"`
	UserCategory *string          `json:"user_category"`
	Amount       *decimal.Decimal `json:"amount"`
}

func (req updateTransactionRequest) edit() core.TransactionEdit {
	edit := core.TransactionEdit{Amount: req.Amount}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		edit.Name = &name
	}
	if req.UserCategory != nil {
		cat := strings.TrimSpace(*req.UserCategory)
		edit.UserCategory = &cat
	}
	return edit
}

// handleUpdateTransaction serves PUT /transactions/{id} and PUT /transactions
// with the id in the body. A path id wins over a body id.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rawID := r.PathValue("id")
	if rawID == "" {
		rawID = req.ID.String()
	}
	if rawID == "" {
		writeError(w, http.StatusBadRequest, "Transaction ID is required", nil)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid transaction ID", nil)
		return
	}

	tx, err := s.deps.Transactions.Update(ctx, id, req.edit())
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnknownCategory):
			writeError(w, http.StatusBadRequest, "Unknown category", err)
		case errors.Is(err, core.ErrBadRequest):
			writeError(w, http.StatusBadRequest, "Invalid transaction update", err)
		case errors.Is(err, core.ErrNotFound):
			writeError(w, http.StatusNotFound, "Transaction not found", nil)
		default:
			log.FromContext(ctx).ErrorContext(ctx, "Transaction update failed",
				log.FieldOperation, log.OpUpdate,
				"id", id,
				log.FieldError, err.Error())
			writeError(w, http.StatusInternalServerError, "Failed to update transaction", err)
		}
		return
	}

	s.invalidateOverview(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"transaction": tx,
	})
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
