package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/plaid"
	"finboard/internal/services"
)

func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	token, err := s.deps.LinkTokens.CreateLinkToken(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Link token creation failed",
			log.FieldOperation, log.OpLinkToken,
			log.FieldError, err.Error())

		var apiErr *plaid.APIError
		switch {
		case errors.Is(err, plaid.ErrCredentialsMissing):
			writeError(w, http.StatusInternalServerError, "Missing Plaid credentials", nil)
		case errors.As(err, &apiErr):
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "Plaid API error",
				Status:  apiErr.Status,
				Details: errorDetails(apiErr),
			})
		default:
			writeError(w, http.StatusInternalServerError, "Server error", err)
		}
		return
	}

	logger.InfoContext(ctx, "Link token created", log.FieldOperation, log.OpLinkToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"link_token": token,
		"success":    true,
	})
}

// handleLinkTokenStatus reports credential presence without revealing them.
func (s *Server) handleLinkTokenStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "link-token endpoint is working",
		"method":      "Use POST to create a link token",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"credentials": s.deps.LinkTokens.CredentialStatus(),
	})
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.PublicToken) == "" {
		writeError(w, http.StatusBadRequest, "No public token provided", nil)
		return
	}

	// The public token is single use, so the sync runs to completion even if
	// the client goes away. Each Plaid call is bounded by the transport timeout.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.deps.Sync.ExchangeAndSync(ctx, req.PublicToken)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Exchange and sync failed",
			log.FieldOperation, log.OpExchange,
			log.FieldError, err.Error())
		switch {
		case errors.Is(err, core.ErrBadRequest):
			writeError(w, http.StatusBadRequest, "No public token provided", nil)
		case errors.Is(err, services.ErrExchangeFailed):
			writeError(w, http.StatusInternalServerError, "Token exchange failed", err)
		case errors.Is(err, services.ErrFetchFailed):
			writeError(w, http.StatusInternalServerError, "Failed to fetch accounts", err)
		default:
			writeError(w, http.StatusInternalServerError, "Server error", err)
		}
		return
	}

	s.invalidateOverview(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"accounts":     result.AccountsWritten,
		"transactions": result.TransactionsWritten,
		"message":      result.Message,
	})
}

// handleSync has no incremental sync behind it; it refreshes the dashboard
// cache and acknowledges.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.invalidateOverview(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Sync completed",
	})
}
