package http

import (
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/log"
)

var templateFuncs = template.FuncMap{
	"usd": core.FormatUSD,
	"nullusd": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "n/a"
		}
		return core.FormatUSD(d.Decimal)
	},
	"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ov, err := s.loadOverview(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Dashboard load failed", log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": core.Categories})
}

type dashboardPage struct {
	Overview   core.Overview
	Categories []string
	Error      string
	Generated  time.Time
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	page := dashboardPage{Categories: core.Categories, Generated: time.Now()}
	ov, err := s.loadOverview(ctx)
	if err != nil {
		// Render the shell anyway so the user can still link a bank.
		logger.ErrorContext(ctx, "Dashboard load failed", log.FieldError, err.Error())
		page.Error = "Could not load your data. Try again shortly."
	}
	page.Overview = ov

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", page); err != nil {
		logger.ErrorContext(ctx, "Dashboard template execution failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err.Error())
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
