package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clearlink-hq/hermes/pkg/audit"
	"clearlink-hq/hermes/pkg/pipeline"
	"clearlink-hq/hermes/pkg/sanitizer"
	"clearlink-hq/hermes/pkg/server/middleware"
	"clearlink-hq/hermes/pkg/settings"
	"clearlink-hq/hermes/pkg/telemetry/logging"
)

const maxBodyBytes = 64 << 10

// cleanRequest is the POST /v1/clean body.
type cleanRequest struct {
	URL   string `json:"url"`
	Owner string `json:"owner"`

	// Optional per-call overrides of the owner's stored preferences.
	RemoveReferralMarketing *bool `json:"remove_referral_marketing,omitempty"`
	AllowAIFallback         *bool `json:"allow_ai_fallback,omitempty"`
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if len(req.URL) > s.cfg.Sanitizer.MaxURLLength {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "url_too_long",
			"url exceeds the configured length limit")
		return
	}

	ctx := logging.WithOwner(r.Context(), req.Owner)
	result, err := s.deps.Pipeline.Clean(ctx, &pipeline.Request{
		URL:                     req.URL,
		Owner:                   req.Owner,
		RemoveReferralMarketing: req.RemoveReferralMarketing,
		AllowAIFallback:         req.AllowAIFallback,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "cleaning failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "internal_error",
			"cleaning failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "history is disabled")
		return
	}

	query, ok := historyQuery(w, r)
	if !ok {
		return
	}

	records, err := s.deps.History.Query(r.Context(), query)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history query failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"history query failed")
		return
	}
	total, err := s.deps.History.Count(r.Context(), query)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history count failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"history query failed")
		return
	}

	if records == nil {
		records = []*audit.CleaningRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "history is disabled")
		return
	}

	owner := r.URL.Query().Get("owner")
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			middleware.WriteError(w, http.StatusBadRequest, "bad_request",
				"days must be between 1 and 365")
			return
		}
		days = n
	}

	stats, err := s.deps.History.StatsByDay(r.Context(), owner, days)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "stats query failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"stats query failed")
		return
	}
	if stats == nil {
		stats = []audit.DayStat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": stats})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "settings are disabled")
		return
	}
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", "owner is required")
		return
	}

	prefs, err := s.deps.Settings.PreferencesFor(r.Context(), owner)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading preferences failed", "owner", owner, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"loading preferences failed")
		return
	}
	rules, err := s.deps.Settings.CustomRulesFor(r.Context(), owner)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading custom rules failed", "owner", owner, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"loading custom rules failed")
		return
	}

	patterns := make([]string, len(rules))
	for i, rule := range rules {
		patterns[i] = rule.Pattern
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences":  prefs,
		"custom_rules": patterns,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "settings are disabled")
		return
	}

	var prefs settings.Preferences
	if !decodeBody(w, r, &prefs) {
		return
	}
	if prefs.Owner == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", "owner is required")
		return
	}

	if err := s.deps.Settings.UpdatePreferences(r.Context(), &prefs); err != nil {
		s.logger.ErrorContext(r.Context(), "saving preferences failed", "owner", prefs.Owner, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"saving preferences failed")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// ruleRequest is the body for custom rule addition.
type ruleRequest struct {
	Owner   string `json:"owner"`
	Pattern string `json:"pattern"`
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "settings are disabled")
		return
	}

	var req ruleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Owner == "" || req.Pattern == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request",
			"owner and pattern are required")
		return
	}

	rule, err := s.deps.Settings.AddCustomRule(r.Context(), req.Owner, req.Pattern)
	if err != nil {
		var patternErr *sanitizer.PatternError
		switch {
		case errors.As(err, &patternErr):
			middleware.WriteError(w, http.StatusBadRequest, "invalid_pattern", err.Error())
		case errors.Is(err, settings.ErrDuplicateRule):
			middleware.WriteError(w, http.StatusConflict, "duplicate_rule",
				"the owner already has this rule")
		default:
			s.logger.ErrorContext(r.Context(), "adding custom rule failed", "owner", req.Owner, "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
				"adding custom rule failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"owner":   rule.Owner,
		"pattern": rule.Pattern,
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "settings are disabled")
		return
	}

	owner := r.URL.Query().Get("owner")
	pattern := r.URL.Query().Get("pattern")
	if owner == "" || pattern == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request",
			"owner and pattern are required")
		return
	}

	err := s.deps.Settings.RemoveCustomRule(r.Context(), owner, pattern)
	switch {
	case errors.Is(err, settings.ErrRuleNotFound):
		middleware.WriteError(w, http.StatusNotFound, "rule_not_found",
			"the owner has no such rule")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "removing custom rule failed", "owner", owner, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "storage_error",
			"removing custom rule failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// historyQuery parses the /v1/history query string. Timestamps are
// RFC 3339.
func historyQuery(w http.ResponseWriter, r *http.Request) (*audit.Query, bool) {
	q := &audit.Query{Owner: r.URL.Query().Get("owner")}

	for name, dst := range map[string]**time.Time{
		"since": &q.Since,
		"until": &q.Until,
	} {
		if v := r.URL.Query().Get(name); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "bad_request",
					name+" must be an RFC 3339 timestamp")
				return nil, false
			}
			*dst = &ts
		}
	}

	if v := r.URL.Query().Get("only_changed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "bad_request",
				"only_changed must be a boolean")
			return nil, false
		}
		q.OnlyChanged = b
	}

	for name, dst := range map[string]*int{
		"limit":  &q.Limit,
		"offset": &q.Offset,
	} {
		if v := r.URL.Query().Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				middleware.WriteError(w, http.StatusBadRequest, "bad_request",
					name+" must be a non-negative integer")
				return nil, false
			}
			*dst = n
		}
	}

	return q, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request",
			"request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
