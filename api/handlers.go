package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"tariff-engine/core/duty"
	"tariff-engine/core/rate"
	"tariff-engine/core/search"
	"tariff-engine/internal/errors"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	atomic.AddInt64(&s.errorCount, 1)

	status := http.StatusInternalServerError
	switch {
	case errors.IsType(err, errors.TypeInput):
		status = http.StatusBadRequest
	case errors.IsType(err, errors.TypeNotFound):
		status = http.StatusNotFound
	case errors.IsType(err, errors.TypeCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.IsType(err, errors.TypeTimeout):
		status = http.StatusGatewayTimeout
	case errors.IsType(err, errors.TypeResolution), errors.IsType(err, errors.TypeUpstream):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int64{
		"requests": atomic.LoadInt64(&s.requestCount),
		"errors":   atomic.LoadInt64(&s.errorCount),
	})
}

func searchOptions(r *http.Request) search.Options {
	q := r.URL.Query()
	opts := search.Options{
		TenDigitOnly: q.Get("ten_digit_only") == "true",
		Chapter:      q.Get("chapter"),
		FuzzyEdits:   1,
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}
	if v, err := strconv.Atoi(q.Get("fuzzy_edits")); err == nil && v >= 0 {
		opts.FuzzyEdits = v
	}
	return opts
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	result, err := s.engine.Search(r.Context(), q, searchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	items, err := s.engine.GetByCode(r.Context(), code, searchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type parseRateRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleParseRate(w http.ResponseWriter, r *http.Request) {
	var req parseRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Input("invalid JSON body"))
		return
	}

	parsed := rate.Parse(req.Text)
	if parsed == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"parsed": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"parsed": parsed})
}

type computeDutyRequest struct {
	RateText     string           `json:"rate_text,omitempty"`
	Components   []rate.Component `json:"components,omitempty"`
	UnitPriceUSD decimal.Decimal  `json:"unit_price_usd"`
	Quantity     decimal.Decimal  `json:"quantity,omitempty"`
	WeightKg     decimal.Decimal  `json:"weight_kg,omitempty"`
}

func (s *Server) handleComputeDuty(w http.ResponseWriter, r *http.Request) {
	var req computeDutyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Input("invalid JSON body"))
		return
	}

	components := req.Components
	if len(components) == 0 && req.RateText != "" {
		parsed := rate.Parse(req.RateText)
		if parsed == nil {
			s.writeError(w, errors.Input(fmt.Sprintf("rate text %q is unparseable", req.RateText)))
			return
		}
		components = parsed.Components
	}
	if len(components) == 0 {
		s.writeError(w, errors.Input("either components or rate_text is required"))
		return
	}

	result := duty.Compute(duty.Input{
		Components:   components,
		UnitPriceUSD: req.UnitPriceUSD,
		Quantity:     req.Quantity,
		WeightKg:     req.WeightKg,
	})
	s.writeJSON(w, http.StatusOK, result)
}
