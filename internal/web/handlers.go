package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/elys-network/yieldbalancer/internal/analyzer"
	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/performance"
	"github.com/elys-network/yieldbalancer/internal/sentiment"
	"github.com/elys-network/yieldbalancer/internal/state"
	"github.com/elys-network/yieldbalancer/internal/strategy"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/gorilla/mux"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 100
	maxBodyBytes      = 1 << 20
)

type optimizeRequest struct {
	RiskTier        string   `json:"risk_tier"`
	PreferredAssets []string `json:"preferred_assets,omitempty"`
}

type optimizeResponse struct {
	RiskTier        types.RiskTier              `json:"risk_tier"`
	PreferredAssets []string                    `json:"preferred_assets"`
	Allocations     []types.PortfolioAllocation `json:"allocations"`
	ExpectedAPY     float64                     `json:"expected_apy"`
	RiskScore       float64                     `json:"risk_score"`
	NumPools        int                         `json:"num_pools"`
}

type strategyRequest struct {
	ID                     string  `json:"id,omitempty"`
	HighSentimentThreshold float64 `json:"high_sentiment_threshold"`
	LowSentimentThreshold  float64 `json:"low_sentiment_threshold"`
	HighRiskPool           string  `json:"high_risk_pool"`
	LowRiskPool            string  `json:"low_risk_pool"`
	IsActive               *bool   `json:"is_active,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	cycleInfo := map[string]any{
		"current_cycle":    0,
		"last_cycle_time":  nil,
		"actions_executed": 0,
		"last_errors":      0,
	}
	if recent := s.cycles.Recent(1); len(recent) > 0 {
		c := recent[0]
		cycleInfo = map[string]any{
			"current_cycle":    c.CycleNumber,
			"last_cycle_time":  c.Timestamp,
			"actions_executed": len(c.Receipts),
			"last_errors":      len(c.Errors),
		}
		hasErrors = len(c.Errors) > 0
	}

	dbStatus := "disabled"
	if s.store != nil {
		dbStatus = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Health check database ping failed")
			dbStatus = "unreachable"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSONResponse(w, statusCode, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]any{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(s.started).Seconds()),
		},
		"engine": map[string]any{
			"database":   dbStatus,
			"pools":      len(s.catalog.Snapshot()),
			"cycle_info": cycleInfo,
		},
	})
}

// handleOptimize computes an allocation for the requested tier over the current catalog.
// It does not change the engine's active policy.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tier, err := types.ParseRiskTier(req.RiskTier)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	policy := config.NewPolicy(tier)
	if len(req.PreferredAssets) > 0 {
		policy = policy.WithPreferredAssets(req.PreferredAssets)
	}

	allocations := analyzer.Optimize(s.catalog.Snapshot(), policy)
	stats := analyzer.PortfolioStats(allocations)
	s.writeJSONResponse(w, http.StatusOK, optimizeResponse{
		RiskTier:        policy.RiskTier,
		PreferredAssets: policy.PreferredAssets,
		Allocations:     allocations,
		ExpectedAPY:     stats.ExpectedAPY,
		RiskScore:       stats.RiskScore,
		NumPools:        stats.NumPools,
	})
}

func (s *Server) handleGetSentiment(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.sentiment.Current())
}

func (s *Server) handleIngestSentiment(w http.ResponseWriter, r *http.Request) {
	var reading types.SentimentReading
	if err := decodeJSON(w, r, &reading); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.sentiment.Ingest(r.Context(), reading)
	switch {
	case errors.Is(err, sentiment.ErrInsufficientConfidence):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		s.writeJSONResponse(w, http.StatusAccepted, s.sentiment.Current())
	}
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := s.strategies.Create(r.Context(), types.Strategy{
		ID:                     req.ID,
		HighSentimentThreshold: req.HighSentimentThreshold,
		LowSentimentThreshold:  req.LowSentimentThreshold,
		HighRiskPool:           req.HighRiskPool,
		LowRiskPool:            req.LowRiskPool,
		IsActive:               active,
	})
	switch {
	case errors.Is(err, strategy.ErrInvalidStrategy):
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, strategy.ErrDuplicateStrategy):
		s.writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to create strategy")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to create strategy")
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]any{
		"id":     created.ID,
		"status": "created",
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	list := s.strategies.List()
	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"strategies": list,
		"count":      len(list),
	})
}

func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, err := s.performance.Report(r.Context(), id)
	if errors.Is(err, performance.ErrUnknownStrategy) {
		s.writeErrorResponse(w, http.StatusNotFound, "No performance recorded for "+id)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("strategy_id", id).Msg("Failed to build performance report")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to build performance report")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, report)
}

func (s *Server) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := defaultCycleLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxCycleLimit {
			limit = parsed
		}
	}

	var cycles []types.CycleSnapshot
	if s.store != nil {
		var err error
		cycles, err = s.store.GetRecentCycles(r.Context(), limit)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to get recent cycles")
			s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
			return
		}
	} else {
		cycles = s.cycles.Recent(limit)
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

func (s *Server) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		recent := s.cycles.Recent(1)
		if len(recent) == 0 {
			s.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
			return
		}
		s.writeJSONResponse(w, http.StatusOK, recent[0])
		return
	}

	cycle, err := s.store.GetLatestCycle(r.Context())
	if errors.Is(err, state.ErrNoCycles) {
		s.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get latest cycle")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, cycle)
}

func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence is disabled")
		return
	}
	summary, err := s.store.GetPortfolioSummary(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get portfolio summary")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve analytics")
		return
	}
	cycleMetrics, err := s.store.GetCycleMetrics(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get cycle metrics")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve analytics")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"summary": summary,
		"cycles":  cycleMetrics,
	})
}
