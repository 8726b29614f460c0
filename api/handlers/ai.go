package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/aisummary"
	"github.com/nyuchitech/mukoko-weather/internal/followup"
	"github.com/nyuchitech/mukoko-weather/internal/geo"
	"github.com/nyuchitech/mukoko-weather/internal/weather"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 🤖 AI 摘要与追问 Handler
// =============================================================================

// AIHandler serves POST /ai (tiered-cache weather narrative) and
// POST /ai/followup (single-turn location chat).
type AIHandler struct {
	weather  *weather.Pipeline
	summary  *aisummary.Generator
	followup *followup.Service
	locator  *geo.Service
	logger   *zap.Logger
}

// NewAIHandler creates an AIHandler.
func NewAIHandler(w *weather.Pipeline, summary *aisummary.Generator, fu *followup.Service, locator *geo.Service, logger *zap.Logger) *AIHandler {
	return &AIHandler{weather: w, summary: summary, followup: fu, locator: locator, logger: logger}
}

type aiRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HandleSummary handles POST /ai: fetches weather for the coordinates then
// generates (or serves a cached) AI narrative summary for that location.
// @Summary 生成 AI 天气摘要
// @Description 按坐标获取天气并生成（或复用缓存的）AI 叙述性摘要
// @Tags AI
// @Accept json
// @Produce json
// @Param body body aiRequest true "坐标"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /ai [post]
func (h *AIHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req aiRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid coordinates", h.logger)
		return
	}

	wr, err := h.weather.Fetch(r.Context(), req.Lat, req.Lon)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadGateway, types.ErrUpstreamError, "failed to fetch weather data", h.logger)
		return
	}

	var country string
	var tags []string
	if h.locator != nil {
		if lr, err := h.locator.ListLocations(r.Context(), wr.Slug, "", ""); err == nil && lr.Location != nil {
			country = lr.Location.Country
			tags = lr.Location.Tags
		}
	}

	summary, err := h.summary.Generate(r.Context(), wr.Slug, country, tags, wr.Data)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to generate summary", h.logger)
		return
	}

	WriteSuccess(w, summary)
}

// HandleFollowup handles POST /ai/followup: a single-turn chat answer
// scoped to one location's page, pre-seeded with its own AI summary.
// @Summary 位置页面追问
// @Description 在某个位置页面内，基于该位置的天气摘要回答单轮追问
// @Tags AI
// @Accept json
// @Produce json
// @Param body body followup.Request true "追问请求"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /ai/followup [post]
func (h *AIHandler) HandleFollowup(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req followup.Request
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	result, err := h.followup.Reply(r.Context(), identity, req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}
