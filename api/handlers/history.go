package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/history"
)

// =============================================================================
// 📈 历史天气 Handler
// =============================================================================

// HistoryHandler serves POST /history/analyze (server-aggregated stats plus
// a narrative LLM pass) and GET /history (raw recorded readings).
type HistoryHandler struct {
	service *history.Service
	logger  *zap.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(service *history.Service, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{service: service, logger: logger}
}

type analyzeHistoryRequest struct {
	Location   string   `json:"location"`
	Days       int      `json:"days"`
	Activities []string `json:"activities"`
}

// HandleAnalyze handles POST /history/analyze.
// @Summary 历史天气分析
// @Description 聚合近期记录的天气数据并生成叙述性分析，按位置、窗口和数据指纹缓存
// @Tags 历史
// @Accept json
// @Produce json
// @Param body body analyzeHistoryRequest true "分析请求"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /history/analyze [post]
func (h *HistoryHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req analyzeHistoryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	result, err := h.service.Analyze(r.Context(), identity, history.AnalyzeRequest{
		Location:   req.Location,
		Days:       req.Days,
		Activities: req.Activities,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

// HandleList handles GET /history?location&days.
// @Summary 原始历史天气记录
// @Description 返回某位置在指定窗口内记录的原始天气读数，按时间倒序
// @Tags 历史
// @Produce json
// @Param location query string true "位置 slug"
// @Param days query int false "天数窗口 (1-365)"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /history [get]
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}

	result, err := h.service.List(r.Context(), history.ListRequest{Location: location, Days: days})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}
