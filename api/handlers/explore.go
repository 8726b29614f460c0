package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/explore"
)

// =============================================================================
// 🔎 探索搜索 Handler
// =============================================================================

// ExploreHandler serves POST /explore/search: single-turn AI-assisted
// location search with a substring-search fallback.
type ExploreHandler struct {
	service *explore.Service
	logger  *zap.Logger
}

// NewExploreHandler creates an ExploreHandler.
func NewExploreHandler(service *explore.Service, logger *zap.Logger) *ExploreHandler {
	return &ExploreHandler{service: service, logger: logger}
}

type exploreRequest struct {
	Query string `json:"query"`
}

// HandleSearch handles POST /explore/search.
// @Summary AI 辅助位置搜索
// @Description 单轮、无工具调用历史的位置搜索，LLM 不可用时回退为子字符串匹配
// @Tags 探索
// @Accept json
// @Produce json
// @Param body body exploreRequest true "搜索请求"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /explore/search [post]
func (h *ExploreHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req exploreRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	resp, err := h.service.Search(r.Context(), identity, req.Query)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, resp)
}
