package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/suitability"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 🎯 活动适宜度规则 Handler
// =============================================================================

// SuitabilityHandler serves GET /suitability: the rule bundle the client and
// the chat orchestrator both evaluate activity suitability against.
type SuitabilityHandler struct {
	evaluator *suitability.Evaluator
	logger    *zap.Logger
}

// NewSuitabilityHandler creates a SuitabilityHandler.
func NewSuitabilityHandler(evaluator *suitability.Evaluator, logger *zap.Logger) *SuitabilityHandler {
	return &SuitabilityHandler{evaluator: evaluator, logger: logger}
}

// HandleRules handles GET /suitability[?key].
// @Summary 活动适宜度规则
// @Description 返回全部规则，或按 activity:<id>/category:<id> 键返回单条规则
// @Tags 适宜度
// @Produce json
// @Param key query string false "规则键，形如 activity:hiking 或 category:farming"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /suitability [get]
func (h *SuitabilityHandler) HandleRules(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key != "" && !suitability.KeyPattern.MatchString(key) {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid rule key", h.logger)
		return
	}

	rules, err := h.evaluator.Rules(r.Context(), key)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, map[string]any{"rules": rules})
}
