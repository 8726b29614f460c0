package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/status"
)

// =============================================================================
// 🩺 系统状态仪表盘 Handler
// =============================================================================

// StatusHandler serves GET /status: the live dependency dashboard, distinct
// from /health's liveness probe.
type StatusHandler struct {
	service *status.Service
	logger  *zap.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(service *status.Service, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{service: service, logger: logger}
}

// HandleStatus handles GET /status.
// @Summary 系统状态仪表盘
// @Description 运行全部依赖的实时检查（数据库、上游天气提供商、AI、缓存新鲜度）并汇总整体状态
// @Tags 状态
// @Produce json
// @Success 200 {object} Response
// @Router /status [get]
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	report := h.service.Run(r.Context())
	WriteSuccess(w, report)
}
