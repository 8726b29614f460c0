package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/chat"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 💬 聊天 Handler
// =============================================================================

// ChatHandler serves POST /chat: the tool-using, multi-location assistant.
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	limiter      *ratelimit.Limiter
	logger       *zap.Logger
}

const (
	chatRateLimitMax    = 20
	chatRateLimitWindow = time.Hour
)

// NewChatHandler creates a ChatHandler.
func NewChatHandler(orchestrator *chat.Orchestrator, limiter *ratelimit.Limiter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, limiter: limiter, logger: logger}
}

// HandleChat handles POST /chat.
// @Summary 多轮天气助手对话
// @Description 具备工具调用能力的多位置天气助手
// @Tags 聊天
// @Accept json
// @Produce json
// @Param body body chat.Request true "对话请求"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req chat.Request
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	res, err := h.limiter.Check(r.Context(), identity, "chat", chatRateLimitMax, chatRateLimitWindow)
	if err != nil || !res.Allowed {
		WriteErrorMessage(w, http.StatusTooManyRequests, types.ErrRateLimited, "rate limit exceeded", h.logger)
		return
	}

	resp, err := h.orchestrator.Handle(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, resp)
}
