package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/reports"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 📢 社区天气报告 Handler
// =============================================================================

// ReportsHandler serves the community weather report endpoints: submit,
// list, upvote, and AI-clarify.
type ReportsHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

// NewReportsHandler creates a ReportsHandler.
func NewReportsHandler(service *reports.Service, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{service: service, logger: logger}
}

type submitReportRequest struct {
	LocationSlug string   `json:"locationSlug"`
	ReportType   string   `json:"reportType"`
	Severity     string   `json:"severity"`
	Description  string   `json:"description"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

// HandleSubmit handles POST /reports.
// @Summary 提交社区天气报告
// @Description 提交一条用户观测到的天气报告，并与缓存的提供商数据交叉验证
// @Tags 报告
// @Accept json
// @Produce json
// @Param body body submitReportRequest true "报告内容"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /reports [post]
func (h *ReportsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req submitReportRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	result, err := h.service.Submit(r.Context(), identity, reports.SubmitRequest{
		LocationSlug: req.LocationSlug,
		ReportType:   req.ReportType,
		Severity:     req.Severity,
		Description:  req.Description,
		Lat:          req.Lat,
		Lon:          req.Lon,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

// HandleList handles GET /reports?location&hours.
// @Summary 列出社区天气报告
// @Description 返回某位置近期、未过期的社区天气报告
// @Tags 报告
// @Produce json
// @Param location query string true "位置 slug"
// @Param hours query int false "时间窗口（小时）"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /reports [get]
func (h *ReportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			hours = n
		}
	}

	result, err := h.service.List(r.Context(), location, hours)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

type upvoteReportRequest struct {
	ReportID string `json:"reportId"`
}

// HandleUpvote handles POST /reports/upvote.
// @Summary 为报告点赞
// @Description 每个身份每份报告只能点赞一次
// @Tags 报告
// @Accept json
// @Produce json
// @Param body body upvoteReportRequest true "报告 ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /reports/upvote [post]
func (h *ReportsHandler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req upvoteReportRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.ReportID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "reportId is required", h.logger)
		return
	}

	identity := clientIdentity(r)
	result, err := h.service.Upvote(r.Context(), identity, req.ReportID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

type clarifyReportRequest struct {
	LocationSlug string `json:"locationSlug"`
	ReportType   string `json:"reportType"`
}

// HandleClarify handles POST /reports/clarify.
// @Summary 生成报告澄清问题
// @Description 针对报告类型生成 1-2 个 AI 澄清问题，模型不可用时回退为预设问题
// @Tags 报告
// @Accept json
// @Produce json
// @Param body body clarifyReportRequest true "澄清请求"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /reports/clarify [post]
func (h *ReportsHandler) HandleClarify(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req clarifyReportRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	identity := clientIdentity(r)
	result, err := h.service.Clarify(r.Context(), identity, reports.ClarifyRequest{
		LocationSlug: req.LocationSlug,
		ReportType:   req.ReportType,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}
