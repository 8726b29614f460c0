package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/geo"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 📍 位置目录 Handler
// =============================================================================

// LocationsHandler serves the location directory endpoints: listing,
// search, reverse-geocode lookup, and community-submitted additions.
type LocationsHandler struct {
	service *geo.Service
	logger  *zap.Logger
}

// NewLocationsHandler creates a LocationsHandler.
func NewLocationsHandler(service *geo.Service, logger *zap.Logger) *LocationsHandler {
	return &LocationsHandler{service: service, logger: logger}
}

// HandleList handles GET /locations[?slug][?tag][?mode].
// @Summary 位置目录
// @Description 按 slug 返回单个位置，按 tag 过滤，或以 tags/stats 聚合模式返回
// @Tags 位置
// @Produce json
// @Param slug query string false "位置 slug"
// @Param tag query string false "标签过滤"
// @Param mode query string false "tags 或 stats"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /locations [get]
func (h *LocationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.ListLocations(r.Context(), q.Get("slug"), q.Get("tag"), q.Get("mode"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

// HandleSearch handles GET /search.
// @Summary 位置搜索
// @Description 标签聚合、地理最近邻，或文本+标签组合搜索，支持分页
// @Tags 位置
// @Produce json
// @Param q query string false "搜索关键词"
// @Param tag query string false "标签过滤"
// @Param lat query number false "纬度（用于最近邻搜索）"
// @Param lon query number false "经度（用于最近邻搜索）"
// @Param mode query string false "搜索模式"
// @Param limit query int false "结果数量上限"
// @Param skip query int false "跳过的结果数"
// @Success 200 {object} Response
// @Router /search [get]
func (h *LocationsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := geo.SearchParams{
		Query: q.Get("q"),
		Tag:   q.Get("tag"),
		Mode:  q.Get("mode"),
	}
	if v := q.Get("lat"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.Lat = &f
		}
	}
	if v := q.Get("lon"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.Lon = &f
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := q.Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Skip = n
		}
	}

	result, err := h.service.Search(r.Context(), params)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

// HandleGeo handles GET /geo?lat&lon[&autoCreate].
// @Summary 反向地理位置查找
// @Description 返回坐标最近的已知位置，必要时自动创建一个新位置
// @Tags 位置
// @Produce json
// @Param lat query number true "纬度"
// @Param lon query number true "经度"
// @Param autoCreate query bool false "未找到邻近位置时是否自动创建"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /geo [get]
func (h *LocationsHandler) HandleGeo(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(w, r, h.logger)
	if !ok {
		return
	}
	autoCreate := r.URL.Query().Get("autoCreate") == "true"

	result, err := h.service.GeoLookup(r.Context(), lat, lon, autoCreate)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, result)
}

type addLocationRequest struct {
	Query string   `json:"query"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// HandleAdd handles POST /locations/add: either a free-text query that
// returns candidate matches to confirm, or direct coordinates that create
// (or reuse) a location immediately.
// @Summary 新增社区提交位置
// @Description 按查询词返回候选位置，或按坐标直接创建（或复用）一个位置
// @Tags 位置
// @Accept json
// @Produce json
// @Param body body addLocationRequest true "查询词或坐标"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Router /locations/add [post]
func (h *LocationsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req addLocationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.Lat != nil && req.Lon != nil {
		identity := clientIdentity(r)
		result, err := h.service.AddByCoords(r.Context(), identity, *req.Lat, *req.Lon)
		if err != nil {
			WriteServiceError(w, err, h.logger)
			return
		}
		WriteSuccess(w, result)
		return
	}

	if req.Query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "query or lat/lon is required", h.logger)
		return
	}

	result, err := h.service.AddBySearch(r.Context(), req.Query)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}
