package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/weather"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 🌤️ 天气 Handler
// =============================================================================

// WeatherHandler serves GET /weather: the multi-provider fetch pipeline with
// cache-first lookup and nearest-known-location snapping.
type WeatherHandler struct {
	pipeline *weather.Pipeline
	logger   *zap.Logger
}

// NewWeatherHandler creates a WeatherHandler.
func NewWeatherHandler(pipeline *weather.Pipeline, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{pipeline: pipeline, logger: logger}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleWeather handles GET /weather?lat&lon.
// @Summary 获取天气数据
// @Description 按坐标返回当前天气，优先使用缓存，其次 Tomorrow.io，再次 Open-Meteo，最后季节性回退
// @Tags 天气
// @Produce json
// @Param lat query number true "纬度"
// @Param lon query number true "经度"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /weather [get]
func (h *WeatherHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseLatLon(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.pipeline.Fetch(r.Context(), lat, lon)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadGateway, types.ErrUpstreamError, "failed to fetch weather data", h.logger)
		return
	}

	w.Header().Set("X-Weather-Provider", result.Provider)
	if result.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	WriteSuccess(w, map[string]any{
		"slug":     result.Slug,
		"provider": result.Provider,
		"cached":   result.CacheHit,
		"data":     result.Data,
	})
}

// parseLatLon validates the lat/lon query parameters shared by several
// endpoints.
func parseLatLon(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (lat, lon float64, ok bool) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "lat and lon are required", logger)
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid lat", logger)
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid lon", logger)
		return 0, 0, false
	}
	return lat, lon, true
}
