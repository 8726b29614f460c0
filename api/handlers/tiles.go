package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/tiles"
	"github.com/nyuchitech/mukoko-weather/types"
)

// =============================================================================
// 🗺️ 地图瓦片代理 Handler
// =============================================================================

// TilesHandler serves GET /map-tiles, keeping the Tomorrow.io API key off
// the client.
type TilesHandler struct {
	proxy  *tiles.Proxy
	logger *zap.Logger
}

// NewTilesHandler creates a TilesHandler.
func NewTilesHandler(proxy *tiles.Proxy, logger *zap.Logger) *TilesHandler {
	return &TilesHandler{proxy: proxy, logger: logger}
}

// HandleTile handles GET /map-tiles?z&x&y&layer&timestamp.
// @Summary 天气地图瓦片代理
// @Description 代理 Tomorrow.io 的栅格天气图层瓦片，避免向客户端暴露 API key
// @Tags 地图
// @Produce png
// @Param z query int true "缩放级别 (1-12)"
// @Param x query int true "瓦片列"
// @Param y query int true "瓦片行"
// @Param layer query string true "图层名"
// @Param timestamp query string false "now 或 ISO-8601 时间戳"
// @Success 200 {file} binary
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Router /map-tiles [get]
func (h *TilesHandler) HandleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	z, errZ := strconv.Atoi(q.Get("z"))
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errZ != nil || errX != nil || errY != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "z, x, y must be integers", h.logger)
		return
	}

	req := tiles.Request{Z: z, X: x, Y: y, Layer: q.Get("layer"), Timestamp: q.Get("timestamp")}

	tile, status, err := h.proxy.Fetch(r.Context(), req)
	if err != nil {
		if errors.Is(err, tiles.ErrUnavailable) {
			WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "map tile service unavailable", h.logger)
			return
		}
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	if tile == nil {
		WriteErrorMessage(w, status, types.ErrUpstreamError, "failed to fetch map tile", h.logger)
		return
	}

	w.Header().Set("Content-Type", tile.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300, s-maxage=300")
	w.Header().Set("X-Map-Layer", req.Layer)
	w.WriteHeader(http.StatusOK)
	w.Write(tile.Body)
}
