package tiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequest_ValidateRejectsUnknownLayer(t *testing.T) {
	req := Request{Z: 4, X: 1, Y: 1, Layer: "lava", Timestamp: "now"}
	assert.Error(t, req.Validate())
}

func TestRequest_ValidateRejectsZoomOutOfRange(t *testing.T) {
	req := Request{Z: 13, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"}
	assert.Error(t, req.Validate())

	req.Z = 0
	assert.Error(t, req.Validate())
}

func TestRequest_ValidateRejectsMalformedTimestamp(t *testing.T) {
	req := Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "tomorrow"}
	assert.Error(t, req.Validate())
}

func TestRequest_ValidateAcceptsNowAndISO8601(t *testing.T) {
	req := Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"}
	assert.NoError(t, req.Validate())

	req.Timestamp = "2026-07-30T12:00:00Z"
	assert.NoError(t, req.Validate())
}

func TestProxy_FetchWithoutKeyReturnsUnavailable(t *testing.T) {
	p := New("", zap.NewNop())
	_, _, err := p.Fetch(context.Background(), Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProxy_FetchRejectsInvalidRequestBeforeNetworkCall(t *testing.T) {
	p := New("key", zap.NewNop())
	_, _, err := p.Fetch(context.Background(), Request{Z: 99, X: 1, Y: 1, Layer: "temperature"})
	assert.Error(t, err)
}

func TestProxy_FetchRelaysNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New("key", zap.NewNop(), WithBaseURL(srv.URL))
	tile, status, err := p.Fetch(context.Background(), Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"})
	require.NoError(t, err)
	assert.Nil(t, tile)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestProxy_FetchReturnsTileBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake-png-bytes"))
	}))
	defer srv.Close()

	p := New("key", zap.NewNop(), WithBaseURL(srv.URL))
	tile, status, err := p.Fetch(context.Background(), Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"})
	require.NoError(t, err)
	require.NotNil(t, tile)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "image/png", tile.ContentType)
	assert.Equal(t, []byte("fake-png-bytes"), tile.Body)
}

func TestProxy_FetchReturnsBadGatewayOnNetworkError(t *testing.T) {
	p := New("key", zap.NewNop(), WithBaseURL("http://127.0.0.1:1"))
	tile, status, err := p.Fetch(context.Background(), Request{Z: 4, X: 1, Y: 1, Layer: "temperature", Timestamp: "now"})
	require.NoError(t, err)
	assert.Nil(t, tile)
	assert.Equal(t, http.StatusBadGateway, status)
}
