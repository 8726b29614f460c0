// Package tiles proxies Tomorrow.io's weather map tile raster layers so the
// API key never reaches the browser. The origin, layer whitelist, and
// timestamp format are pinned to defend against SSRF.
package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const origin = "https://api.tomorrow.io"

// validLayers whitelists the only raster layers this proxy will forward.
var validLayers = map[string]bool{
	"precipitationIntensity": true,
	"temperature":            true,
	"windSpeed":              true,
	"cloudCover":             true,
	"humidity":               true,
}

var timestampPattern = regexp.MustCompile(`^(now|\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z)$`)

// Request is the validated parameters of GET /map-tiles.
type Request struct {
	Z         int
	X         int
	Y         int
	Layer     string
	Timestamp string
}

// Validate checks z range, layer whitelist, and timestamp format, matching
// the SSRF constraints the original proxy enforces.
func (r Request) Validate() error {
	if !validLayers[r.Layer] {
		return fmt.Errorf("tiles: invalid layer %q", r.Layer)
	}
	if r.Z < 1 || r.Z > 12 {
		return fmt.Errorf("tiles: zoom out of range")
	}
	if r.Timestamp == "" {
		r.Timestamp = "now"
	}
	if !timestampPattern.MatchString(r.Timestamp) {
		return fmt.Errorf("tiles: invalid timestamp")
	}
	return nil
}

// Tile is a fetched tile image ready to relay to the client.
type Tile struct {
	ContentType string
	Body        []byte
}

// Proxy fetches and relays Tomorrow.io map tiles, keeping the API key
// server-side.
type Proxy struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithBaseURL overrides the Tomorrow.io origin. Tests only.
func WithBaseURL(url string) Option {
	return func(p *Proxy) { p.baseURL = url }
}

// New creates a tile Proxy. apiKey may be empty; Fetch then always returns
// ErrUnavailable.
func New(apiKey string, logger *zap.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		apiKey:     apiKey,
		baseURL:    origin,
		httpClient: &http.Client{Timeout: 8 * time.Second},
		logger:     logger.With(zap.String("component", "tiles")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ErrUnavailable is returned when no Tomorrow.io key is configured.
var ErrUnavailable = fmt.Errorf("tiles: map service unavailable")

// Fetch retrieves the tile for req, or returns the upstream status code
// alongside a nil Tile when Tomorrow.io declined the request (429 or
// non-200), so the caller can relay that status verbatim.
func (p *Proxy) Fetch(ctx context.Context, req Request) (*Tile, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}
	if p.apiKey == "" {
		return nil, 0, ErrUnavailable
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = "now"
	}
	tileURL := fmt.Sprintf("%s/v4/map/tile/%d/%d/%d/%s/%s.png?apikey=%s",
		p.baseURL, req.Z, req.X, req.Y, req.Layer, timestamp, p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("tiles: build request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Warn("tile fetch failed", zap.Error(err))
		return nil, http.StatusBadGateway, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("tiles: read tile body: %w", err)
	}

	return &Tile{ContentType: "image/png", Body: body}, http.StatusOK, nil
}
