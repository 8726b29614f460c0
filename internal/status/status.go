// Package status runs the live checks backing the system status dashboard:
// datastore reachability, upstream provider latency, and cache freshness.
package status

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// Health is the condition of a single dependency.
type Health string

const (
	HealthOperational Health = "operational"
	HealthDegraded    Health = "degraded"
	HealthDown        Health = "down"
)

// Check is the result of probing one dependency.
type Check struct {
	Name      string `json:"name"`
	Status    Health `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Message   string `json:"message,omitempty"`
}

// Report is the full dashboard payload.
type Report struct {
	Status Health  `json:"status"`
	Checks []Check `json:"checks"`
}

// Service runs the dashboard's dependency checks.
type Service struct {
	st               store.Gateway
	llm              *llmclient.Client
	httpClient       *http.Client
	tomorrowIOKey    string
	tomorrowBaseURL  string
	openMeteoBaseURL string
	logger           *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTomorrowBaseURL overrides the Tomorrow.io endpoint used for the live
// ping. Tests only.
func WithTomorrowBaseURL(base string) Option {
	return func(s *Service) { s.tomorrowBaseURL = base }
}

// WithOpenMeteoBaseURL overrides the Open-Meteo endpoint used for the live
// ping. Tests only.
func WithOpenMeteoBaseURL(base string) Option {
	return func(s *Service) { s.openMeteoBaseURL = base }
}

// New creates a status Service. tomorrowIOKey may be empty, in which case
// the Tomorrow.io check reports degraded rather than attempting a call.
func New(st store.Gateway, llm *llmclient.Client, tomorrowIOKey string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		st:               st,
		llm:              llm,
		httpClient:       &http.Client{Timeout: 6 * time.Second},
		tomorrowIOKey:    tomorrowIOKey,
		tomorrowBaseURL:  "https://api.tomorrow.io/v4/weather/realtime",
		openMeteoBaseURL: "https://api.open-meteo.com/v1/forecast",
		logger:           logger.With(zap.String("component", "status")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes all six checks and aggregates an overall report. Each check
// runs independently; a failure in one never prevents the others from
// completing.
func (s *Service) Run(ctx context.Context) Report {
	checks := []Check{
		s.checkMongo(ctx),
		s.checkTomorrowIO(ctx),
		s.checkOpenMeteo(ctx),
		s.checkAnthropic(ctx),
		s.checkWeatherCache(ctx),
		s.checkAISummaryCache(ctx),
	}

	overall := HealthOperational
	for _, c := range checks {
		if c.Status == HealthDown {
			overall = HealthDown
			break
		}
		if c.Status == HealthDegraded {
			overall = HealthDegraded
		}
	}
	return Report{Status: overall, Checks: checks}
}

func timed(f func() error) (time.Duration, error) {
	start := time.Now()
	err := f()
	return time.Since(start), err
}

func (s *Service) checkMongo(ctx context.Context) Check {
	name := "MongoDB Atlas"
	if s.st == nil {
		return Check{Name: name, Status: HealthDown, Message: "datastore not configured"}
	}
	var count int64
	latency, err := timed(func() error {
		var innerErr error
		count, innerErr = s.st.Count(ctx, store.CollLocations, nil)
		return innerErr
	})
	if err != nil {
		return Check{Name: name, Status: HealthDown, LatencyMs: latency.Milliseconds(), Message: err.Error()}
	}
	status := HealthOperational
	if latency > 2*time.Second {
		status = HealthDegraded
	}
	return Check{Name: name, Status: status, LatencyMs: latency.Milliseconds(), Message: jsonCount(count)}
}

func (s *Service) checkTomorrowIO(ctx context.Context) Check {
	name := "Tomorrow.io API"
	if s.tomorrowIOKey == "" {
		return Check{Name: name, Status: HealthDegraded, Message: "no API key configured"}
	}
	latency, err := timed(func() error {
		req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet,
			s.tomorrowBaseURL+"?location=-17.8252,31.0335&apikey="+s.tomorrowIOKey, nil)
		if buildErr != nil {
			return buildErr
		}
		resp, doErr := s.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errStatus(resp.StatusCode)
		}
		return nil
	})
	return httpCheckResult(name, latency, err)
}

func (s *Service) checkOpenMeteo(ctx context.Context) Check {
	name := "Open-Meteo API"
	latency, err := timed(func() error {
		req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet,
			s.openMeteoBaseURL+"?latitude=-17.8252&longitude=31.0335&current_weather=true", nil)
		if buildErr != nil {
			return buildErr
		}
		resp, doErr := s.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errStatus(resp.StatusCode)
		}
		return nil
	})
	return httpCheckResult(name, latency, err)
}

func (s *Service) checkAnthropic(ctx context.Context) Check {
	name := "Anthropic AI"
	if s.llm == nil {
		return Check{Name: name, Status: HealthDegraded, Message: "LLM client not configured"}
	}
	latency, err := timed(func() error {
		_, innerErr := s.llm.Complete(ctx, "Reply with OK.", []llmclient.Message{{Role: "user", Text: "ping"}}, nil, 4)
		return innerErr
	})
	if err != nil {
		return Check{Name: name, Status: HealthDegraded, LatencyMs: latency.Milliseconds(), Message: err.Error()}
	}
	status := HealthOperational
	if latency > 4*time.Second {
		status = HealthDegraded
	}
	return Check{Name: name, Status: status, LatencyMs: latency.Milliseconds()}
}

func (s *Service) checkWeatherCache(ctx context.Context) Check {
	return s.checkCacheFreshness(ctx, "Weather Cache", store.CollWeatherCache)
}

func (s *Service) checkAISummaryCache(ctx context.Context) Check {
	return s.checkCacheFreshness(ctx, "AI Summary Cache", store.CollAISummaries)
}

func (s *Service) checkCacheFreshness(ctx context.Context, name, collection string) Check {
	if s.st == nil {
		return Check{Name: name, Status: HealthDown, Message: "datastore not configured"}
	}
	var count int64
	latency, err := timed(func() error {
		var innerErr error
		count, innerErr = s.st.Count(ctx, collection, freshFilter())
		return innerErr
	})
	if err != nil {
		return Check{Name: name, Status: HealthDegraded, LatencyMs: latency.Milliseconds(), Message: err.Error()}
	}
	return Check{Name: name, Status: HealthOperational, LatencyMs: latency.Milliseconds(), Message: jsonCount(count)}
}

func httpCheckResult(name string, latency time.Duration, err error) Check {
	if err != nil {
		return Check{Name: name, Status: HealthDown, LatencyMs: latency.Milliseconds(), Message: err.Error()}
	}
	status := HealthOperational
	if latency > 3*time.Second {
		status = HealthDegraded
	}
	return Check{Name: name, Status: status, LatencyMs: latency.Milliseconds()}
}
