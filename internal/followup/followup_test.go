package followup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func newTestService() *Service {
	st := memstore.New()
	logger := zap.NewNop()
	return New(ratelimit.New(st), nil, nil, breaker.NewRegistry(logger, nil), logger)
}

func TestReply_RejectsEmptyMessage(t *testing.T) {
	svc := newTestService()
	_, err := svc.Reply(context.Background(), "1.2.3.4", Request{Message: "   "})
	assert.Error(t, err)
}

func TestReply_RejectsOverlongMessage(t *testing.T) {
	svc := newTestService()
	_, err := svc.Reply(context.Background(), "1.2.3.4", Request{Message: strings.Repeat("a", maxMessageLen+1)})
	assert.Error(t, err)
}

func TestReply_FallsBackWithoutLLM(t *testing.T) {
	svc := newTestService()
	result, err := svc.Reply(context.Background(), "1.2.3.4", Request{
		Message: "Will it rain tomorrow?", LocationName: "Harare", LocationSlug: "harare",
	})
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.NotEmpty(t, result.Response)
}

func TestReply_RateLimitExceeded(t *testing.T) {
	svc := newTestService()
	for i := 0; i < RateLimitMax; i++ {
		_, err := svc.Reply(context.Background(), "9.9.9.9", Request{Message: "hi", LocationSlug: "harare"})
		require.NoError(t, err)
	}
	_, err := svc.Reply(context.Background(), "9.9.9.9", Request{Message: "hi", LocationSlug: "harare"})
	assert.Error(t, err)
}

func TestBuildSystemPrompt_SubstitutesPlaceholders(t *testing.T) {
	svc := newTestService()
	system := svc.buildSystemPrompt(context.Background(), Request{
		LocationName: "Harare", LocationSlug: "harare",
		WeatherSummary: "Sunny and warm.", Activities: []string{"hiking"}, Season: "summer",
	})
	assert.Contains(t, system, "Harare")
	assert.Contains(t, system, "harare")
	assert.NotContains(t, system, "{locationName}")
}

func TestBuildSystemPrompt_DefaultsMissingFields(t *testing.T) {
	svc := newTestService()
	system := svc.buildSystemPrompt(context.Background(), Request{})
	assert.Contains(t, system, "none selected")
	assert.Contains(t, system, "unknown")
}
