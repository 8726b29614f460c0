package reports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func newTestService(st store.Gateway) *Service {
	return New(st, ratelimit.New(st), nil, nil, zap.NewNop())
}

func seedLocation(t *testing.T, st store.Gateway) {
	t.Helper()
	_, err := st.InsertOne(context.Background(), store.CollLocations, locationDoc{Slug: "harare", Name: "Harare", Lat: -17.8, Lon: 31.05})
	require.NoError(t, err)
}

func TestSubmit_RejectsUnknownReportType(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	_, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "tornado"})
	assert.Error(t, err)
}

func TestSubmit_RejectsUnknownLocation(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "nowhere", ReportType: "fog"})
	assert.Error(t, err)
}

func TestSubmit_DefaultsInvalidSeverityToModerate(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	result, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "fog", Severity: "catastrophic"})
	require.NoError(t, err)
	assert.Equal(t, int(SeverityTTL["moderate"].Seconds()), result.ExpiresIn)
}

func TestSubmit_TruncatesLongDescription(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}

	_, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "fog", Description: string(long)})
	require.NoError(t, err)

	var doc reportDoc
	err = st.FindOne(context.Background(), store.CollWeatherReports, bson.M{"locationSlug": "harare"}, &doc)
	require.NoError(t, err)
	assert.Len(t, doc.Description, maxDescription)
}

func TestSubmit_CrossValidatesAgainstCachedWeather(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	var cached weatherCacheDoc
	cached.LocationSlug = "harare"
	cached.Data.Current.WeatherCode = 95
	_, err := st.InsertOne(context.Background(), store.CollWeatherCache, cached)
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "thunderstorm"})
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestSubmit_RateLimitExceeded(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	for i := 0; i < submitRateLimit; i++ {
		_, err := svc.Submit(context.Background(), "9.9.9.9", SubmitRequest{LocationSlug: "harare", ReportType: "fog"})
		require.NoError(t, err)
	}

	_, err := svc.Submit(context.Background(), "9.9.9.9", SubmitRequest{LocationSlug: "harare", ReportType: "fog"})
	assert.Error(t, err)
}

func TestList_RequiresLocation(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.List(context.Background(), "", 24)
	assert.Error(t, err)
}

func TestList_ReturnsSubmittedReport(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	_, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "fog"})
	require.NoError(t, err)

	result, err := svc.List(context.Background(), "harare", 24)
	require.NoError(t, err)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "fog", result.Reports[0].ReportType)
	assert.Equal(t, "Harare", result.Reports[0].LocationName)
}

func TestUpvote_RejectsInvalidID(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.Upvote(context.Background(), "1.2.3.4", "not-an-object-id")
	assert.Error(t, err)
}

func TestUpvote_SucceedsOnce(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	submitted, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "fog"})
	require.NoError(t, err)

	result, err := svc.Upvote(context.Background(), "5.5.5.5", submitted.ID)
	require.NoError(t, err)
	assert.True(t, result.Upvoted)
}

func TestUpvote_RejectsDuplicateFromSameIdentity(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	submitted, err := svc.Submit(context.Background(), "1.2.3.4", SubmitRequest{LocationSlug: "harare", ReportType: "fog"})
	require.NoError(t, err)

	first, err := svc.Upvote(context.Background(), "5.5.5.5", submitted.ID)
	require.NoError(t, err)
	require.True(t, first.Upvoted)

	second, err := svc.Upvote(context.Background(), "5.5.5.5", submitted.ID)
	require.NoError(t, err)
	assert.False(t, second.Upvoted)
}

func TestClarify_RejectsUnknownReportType(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.Clarify(context.Background(), "1.2.3.4", ClarifyRequest{LocationSlug: "harare", ReportType: "tornado"})
	assert.Error(t, err)
}

func TestClarify_FallsBackWithoutLLM(t *testing.T) {
	st := memstore.New()
	seedLocation(t, st)
	svc := newTestService(st)

	result, err := svc.Clarify(context.Background(), "1.2.3.4", ClarifyRequest{LocationSlug: "harare", ReportType: "fog"})
	require.NoError(t, err)
	assert.Equal(t, fallbackQuestions("fog"), result.Questions)
}

func TestCrossValidate_LightRainNeedsPrecipOrCode(t *testing.T) {
	assert.True(t, crossValidate("light-rain", Snapshot{WeatherCode: ptrInt(61)}))
	assert.False(t, crossValidate("light-rain", Snapshot{WeatherCode: ptrInt(0)}))
}

func TestCrossValidate_EmptySnapshotNeverVerifies(t *testing.T) {
	assert.False(t, crossValidate("clear-skies", Snapshot{}))
}

func TestParseNumberedQuestions_ExtractsOrdinalLines(t *testing.T) {
	text := "Here are some questions:\n1. How bad is it?\n2. Is it getting worse?\nThanks!"
	questions := parseNumberedQuestions(text)
	require.Len(t, questions, 2)
	assert.Equal(t, "How bad is it?", questions[0])
	assert.Equal(t, "Is it getting worse?", questions[1])
}

func ptrInt(v int) *int { return &v }
