package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/geo"
	"github.com/gitfolio/backend/internal/models"
	"github.com/gitfolio/backend/internal/storage"
)

type fakeProfileSource struct {
	profile *models.GitHubProfile
	err     error
	calls   int
}

func (f *fakeProfileSource) GetProfile(ctx context.Context, username string) (*models.GitHubProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type pageFixture struct {
	svc      *PageService
	store    *RecordService
	profiles *fakeProfileSource
	gen      *fakeGenClient
	primary  *fakeRegionClient
	outlet   *fakeOutlet
	now      time.Time
}

func newPageFixture(t *testing.T) *pageFixture {
	t.Helper()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := NewRecordService()
	store.SetClock(clock)

	profiles := &fakeProfileSource{profile: &models.GitHubProfile{
		User: models.GitHubUser{
			Login:    "octocat",
			Name:     "The Octocat",
			Location: "Seoul",
			HTMLURL:  "https://github.com/octocat",
		},
		Repos: []models.GitHubRepo{
			{Name: "hello-world", Language: "Go"},
		},
	}}

	gen := &fakeGenClient{imageData: []byte("png-bytes")}
	logger := zap.NewNop()

	primary := &fakeRegionClient{report: &models.WeatherReport{Temperature: 28, Humidity: 60, Description: "Sunny"}}
	weather := NewWeatherService(
		geo.NewRegionTable(map[string]string{"Seoul": "1100000000"}),
		primary,
		&fakeGeoClient{},
		logger,
	)

	outlet := &fakeOutlet{name: "tech", topics: []string{"tech"}, items: newsItems("tech", "Go 1.30 released")}
	news := NewNewsService([]NewsOutlet{outlet}, logger)

	blobs, err := storage.NewBlobStore(afero.NewMemMapFs(), "blobs")
	require.NoError(t, err)

	svc := NewPageService(
		store,
		profiles,
		NewContentService(gen, logger),
		gen,
		weather,
		news,
		blobs,
		NewFreshnessPolicyAt(clock),
		logger,
	)
	svc.SetClock(clock)

	return &pageFixture{
		svc:      svc,
		store:    store,
		profiles: profiles,
		gen:      gen,
		primary:  primary,
		outlet:   outlet,
		now:      now,
	}
}

var slugPattern = regexp.MustCompile(`^octocat-[a-z0-9]{6}$`)

func TestServePageFirstRequestGenerates(t *testing.T) {
	f := newPageFixture(t)

	rec, err := f.svc.ServePage(context.Background(), "OctoCat", false)
	require.NoError(t, err)

	require.Equal(t, "octocat", rec.Identity)
	require.Regexp(t, slugPattern, rec.Slug)
	require.Equal(t, "Generated biography.", rec.AIBio)
	require.Equal(t, "Seoul", rec.City)

	require.Len(t, rec.Bookmarks, 4)
	for i, b := range rec.Bookmarks {
		require.Equal(t, i, b.Order)
		require.NotEmpty(t, b.ID)
		require.NotEmpty(t, b.URL)
	}
	require.Equal(t, "GitHub", rec.Bookmarks[0].Name)

	require.NotNil(t, rec.CachedWeather)
	require.Equal(t, models.SourcePrimary, rec.CachedWeather.Source)
	require.Len(t, rec.CachedNews, 1)
	require.NotEmpty(t, rec.AIBackgroundURL)
	require.NotEmpty(t, rec.AICardImageURL)

	require.True(t, rec.Timestamps.TextGenerated.Equal(f.now))
	require.True(t, rec.Timestamps.ImageGenerated.Equal(f.now))
	require.True(t, rec.Timestamps.NewsUpdated.Equal(f.now))
	require.True(t, rec.Timestamps.WeatherUpdated.Equal(f.now))

	// The record is persisted under the resolved identity.
	stored, err := f.store.Get(context.Background(), "octocat")
	require.NoError(t, err)
	require.Equal(t, rec.Slug, stored.Slug)
}

func TestServePageFreshRecordUntouched(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)
	require.Equal(t, 1, f.profiles.calls)

	second, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	require.Equal(t, first.Slug, second.Slug)
	require.Equal(t, 1, f.profiles.calls, "fresh record must not regenerate")
	require.True(t, second.Timestamps.WeatherUpdated.Equal(first.Timestamps.WeatherUpdated))
}

func TestServePageBotSkipsRefresh(t *testing.T) {
	f := newPageFixture(t)

	_, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	// Make weather stale, then serve as a bot.
	staleAt := f.now.Add(-31 * time.Minute)
	_, err = f.store.Update(context.Background(), "octocat", models.RecordPatch{
		"timestamps": map[string]interface{}{"weatherUpdated": staleAt},
	})
	require.NoError(t, err)
	f.primary.calls = 0

	rec, err := f.svc.ServePage(context.Background(), "octocat", true)
	require.NoError(t, err)

	require.Equal(t, 0, f.primary.calls, "bot traffic must not trigger a refresh")
	require.True(t, rec.Timestamps.WeatherUpdated.Equal(staleAt))
}

func TestServePageRefreshesOnlyStaleWeather(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	_, err = f.store.Update(context.Background(), "octocat", models.RecordPatch{
		"timestamps": map[string]interface{}{"weatherUpdated": f.now.Add(-31 * time.Minute)},
	})
	require.NoError(t, err)

	f.primary.report = &models.WeatherReport{Temperature: 3, Humidity: 80, Description: "Snow"}
	genCallsBefore := len(f.gen.calls)
	f.outlet.calls = 0

	rec, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	require.Equal(t, float64(3), rec.CachedWeather.Temperature)
	require.True(t, rec.Timestamps.WeatherUpdated.Equal(f.now))
	// Fresh categories stay untouched.
	require.Equal(t, 0, f.outlet.calls)
	require.Equal(t, genCallsBefore, len(f.gen.calls))
	require.True(t, rec.Timestamps.NewsUpdated.Equal(first.Timestamps.NewsUpdated))
}

func TestServePageDegradedWeatherKeepsCache(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)
	require.Equal(t, models.SourcePrimary, first.CachedWeather.Source)

	staleAt := f.now.Add(-31 * time.Minute)
	_, err = f.store.Update(context.Background(), "octocat", models.RecordPatch{
		"timestamps": map[string]interface{}{"weatherUpdated": staleAt},
	})
	require.NoError(t, err)

	// Both providers fail: the fetch degrades to the static default, which
	// must not overwrite a real cached report.
	f.primary.report = nil
	f.primary.err = context.DeadlineExceeded

	rec, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	require.Equal(t, models.SourcePrimary, rec.CachedWeather.Source)
	require.True(t, rec.Timestamps.WeatherUpdated.Equal(staleAt))
}

func TestGenerateConcurrentCreateReroutesToUpdate(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.Generate(context.Background(), models.GeneratePageRequest{Username: "octocat"})
	require.NoError(t, err)

	// A second full generation for the same identity lands as a merge; the
	// original slug survives.
	second, err := f.svc.Generate(context.Background(), models.GeneratePageRequest{
		Username: "octocat",
		UserBio:  "I build things",
	})
	require.NoError(t, err)

	require.Equal(t, first.Slug, second.Slug)
	require.Equal(t, "I build things", second.UserBio)
	require.True(t, second.Timestamps.Created.Equal(first.Timestamps.Created))
}

func TestGenerateFailsWhenGenerationUnavailable(t *testing.T) {
	f := newPageFixture(t)
	f.gen.healthErr = context.DeadlineExceeded

	_, err := f.svc.Generate(context.Background(), models.GeneratePageRequest{Username: "octocat"})
	require.ErrorIs(t, err, ErrGenerationUnavailable)

	_, err = f.store.Get(context.Background(), "octocat")
	require.ErrorIs(t, err, ErrRecordNotFound, "no record may be persisted on fatal generation failure")
}

func TestForceRefreshRegeneratesEverything(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	f.primary.report = &models.WeatherReport{Temperature: 9, Humidity: 70, Description: "Rain"}
	f.outlet.items = newsItems("tech", "Fresh headline")

	rec, err := f.svc.ForceRefresh(context.Background(), "octocat")
	require.NoError(t, err)

	require.Equal(t, first.Slug, rec.Slug)
	require.Equal(t, float64(9), rec.CachedWeather.Temperature)
	require.Equal(t, "Fresh headline", rec.CachedNews[0].Title)
	require.Equal(t, 2, f.profiles.calls)
}

func TestForceRefreshKeepsCacheWhenUpstreamsFail(t *testing.T) {
	f := newPageFixture(t)

	first, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)
	require.Equal(t, models.SourcePrimary, first.CachedWeather.Source)
	require.Len(t, first.CachedNews, 1)

	later := f.now.Add(time.Hour)
	f.svc.SetClock(func() time.Time { return later })
	f.store.SetClock(func() time.Time { return later })

	// Weather chain degrades to the static default and every outlet fails;
	// the forced refresh must keep serving the last-known-good values.
	f.primary.report = nil
	f.primary.err = context.DeadlineExceeded
	f.outlet.items = nil
	f.outlet.err = context.DeadlineExceeded

	rec, err := f.svc.ForceRefresh(context.Background(), "octocat")
	require.NoError(t, err)

	require.Equal(t, models.SourcePrimary, rec.CachedWeather.Source)
	require.Equal(t, first.CachedWeather.Temperature, rec.CachedWeather.Temperature)
	require.Len(t, rec.CachedNews, 1)
	require.Equal(t, first.CachedNews[0].Title, rec.CachedNews[0].Title)
	require.True(t, rec.Timestamps.WeatherUpdated.Equal(first.Timestamps.WeatherUpdated))
	require.True(t, rec.Timestamps.NewsUpdated.Equal(first.Timestamps.NewsUpdated))
	// Text regeneration still went through.
	require.True(t, rec.Timestamps.TextGenerated.Equal(later))
}

func TestForceRefreshMissingRecord(t *testing.T) {
	f := newPageFixture(t)

	_, err := f.svc.ForceRefresh(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteResolvesIdentity(t *testing.T) {
	f := newPageFixture(t)

	_, err := f.svc.ServePage(context.Background(), "octocat", false)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), " OctoCat "))

	_, err = f.store.Get(context.Background(), "octocat")
	require.ErrorIs(t, err, ErrRecordNotFound)
}
