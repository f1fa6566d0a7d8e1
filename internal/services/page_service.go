package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/models"
	"github.com/gitfolio/backend/internal/storage"
)

var defaultInterests = []string{"tech", "science"}

// PageService drives a page request end to end: resolve identity, load the
// record, create or update, evaluate freshness, refresh only what is stale,
// persist one merged update and return the record.
type PageService struct {
	store     RecordStore
	profiles  ProfileSource
	content   *ContentService
	gen       GenerationClient
	weather   *WeatherService
	news      *NewsService
	blobs     *storage.BlobStore
	freshness *FreshnessPolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewPageService(
	store RecordStore,
	profiles ProfileSource,
	content *ContentService,
	gen GenerationClient,
	weather *WeatherService,
	news *NewsService,
	blobs *storage.BlobStore,
	freshness *FreshnessPolicy,
	logger *zap.Logger,
) *PageService {
	return &PageService{
		store:     store,
		profiles:  profiles,
		content:   content,
		gen:       gen,
		weather:   weather,
		news:      news,
		blobs:     blobs,
		freshness: freshness,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock pins the orchestrator clock. Test hook.
func (s *PageService) SetClock(now func() time.Time) {
	s.now = now
}

// ServePage returns the up-to-date record for a username, generating it on
// the first-ever request. Lightweight callers (bots) get the cached record
// without a refresh pass.
func (s *PageService) ServePage(ctx context.Context, username string, lightweight bool) (*models.UserRecord, error) {
	identity := models.ResolveIdentity(username)

	rec, err := s.store.Get(ctx, identity)
	if errors.Is(err, ErrRecordNotFound) {
		return s.Generate(ctx, models.GeneratePageRequest{Username: username, Interests: defaultInterests})
	}
	if err != nil {
		return nil, err
	}

	if lightweight {
		return rec, nil
	}
	return s.refreshStale(ctx, rec), nil
}

// Generate performs a full first-time generation and creates the record.
// When another writer created the record in the meantime the same payload
// is reapplied as a merge, last write wins at the field level.
func (s *PageService) Generate(ctx context.Context, req models.GeneratePageRequest) (*models.UserRecord, error) {
	identity := models.ResolveIdentity(req.Username)
	interests := req.Interests
	if len(interests) == 0 {
		interests = defaultInterests
	}

	profile, err := s.profiles.GetProfile(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	bundle, err := s.content.GenerateBundle(ctx, profile, req.UserBio)
	if err != nil {
		return nil, err
	}

	city := req.City
	if city == "" {
		city = profile.User.Location
	}

	now := s.now().UTC()

	var weatherReport *models.WeatherReport
	var newsItems []models.NewsItem
	var bgURL, cardURL string

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		weatherReport = s.weather.Fetch(ctx, city)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		newsItems = s.news.Aggregate(ctx, interests)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		bgURL, cardURL = s.generateImages(ctx, identity, profile.User.Login)
		return nil
	})
	_ = p.Wait()

	rec := &models.UserRecord{
		Identity:              identity,
		Username:              req.Username,
		City:                  city,
		Interests:             interests,
		UserBio:               req.UserBio,
		Slug:                  newSlug(identity),
		GitHub:                &profile.User,
		Repos:                 profile.Repos,
		AIBio:                 bundle.Bio,
		AIProjectDescriptions: bundle.ProjectDescriptions,
		AIQuote:               &bundle.Quote,
		AIBackgroundURL:       bgURL,
		AICardImageURL:        cardURL,
		Skills:                bundle.Skills,
		Bookmarks:             defaultBookmarks(profile.User),
		CachedNews:            newsItems,
		CachedWeather:         weatherReport,
		Timestamps: models.Timestamps{
			TextGenerated:  now,
			NewsUpdated:    now,
			WeatherUpdated: now,
		},
	}
	if bgURL != "" || cardURL != "" {
		rec.Timestamps.ImageGenerated = now
	}

	created, err := s.store.Create(ctx, rec)
	if errors.Is(err, ErrRecordExists) {
		// Two first-time requests raced; reroute to the update path.
		s.logger.Info("record created concurrently, merging generation results", zap.String("identity", identity))
		return s.store.Update(ctx, identity, patchFromRecord(rec))
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ForceRefresh regenerates every category including images, keeping the
// last-known-good value for any category that cannot refresh.
func (s *PageService) ForceRefresh(ctx context.Context, username string) (*models.UserRecord, error) {
	identity := models.ResolveIdentity(username)

	rec, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, rec.Username)
	if err != nil {
		s.logger.Warn("profile refetch failed, reusing cached profile",
			zap.String("identity", identity), zap.Error(err))
		profile = cachedProfile(rec)
	}

	now := s.now().UTC()
	patch := models.RecordPatch{
		"github": &profile.User,
		"repos":  profile.Repos,
	}
	ts := map[string]interface{}{}

	var bundle *ContentBundle
	var weatherReport *models.WeatherReport
	var newsItems []models.NewsItem
	var bgURL, cardURL string

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		b, err := s.content.GenerateBundle(ctx, profile, rec.UserBio)
		if err != nil {
			s.logger.Warn("content regeneration failed, keeping cached content",
				zap.String("identity", identity), zap.Error(err))
			return nil
		}
		bundle = b
		return nil
	})
	p.Go(func(ctx context.Context) error {
		weatherReport = s.weather.Fetch(ctx, rec.City)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		newsItems = s.news.Aggregate(ctx, rec.Interests)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		bgURL, cardURL = s.generateImages(ctx, identity, profile.User.Login)
		return nil
	})
	_ = p.Wait()

	if bundle != nil {
		patch["aiBio"] = bundle.Bio
		patch["aiProjectDescriptions"] = bundle.ProjectDescriptions
		patch["aiQuote"] = bundle.Quote
		patch["skills"] = bundle.Skills
		ts["textGenerated"] = now
	}
	s.applyWeather(rec, patch, ts, weatherReport, now)
	s.applyNews(rec, patch, ts, newsItems, now)
	if bgURL != "" {
		patch["aiBackgroundUrl"] = bgURL
	}
	if cardURL != "" {
		patch["aiCardImageUrl"] = cardURL
	}
	if bgURL != "" || cardURL != "" {
		ts["imageGenerated"] = now
	}
	patch["timestamps"] = ts

	return s.store.Update(ctx, identity, patch)
}

// ReplaceBookmarks swaps the whole bookmark list, reindexed.
func (s *PageService) ReplaceBookmarks(ctx context.Context, username string, bookmarks []models.Bookmark) ([]models.Bookmark, error) {
	return s.store.ReplaceBookmarks(ctx, models.ResolveIdentity(username), bookmarks)
}

// Delete removes the record entirely. Idempotent.
func (s *PageService) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, models.ResolveIdentity(username))
}

// refreshStale refetches only the stale categories and persists them in one
// merged update. Any failure keeps the cached value; the read never fails.
func (s *PageService) refreshStale(ctx context.Context, rec *models.UserRecord) *models.UserRecord {
	weatherStale := s.freshness.IsStale(rec.Timestamps.WeatherUpdated, CategoryWeather)
	newsStale := s.freshness.IsStale(rec.Timestamps.NewsUpdated, CategoryNews)
	textStale := s.freshness.IsStale(rec.Timestamps.TextGenerated, CategoryText)
	imagesStale := s.freshness.IsStale(rec.Timestamps.ImageGenerated, CategoryImages)

	if !weatherStale && !newsStale && !textStale && !imagesStale {
		return rec
	}

	now := s.now().UTC()

	var weatherReport *models.WeatherReport
	var newsItems []models.NewsItem
	var bundle *ContentBundle
	var bgURL, cardURL string

	p := pool.New().WithContext(ctx)
	if weatherStale {
		p.Go(func(ctx context.Context) error {
			weatherReport = s.weather.Fetch(ctx, rec.City)
			return nil
		})
	}
	if newsStale {
		p.Go(func(ctx context.Context) error {
			newsItems = s.news.Aggregate(ctx, rec.Interests)
			return nil
		})
	}
	if textStale {
		p.Go(func(ctx context.Context) error {
			b, err := s.content.GenerateBundle(ctx, cachedProfile(rec), rec.UserBio)
			if err != nil {
				s.logger.Warn("content refresh failed, keeping cached content",
					zap.String("identity", rec.Identity), zap.Error(err))
				return nil
			}
			bundle = b
			return nil
		})
	}
	if imagesStale {
		p.Go(func(ctx context.Context) error {
			login := rec.Username
			if rec.GitHub != nil {
				login = rec.GitHub.Login
			}
			bgURL, cardURL = s.generateImages(ctx, rec.Identity, login)
			return nil
		})
	}
	_ = p.Wait()

	patch := models.RecordPatch{}
	ts := map[string]interface{}{}

	s.applyWeather(rec, patch, ts, weatherReport, now)
	if newsStale {
		s.applyNews(rec, patch, ts, newsItems, now)
	}
	if bundle != nil {
		patch["aiBio"] = bundle.Bio
		patch["aiProjectDescriptions"] = bundle.ProjectDescriptions
		patch["aiQuote"] = bundle.Quote
		patch["skills"] = bundle.Skills
		ts["textGenerated"] = now
	}
	if bgURL != "" {
		patch["aiBackgroundUrl"] = bgURL
	}
	if cardURL != "" {
		patch["aiCardImageUrl"] = cardURL
	}
	if bgURL != "" || cardURL != "" {
		ts["imageGenerated"] = now
	}

	if len(ts) == 0 && len(patch) == 0 {
		return rec
	}
	patch["timestamps"] = ts

	updated, err := s.store.Update(ctx, rec.Identity, patch)
	if err != nil {
		s.logger.Error("refresh persist failed, serving cached record",
			zap.String("identity", rec.Identity), zap.Error(err))
		return rec
	}
	return updated
}

// applyWeather records a fetched report into the pending patch. A
// fallback-tagged report never overwrites a real cached one; the cached
// value keeps serving and the timestamp stays so the next read retries.
func (s *PageService) applyWeather(rec *models.UserRecord, patch models.RecordPatch, ts map[string]interface{}, report *models.WeatherReport, now time.Time) {
	if report == nil {
		return
	}
	if report.Source == models.SourceFallback && rec.CachedWeather != nil {
		s.logger.Warn("weather refresh degraded, keeping cached value", zap.String("identity", rec.Identity))
		return
	}
	patch["cachedWeather"] = report
	ts["weatherUpdated"] = now
}

// applyNews records an aggregated batch into the pending patch. An empty
// batch never replaces a non-empty cache.
func (s *PageService) applyNews(rec *models.UserRecord, patch models.RecordPatch, ts map[string]interface{}, items []models.NewsItem, now time.Time) {
	if len(items) == 0 && len(rec.CachedNews) > 0 {
		s.logger.Warn("news refresh empty, keeping cached value", zap.String("identity", rec.Identity))
		return
	}
	patch["cachedNews"] = items
	ts["newsUpdated"] = now
}

// generateImages renders background and card art and persists them to the
// blob store. Failures degrade to empty refs; image generation is never
// fatal to a request.
func (s *PageService) generateImages(ctx context.Context, identity, login string) (bgURL, cardURL string) {
	if s.gen == nil || s.blobs == nil {
		return "", ""
	}
	if err := s.gen.Healthy(ctx); err != nil {
		s.logger.Warn("image backend unhealthy", zap.Error(err))
		return "", ""
	}

	now := s.now().UTC()

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		data, err := s.gen.GenerateImage(ctx, backgroundPrompt(login), 1792, 1024)
		if err != nil {
			s.logger.Warn("background generation failed", zap.String("identity", identity), zap.Error(err))
			return nil
		}
		key, err := s.blobs.Put(storage.Key("backgrounds", identity, "background", now), data, "image/png")
		if err != nil {
			s.logger.Warn("background persist failed", zap.String("identity", identity), zap.Error(err))
			return nil
		}
		bgURL = "/blobs/" + key
		return nil
	})
	p.Go(func(ctx context.Context) error {
		data, err := s.gen.GenerateImage(ctx, cardPrompt(login), 1200, 630)
		if err != nil {
			s.logger.Warn("card generation failed", zap.String("identity", identity), zap.Error(err))
			return nil
		}
		key, err := s.blobs.Put(storage.Key("cards", identity, "card", now), data, "image/png")
		if err != nil {
			s.logger.Warn("card persist failed", zap.String("identity", identity), zap.Error(err))
			return nil
		}
		cardURL = "/blobs/" + key
		return nil
	})
	_ = p.Wait()

	return bgURL, cardURL
}

func backgroundPrompt(login string) string {
	return fmt.Sprintf("Abstract wide banner artwork evoking software and creativity for developer %q, muted colors, no text.", login)
}

func cardPrompt(login string) string {
	return fmt.Sprintf("Social preview card background for developer %q, minimal geometric style, no text.", login)
}

// newSlug generates the public identifier once at creation; it is never
// regenerated.
func newSlug(identity string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return identity + "-" + suffix
}

func defaultBookmarks(user models.GitHubUser) []models.Bookmark {
	profileURL := user.HTMLURL
	if profileURL == "" {
		profileURL = "https://github.com/" + user.Login
	}
	return []models.Bookmark{
		{Name: "GitHub", URL: profileURL, Icon: "github"},
		{Name: "Repositories", URL: profileURL + "?tab=repositories", Icon: "book"},
		{Name: "Followers", URL: profileURL + "?tab=followers", Icon: "users"},
		{Name: "Gists", URL: "https://gist.github.com/" + user.Login, Icon: "code"},
	}
}

func cachedProfile(rec *models.UserRecord) *models.GitHubProfile {
	profile := &models.GitHubProfile{Repos: rec.Repos}
	if rec.GitHub != nil {
		profile.User = *rec.GitHub
	} else {
		profile.User = models.GitHubUser{Login: rec.Username}
	}
	return profile
}

// patchFromRecord turns a freshly generated record into a partial update for
// the create-race reroute. Slug is omitted (write-once) and created is left
// to the first writer.
func patchFromRecord(rec *models.UserRecord) models.RecordPatch {
	return models.RecordPatch{
		"username":              rec.Username,
		"city":                  rec.City,
		"interests":             rec.Interests,
		"userBio":               rec.UserBio,
		"github":                rec.GitHub,
		"repos":                 rec.Repos,
		"aiBio":                 rec.AIBio,
		"aiProjectDescriptions": rec.AIProjectDescriptions,
		"aiQuote":               rec.AIQuote,
		"aiBackgroundUrl":       rec.AIBackgroundURL,
		"aiCardImageUrl":        rec.AICardImageURL,
		"skills":                rec.Skills,
		"cachedNews":            rec.CachedNews,
		"cachedWeather":         rec.CachedWeather,
		"timestamps": map[string]interface{}{
			"textGenerated":  rec.Timestamps.TextGenerated,
			"imageGenerated": rec.Timestamps.ImageGenerated,
			"newsUpdated":    rec.Timestamps.NewsUpdated,
			"weatherUpdated": rec.Timestamps.WeatherUpdated,
		},
	}
}
