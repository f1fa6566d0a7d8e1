package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/gitfolio/backend/internal/config"
	"github.com/gitfolio/backend/internal/geo"
	"github.com/gitfolio/backend/internal/handlers"
	"github.com/gitfolio/backend/internal/logging"
	appMiddleware "github.com/gitfolio/backend/internal/middleware"
	"github.com/gitfolio/backend/internal/services"
	"github.com/gitfolio/backend/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := logging.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	regions, err := geo.LoadRegionTable(cfg.RegionsFile)
	if err != nil {
		logger.Warn("region table unavailable, all cities resolve through the secondary provider",
			zap.String("file", cfg.RegionsFile), zap.Error(err))
		regions = geo.NewRegionTable(nil)
	}

	// Record store: Mongo when configured, in-memory otherwise.
	var store services.RecordStore
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		mongoStore, err := services.NewMongoRecordService(ctx, cfg.MongoURI, cfg.MongoDB, logger)
		cancel()
		if err != nil {
			logger.Fatal("mongodb connection failed", zap.Error(err))
		}
		store = mongoStore
	} else {
		logger.Warn("MONGODB_URI not set, using in-memory record store")
		store = services.NewRecordService()
	}

	blobs, err := storage.NewBlobStore(afero.NewOsFs(), cfg.BlobDir)
	if err != nil {
		logger.Fatal("blob store init failed", zap.String("dir", cfg.BlobDir), zap.Error(err))
	}

	var gen services.GenerationClient
	if cfg.Generation.APIKey != "" {
		genService, err := services.NewGenerationService(cfg.Generation.APIKey,
			services.WithGenerationBaseURL(cfg.Generation.BaseURL),
			services.WithGenerationModels(cfg.Generation.TextModel, cfg.Generation.ImageModel),
		)
		if err != nil {
			logger.Fatal("generation client init failed", zap.Error(err))
		}
		gen = genService
	} else {
		logger.Warn("GENERATION_API_KEY not set, content generation disabled")
	}

	var primary services.RegionWeatherClient
	if cfg.Weather.PrimaryURL != "" {
		primary = services.NewHTTPRegionWeatherClient(cfg.Weather.PrimaryURL, cfg.Weather.PrimaryKey)
	}
	var secondary services.GeoWeatherClient
	if cfg.Weather.SecondaryURL != "" {
		secondary = services.NewHTTPGeoWeatherClient(cfg.Weather.SecondaryURL)
	}

	githubService := services.NewGitHubService(services.GitHubConfig{
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKeyPEM:  cfg.GitHub.PrivateKeyPEM,
	}, logger)
	contentService := services.NewContentService(gen, logger)
	weatherService := services.NewWeatherService(regions, primary, secondary, logger)
	newsService := services.NewNewsService(services.DefaultOutlets(cfg.News.FeedBaseURL), logger)

	pageService := services.NewPageService(
		store,
		githubService,
		contentService,
		gen,
		weatherService,
		newsService,
		blobs,
		services.NewFreshnessPolicy(),
		logger,
	)

	pageHandler := handlers.NewPageHandler(pageService)
	bookmarkHandler := handlers.NewBookmarkHandler(pageService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.BotDetect)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/pages", func(r chi.Router) {
			r.Post("/", pageHandler.GeneratePage)

			r.Route("/{username}", func(r chi.Router) {
				r.Get("/", pageHandler.GetPage)
				r.Delete("/", pageHandler.DeletePage)
				r.Post("/refresh", pageHandler.RefreshPage)
				r.Put("/bookmarks", bookmarkHandler.ReplaceBookmarks)
			})
		})
	})

	// Serve generated artwork.
	r.Handle("/blobs/*", http.StripPrefix("/blobs/", http.FileServer(http.Dir(cfg.BlobDir))))

	logger.Info("gitfolio API server starting", zap.String("address", cfg.ServerAddress))
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
