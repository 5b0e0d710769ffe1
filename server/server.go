package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DiscBox/config"
	"DiscBox/core/audio"
	"DiscBox/core/importer"
	"DiscBox/core/source"
	"DiscBox/logger"
	"DiscBox/repository"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	ensureDirExists(cfg.MusicDir)
	ensureDirExists(cfg.ImagesDir)

	store, err := repository.NewStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open data directory", logger.ErrorField(err))
	}

	artistRepo := repository.NewFSArtistRepository(store)
	albumRepo := repository.NewFSAlbumRepository(store)

	watcher, err := repository.NewWatcher(artistRepo, store.ArtistsDir())
	if err != nil {
		logger.Fatal("failed to create data watcher", logger.ErrorField(err))
	}
	watcher.Start()

	transcoder := audio.NewTranscoder(cfg.FFmpegPath, cfg.AudioBitrate)
	sourceClient := source.NewClient(cfg.YtdlpPath, transcoder)
	supervisor := importer.NewSupervisor(albumRepo, sourceClient, sourceClient, cfg.MusicDir)

	apiHandler := NewAPIHandler(artistRepo, albumRepo, supervisor, cfg)
	router := newRouter(apiHandler, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", logger.ErrorField(err))
	}

	watcher.Stop()

	// Cancel running imports and wait for their final writes to land.
	if err := supervisor.Shutdown(ctx); err != nil {
		logger.Warn("import jobs did not finish before shutdown deadline", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// newRouter wires every route onto a fresh router.
func newRouter(apiHandler *APIHandler, cfg *config.Config) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Auth endpoint
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Artist endpoints
	router.HandleFunc("/api/artists", apiHandler.GetArtistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/artists", apiHandler.AuthMiddleware(apiHandler.CreateArtistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/artists/{id}", apiHandler.GetArtistHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/artists/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateArtistHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/artists/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteArtistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/artists/{id}/albums", apiHandler.GetArtistAlbumsHandler).Methods(http.MethodGet)

	// Album endpoints
	router.HandleFunc("/api/albums", apiHandler.AuthMiddleware(apiHandler.CreateAlbumHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/albums/{id}", apiHandler.GetAlbumHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/albums/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateAlbumHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/albums/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteAlbumHandler)).Methods(http.MethodDelete)

	// Track endpoints
	router.HandleFunc("/api/albums/{id}/tracks", apiHandler.AuthMiddleware(apiHandler.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/albums/{id}/tracks/{track_id}", apiHandler.AuthMiddleware(apiHandler.UpdateTrackHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/albums/{id}/tracks/{track_id}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)

	// Import endpoints
	router.HandleFunc("/api/albums/{id}/import", apiHandler.AuthMiddleware(apiHandler.ImportTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/imports", apiHandler.AuthMiddleware(apiHandler.ListImportsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/imports/{id}", apiHandler.AuthMiddleware(apiHandler.GetImportHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/imports/{id}", apiHandler.AuthMiddleware(apiHandler.CancelImportHandler)).Methods(http.MethodDelete)

	// Maintenance endpoints
	router.HandleFunc("/api/index/rebuild", apiHandler.AuthMiddleware(apiHandler.RebuildIndexHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/upload/image", apiHandler.AuthMiddleware(apiHandler.UploadImageHandler)).Methods(http.MethodPost)

	// Media serving
	musicFileServer := http.FileServer(http.Dir(cfg.MusicDir))
	router.PathPrefix("/stream/").Handler(http.StripPrefix("/stream/", musicFileServer))
	imagesFileServer := http.FileServer(http.Dir(cfg.ImagesDir))
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", imagesFileServer))

	return router
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	}
}
