package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MixGrid/cache"
	"MixGrid/config"
	"MixGrid/core/auth"
	"MixGrid/core/editor"
	"MixGrid/db"
	"MixGrid/logger"
	"MixGrid/repository"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	auth.Configure(cfg.JWTSecret, cfg.JWTExpiryHours)

	watcher, err := config.NewWatcher(cfg, ".env")
	if err != nil {
		logger.Warn("config watcher disabled", logger.ErrorField(err))
	} else {
		defer watcher.Close()
	}

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis")

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	entryRepo := repository.NewMySQLEntryRepository(db.DB)
	songRepo := repository.NewGormSongRepository(db.GormDB)

	editorCache := cache.NewEditorCache(time.Duration(cfg.EditorSnapshotTTLMin) * time.Minute)
	editors := editor.NewManager(songRepo, entryRepo, editorCache,
		float64(cfg.EditorCanvasWidth), float64(cfg.EditorCanvasHeight),
		time.Duration(cfg.EditorTickMillis)*time.Millisecond)
	go editors.Hub().Run()

	apiHandler := NewAPIHandler(songRepo, entryRepo, userRepo, editors, cfg)

	router := mux.NewRouter()

	// CORS
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// 歌曲相关的API端点
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.GetSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.CreateSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}", apiHandler.AuthMiddleware(apiHandler.GetSongHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateSongHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/songs/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteSongHandler)).Methods(http.MethodDelete)

	// 时间轴条目相关的API端点
	router.HandleFunc("/api/songs/{id}/entries", apiHandler.AuthMiddleware(apiHandler.GetEntriesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}/entries", apiHandler.AuthMiddleware(apiHandler.CreateEntryHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/entries/{id}", apiHandler.AuthMiddleware(apiHandler.UpdateEntryHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/entries/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteEntryHandler)).Methods(http.MethodDelete)

	// 编辑器 websocket 端点（token 走查询参数）
	router.HandleFunc("/api/songs/{id}/editor/ws", apiHandler.EditorWSHandler).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	editors.Hub().Stop()
	logger.Info("Server stopped")
}
