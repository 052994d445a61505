package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	_ "github.com/lib/pq"

	"Commons/internal/api/middleware"
	"Commons/internal/api/routes"
	"Commons/internal/config"
	"Commons/internal/core/blobs"
	"Commons/internal/core/docstore"
	"Commons/internal/core/engagement"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
	"Commons/internal/core/thumbnails"
	"Commons/internal/core/users"
	"Commons/internal/db/memory"
	"Commons/internal/db/postgres"
	"Commons/internal/identity"
)

// storeBackend is a document store that holds resources until closed
type storeBackend interface {
	docstore.Store
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, db, err := openStore(cfg, logger)
	if err != nil {
		log.Fatal("Failed to open document store:", err)
	}

	// Identity provider and account service
	provider, err := identity.NewProvider(store, identity.Config{
		Secret:   []byte(cfg.SessionSecret),
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		log.Fatal("Failed to create identity provider:", err)
	}
	userService := users.NewUserService(provider, store)

	// Blob store for post images
	fileStore, err := blobs.NewFileStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		log.Fatal("Failed to create blob store:", err)
	}

	// Board services and projections
	counters := engagement.NewCounters(store)
	postService := posts.NewPostService(store, fileStore,
		posts.WithThumbnails(thumbnails.NewProcessor(), thumbnails.PostThumbnail))
	listProjection := posts.NewListProjection(store, logger.With(slog.String("component", "post_list")))
	detailProjection := threads.NewDetailProjection(store, counters, logger.With(slog.String("component", "post_detail")))

	// Session cookies carry the token for browser clients
	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	authMiddleware := middleware.NewSessionAuth(provider, cookieStore)

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Use(rateLimiter.Middleware)

	routes.RegisterAuthRoutes(r, userService, authMiddleware, authMiddleware)
	routes.RegisterPostRoutes(r, postService, listProjection, detailProjection, counters, authMiddleware)
	routes.RegisterLiveRoutes(r, listProjection, detailProjection, provider, cfg.AllowedOrigins, authMiddleware)
	routes.RegisterBlobRoutes(r, fileStore.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Commons server starting on port %s (store=%s)\n", cfg.Port, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Live feeds end when the store closes, which lets websocket handlers return
	if err := store.Close(); err != nil {
		log.Printf("Failed to close document store: %v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}
}

// openStore opens the configured backend. db is nil for the memory backend.
func openStore(cfg config.Config, logger *slog.Logger) (storeBackend, *sql.DB, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Println("Using in-memory document store; data is lost on exit")
		return memory.NewStore(memory.WithLogger(logger)), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("Connected to database")

	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Migrations completed successfully")

	store, err := postgres.NewDocumentStore(db, cfg.DatabaseURL, logger.With(slog.String("component", "pgstore")))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}
