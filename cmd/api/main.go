package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soulfra/api/internal/app"
	"soulfra/api/internal/config"
	"soulfra/api/internal/email"
	"soulfra/api/internal/gitrepo"
	"soulfra/api/internal/llm"
	"soulfra/api/internal/objstore"
	"soulfra/api/internal/search"
	"soulfra/api/internal/session"
	"soulfra/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.PostReposDir, 0o755); err != nil {
		log.Fatalf("failed to create post repos dir: %v", err)
	}

	dataStore := store.NewSQLiteStore(db)
	gitService := gitrepo.New(cfg.PostReposDir)
	fts := search.NewSqliteFTS(db)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fts)

	checks := map[string]func(context.Context) error{}
	if meiliClient != nil {
		checks["meilisearch"] = meiliClient.Check
	}

	deps := app.Deps{
		Store:  dataStore,
		Email:  email.NewService(emailConfig(cfg)),
		Search: searchService,
		Git:    gitService,
		LLM:    llm.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout),
		Checks: checks,
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		checks["redis"] = redisStore.Ping
	} else {
		log.Printf("Using SQLite for refresh token storage")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err := objstore.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		deps.Objects = objects
	} else {
		log.Printf("MinIO not configured; generated images render on the fly")
	}

	service := app.New(cfg, deps)

	// Warm the Meilisearch indexes in the background.
	if meiliClient != nil {
		go service.ReindexSearch(ctx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Soulfra API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func emailConfig(cfg config.Config) email.Config {
	return email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
}
