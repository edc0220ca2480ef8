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

	"loom/internal/app"
	"loom/internal/config"
	"loom/internal/export"
	"loom/internal/search"
	"loom/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	documents, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer documents.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewScan(documents))
	exportService := export.NewService(cfg.ChromiumPath)

	service := app.New(cfg, documents, searchService, exportService)

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
		log.Printf("Loom API listening on %s (store=%s)", cfg.Addr, cfg.Store)
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

// openStore builds the persistence backend LOOM_STORE selects. Every
// backend satisfies the same whole-document contract, so the rest of
// the program never knows which one is running.
func openStore(ctx context.Context, cfg config.Config) (store.DocumentStore, error) {
	switch cfg.Store {
	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return nil, err
		}
		return store.NewPostgresStore(db), nil
	case "redis":
		return store.NewRedisStore(cfg.RedisURL)
	case "badger":
		return store.NewBadgerStore(cfg.BadgerDir)
	case "minio":
		return store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		fileStore, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		if cfg.WatchFiles {
			if err := fileStore.EnableWatch(); err != nil {
				log.Printf("WARNING: file watch unavailable: %v", err)
			}
		}
		return fileStore, nil
	}
}
