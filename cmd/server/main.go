package main

import (
	"context"
	"os"
	"time"

	"github.com/aggregat4/go-baselib/env"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/omprakashjha/URLBookmarks/internal/connectivity"
	"github.com/omprakashjha/URLBookmarks/internal/crawler"
	"github.com/omprakashjha/URLBookmarks/internal/domain"
	"github.com/omprakashjha/URLBookmarks/internal/logger"
	"github.com/omprakashjha/URLBookmarks/internal/queue"
	"github.com/omprakashjha/URLBookmarks/internal/remote"
	"github.com/omprakashjha/URLBookmarks/internal/repository"
	"github.com/omprakashjha/URLBookmarks/internal/scheduler"
	"github.com/omprakashjha/URLBookmarks/internal/server"
	syncpkg "github.com/omprakashjha/URLBookmarks/internal/sync"
)

func main() {
	// a missing .env file is fine, plain environment variables still apply
	_ = godotenv.Load()

	config := domain.Configuration{
		DbFilename:                env.GetStringFromEnv("URLBM_DB_FILENAME", "bookmarks.sqlite"),
		ServerPort:                env.GetIntFromEnv("URLBM_SERVER_PORT", 1323),
		ServerReadTimeoutSeconds:  env.GetIntFromEnv("URLBM_SERVER_READ_TIMEOUT_SECONDS", 5),
		ServerWriteTimeoutSeconds: env.GetIntFromEnv("URLBM_SERVER_WRITE_TIMEOUT_SECONDS", 10),
		BaseUrl:                   env.GetStringFromEnv("URLBM_BASE_URL", "http://localhost:1323"),
		Platform:                  env.GetStringFromEnv("URLBM_PLATFORM", "web"),
		SearchPageSize:            env.GetIntFromEnv("URLBM_PAGE_SIZE", 50),
		MaxQueueRetries:           env.GetIntFromEnv("URLBM_MAX_QUEUE_RETRIES", 3),
		SyncIntervalSeconds:       env.GetIntFromEnv("URLBM_SYNC_INTERVAL_SECONDS", 5*60),
		StatusDisplaySeconds:      env.GetIntFromEnv("URLBM_STATUS_DISPLAY_SECONDS", 3),
		TombstoneRetentionDays:    env.GetIntFromEnv("URLBM_TOMBSTONE_RETENTION_DAYS", 30),
		PurgeIntervalSeconds:      env.GetIntFromEnv("URLBM_PURGE_INTERVAL_SECONDS", 24*60*60),
		TitleFetchIntervalSeconds: env.GetIntFromEnv("URLBM_TITLE_FETCH_INTERVAL_SECONDS", 5*60),
		TitleFetchTimeoutSeconds:  env.GetIntFromEnv("URLBM_TITLE_FETCH_TIMEOUT_SECONDS", 20),
		MaxTitleFetchAttempts:     env.GetIntFromEnv("URLBM_MAX_TITLE_FETCH_ATTEMPTS", 3),
		MaxTitlesToFetch:          env.GetIntFromEnv("URLBM_MAX_TITLES_TO_FETCH", 20),
		RemoteBaseUrl:             env.GetStringFromEnv("URLBM_REMOTE_BASE_URL", ""),
		RemotePollIntervalSeconds: env.GetIntFromEnv("URLBM_REMOTE_POLL_INTERVAL_SECONDS", 30),
		LogLevel:                  env.GetStringFromEnv("URLBM_LOG_LEVEL", "info"),
	}

	log := logger.New(config.LogLevel, os.Getenv("URLBM_PRETTY_LOG") == "true")
	defer log.Sync()

	var store repository.Store
	if err := store.InitAndVerifyDb(config.DbFilename); err != nil {
		log.Error("opening database failed", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	// without a remote URL the app runs local-only against an in-memory
	// backend, useful for development
	var remoteClient remote.Client
	if config.RemoteBaseUrl != "" {
		httpClient := remote.NewHTTPClient(config.RemoteBaseUrl, 10*time.Second, log)
		httpClient.StartPolling(ctx, time.Duration(config.RemotePollIntervalSeconds)*time.Second)
		remoteClient = httpClient
	} else {
		log.Info("no remote backend configured, running local-only")
		remoteClient = remote.NewMemory()
	}

	monitor := connectivity.NewMonitor(true, log)
	monitor.StartProbing(ctx, remoteClient, time.Duration(config.RemotePollIntervalSeconds)*time.Second)

	q := queue.New(&store, remoteClient, monitor, config.MaxQueueRetries, log)
	q.OnOperationFailed(func(op domain.PendingOperation) {
		log.Warn("offline operation dropped",
			logger.String("kind", string(op.Kind)),
			logger.String("record_id", op.RecordID))
	})

	orchestrator := syncpkg.New(&store, remoteClient, q, monitor,
		time.Duration(config.SyncIntervalSeconds)*time.Second,
		time.Duration(config.StatusDisplaySeconds)*time.Second,
		log)
	orchestrator.Run(ctx)

	purger := scheduler.NewPurger(&store, log,
		time.Duration(config.PurgeIntervalSeconds)*time.Second,
		time.Duration(config.TombstoneRetentionDays)*24*time.Hour)
	purger.Start(ctx)
	defer purger.Stop()

	titleCrawler := crawler.Crawler{Store: &store, Config: config, Log: log}
	titleCrawler.Run(ctx)

	server.RunServer(&server.Controller{
		Store:        &store,
		Queue:        q,
		Monitor:      monitor,
		Remote:       remoteClient,
		Orchestrator: orchestrator,
		Config:       config,
		Log:          log,
	})
}
