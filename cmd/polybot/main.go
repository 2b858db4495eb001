package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/polybot/polybot/internal/bot"
	"github.com/polybot/polybot/internal/botapi"
	"github.com/polybot/polybot/internal/cache"
	"github.com/polybot/polybot/internal/cache/memory"
	"github.com/polybot/polybot/internal/cache/redis"
	"github.com/polybot/polybot/internal/cmd"
	"github.com/polybot/polybot/internal/health"
	"github.com/polybot/polybot/internal/hmac"
	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/image/filter"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/metrics"
	"github.com/polybot/polybot/internal/session"
	"github.com/polybot/polybot/internal/storage"
	fileStorage "github.com/polybot/polybot/internal/storage/file"
	"github.com/polybot/polybot/internal/storage/spaces"
	"github.com/polybot/polybot/internal/telegram"
	"github.com/polybot/polybot/internal/tracing"

	"github.com/jamiealquiza/envy"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Comandline flags
var (
	// Global
	listen        = flag.String("listen", ":8443", "listen address")
	metricsListen = flag.String("metrics-listen", "127.0.0.1:8082", "metrics listen address")
	loglevel      = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")

	// Telegram
	telegramToken       = flag.String("telegram-token", "", "telegram bot token")
	telegramAppURL      = flag.String("telegram-app-url", "", "public url of this service, the webhook is registered below it")
	telegramAPIEndpoint = flag.String("telegram-api-endpoint", "", "telegram bot api endpoint format string (default https://api.telegram.org/bot%s/%s)")

	// Bot
	botMode = flag.String("bot-mode", "image", "how the bot answers messages (echo, quote, image)")
	workers = flag.Int("workers", 3, "number of concurrent filter workers")

	// Storage
	storageBackend = flag.String("storage", "file", "which storage backend to use (file, spaces)")

	// Storage - File
	storageFilePath = flag.String("storage-file-path", "./data", "path to the file storage")

	// Storage - Spaces
	storageSpacesSpace          = flag.String("storage-spaces-space", "", "digitalocean space or s3 bucket to use")
	storageSpacesEndpoint       = flag.String("storage-spaces-endpoint", "", "spaces endpoint, e.g. ams3.digitaloceanspaces.com")
	storageSpacesAccessKey      = flag.String("storage-spaces-access-key", "", "spaces access key")
	storageSpacesSecretKey      = flag.String("storage-spaces-secret-key", "", "spaces secret key")
	storageSpacesForcePathStyle = flag.Bool("storage-spaces-force-path-style", false, "use path style addressing, needed for minio")

	// Cache
	cacheBackend = flag.String("cache", "memory", "which cache backend to use (memory, redis)")

	// Cache - Memory
	cacheMemoryEntries = flag.Int("cache-memory-entries", memory.DefaultMaxEntries, "photos kept in the memory cache before the least recently used one is evicted")
	cachePhotoTTL      = flag.Duration("cache-photo-ttl", image.DefaultPhotoTTL, "how long a photo stays cached after it was loaded from storage")

	// Cache - Redis
	cacheRedisAddress  = flag.String("cache-redis-address", "redis://127.0.0.1:6379", "redis address, may contain authentication details")
	cacheRedisPoolSize = flag.Int("cache-redis-pool-size", 10, "redis connection pool size")
	cacheRedisPrefix   = flag.String("cache-redis-prefix", "polybot:", "prefix for every redis key")

	// Sessions
	sessionTTL = flag.Duration("session-ttl", session.DefaultTTL, "how long a chat waits for the second photo of a concatenation")

	// Healthcheck
	healthCheckKey = flag.String("health-check-key", health.HealthCheckKey, "key to request from the storage and cache to check their health")

	// HMAC
	hmacKey = flag.String("hmac-key", "", "hmac key used to derive the webhook secret (default the telegram token)")
)

func main() {
	// Parse environment variables
	envy.Parse("POLYBOT")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel)
	defer log.Sync()

	// Set GOMAXPROCS
	maxprocs.Set(maxprocs.Logger(log.Infof))

	// Set up context for shutting down
	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	mode, err := bot.ParseMode(*botMode)
	if err != nil {
		log.Fatal(err)
	}

	if *telegramToken == "" || *telegramAppURL == "" {
		log.Fatal("telegram-token and telegram-app-url are required")
	}

	// Initialize tracing
	tracer, err := tracing.New(shutdownCtx, log, "polybot")
	if err != nil {
		log.Fatalf("error initializing tracing: %s", err)
	}
	defer tracer.Shutdown(context.Background())

	// Initialize the storage, cache
	storage, cache, sessionCache, err := setupBackends(shutdownCtx, tracer)
	if err != nil {
		log.Fatalf("error initializing backends: %s", err)
	}
	defer cache.Shutdown()

	// Initialize the image processor
	imageProcessorCtx, imageProcessorCancel := context.WithCancel(context.Background())
	defer imageProcessorCancel()

	imageProcessor, err := filter.New(imageProcessorCtx, log.Named("filter"), tracer, *workers, image.NewCache(tracer, cache, storage, *cachePhotoTTL), storage)
	if err != nil {
		log.Fatalf("error initializing image processor %s", err.Error())
	}

	// Initialize and start the health checker
	checkerCtx, checkerCancel := context.WithCancel(context.Background())
	defer checkerCancel()

	checker := &health.Checker{
		Ctx:     checkerCtx,
		Storage: storage,
		Cache:   cache,
		Key:     *healthCheckKey,
		Log:     log,
	}
	go checker.Run()

	// Start the metrics http server
	go metrics.Serve(shutdownCtx, log, checker, *metricsListen)

	// Connect to telegram
	client, err := telegram.New(telegram.Config{
		Token:       *telegramToken,
		APIEndpoint: *telegramAPIEndpoint,
	}, log.Named("telegram"), tracer)
	if err != nil {
		log.Fatal(err)
	}

	key := *hmacKey
	if key == "" {
		key = *telegramToken
	}
	signer := hmac.New([]byte(key))

	// Start and listen on http
	api := &botapi.API{
		Bot: &bot.Bot{
			Mode:      mode,
			Messenger: client,
			Processor: imageProcessor,
			Storage:   storage,
			Sessions:  session.NewStore(sessionCache, *sessionTTL),
			Log:       log.Named("bot"),
			Tracer:    tracer,
		},
		HealthChecker:  checker,
		Log:            log,
		Tracer:         tracer,
		HandlerTimeout: cmd.HandlerTimeout,
		HMAC:           signer,
	}
	server := &http.Server{
		Addr:         *listen,
		Handler:      api.Router(),
		ReadTimeout:  cmd.ReadTimeout,
		WriteTimeout: cmd.WriteTimeout,
		ErrorLog:     logger.NewHTTPErrorLog(log),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Infof("shutting down the http server: %s", err)
			shutdown()
		}
	}()

	log.Infof("http server listening on %s", *listen)

	// Point telegram at the webhook once the server accepts connections
	if err := client.SetWebhook(shutdownCtx, strings.TrimRight(*telegramAppURL, "/")+botapi.WebhookPath(signer)); err != nil {
		log.Fatalf("error registering webhook: %s", err)
	}
	log.Infof("webhook registered below %s", *telegramAppURL)

	// Wait for shutdown or error
	err = cmd.WaitForInterrupt(shutdownCtx)
	log.Infof("shutting down: %s", err)

	// Shut down http server
	serverCtx, serverCancel := context.WithTimeout(context.Background(), cmd.WriteTimeout)
	defer serverCancel()
	if err := server.Shutdown(serverCtx); err != nil {
		log.Warnf("error shutting down: %s", err)
	}
}

// setupBackends returns the photo storage, the photo cache and the cache sessions are kept in.
// A memory backend keeps sessions apart so photo evictions never drop a pending concat.
func setupBackends(ctx context.Context, tracer *tracing.Tracer) (storage storage.Provider, cache cache.Provider, sessionCache cache.Provider, err error) {
	// Storage
	switch *storageBackend {
	case "file":
		storage, err = fileStorage.New(*storageFilePath)
	case "spaces":
		storage, err = spaces.New(*storageSpacesSpace, *storageSpacesEndpoint, *storageSpacesAccessKey, *storageSpacesSecretKey, *storageSpacesForcePathStyle)
	default:
		err = fmt.Errorf("invalid storage backend %q", *storageBackend)
	}

	if err != nil {
		return
	}

	// Cache
	switch *cacheBackend {
	case "memory":
		cache = memory.New(memory.WithMaxEntries(*cacheMemoryEntries))
		sessionCache = memory.New(memory.WithMaxEntries(*cacheMemoryEntries))
	case "redis":
		cache, err = redis.New(ctx, tracer, *cacheRedisAddress, *cacheRedisPoolSize, *cacheRedisPrefix)
		sessionCache = cache
	default:
		err = fmt.Errorf("invalid cache backend %q", *cacheBackend)
	}

	return
}
