package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skein-labs/skein/backend/internal/queue"
	mid "github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/internal/session"
	"github.com/skein-labs/skein/backend/internal/store"
	"github.com/skein-labs/skein/backend/internal/util"
	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/expand"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/provider"
	"github.com/skein-labs/skein/backend/pkg/provider/ollama"
	"github.com/skein-labs/skein/backend/pkg/provider/openai"
	"github.com/skein-labs/skein/backend/pkg/provider/wiki"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := store.Migrate(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	st := store.New(conn)

	// Sessions talk to the local store directly unless a shared cache
	// deployment is configured.
	var cacheStore expand.CacheStore = st
	if cacheURL := util.GetEnv("CACHE_API_URL"); cacheURL != "" {
		logger.Info("Using remote cache store", "url", cacheURL)
		cacheStore = cache.NewClient(cache.ClientParams{BaseURL: cacheURL})
	}

	var key *keyfunc.Keyfunc
	if jwksURL := util.GetEnv("AUTH_URL"); jwksURL != "" {
		k, err := keyfunc.NewDefault([]string{jwksURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	gateway, embedder := newGateway()
	sessions := session.NewManager(cacheStore, gateway)

	app := &mid.App{
		Store:        st,
		Key:          key,
		Sessions:     sessions,
		Gateway:      gateway,
		Embedder:     embedder,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	// Prefetch publishing is optional; without a broker expansions
	// still work, they just never warm the cache ahead of time.
	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		channel, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(channel, queue.Queues); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = channel
	} else {
		logger.Info("No RabbitMQ configured, prefetch disabled")
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("16M"))

	RegisterRoutes(e)

	maxIdle := time.Duration(util.GetEnvNumeric("SESSION_MAX_IDLE_MINUTES", 120)) * time.Minute
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Sweep(maxIdle)
			}
		}
	}()

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// newGateway builds the provider gateway from the environment: model
// adapter, summary source and call timeout.
func newGateway() (provider.Gateway, provider.Embedder) {
	var (
		model    provider.ModelClient
		embedder provider.Embedder
	)

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := ollama.NewClient(ollama.ClientParams{
			ChatModel: util.GetEnv("AI_CHAT_MODEL"),
			BaseURL:   util.GetEnv("AI_CHAT_URL"),
			APIKey:    util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		model = client
	default:
		client := openai.NewClient(openai.ClientParams{
			ChatModel:  util.GetEnv("AI_CHAT_MODEL"),
			EmbedModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatURL:    util.GetEnv("AI_CHAT_URL"),
			ChatKey:    util.GetEnv("AI_CHAT_KEY"),
			EmbedURL:   util.GetEnv("AI_EMBED_URL"),
			EmbedKey:   util.GetEnv("AI_EMBED_KEY"),
		})
		model = client
		if util.GetEnv("AI_EMBED_MODEL") != "" && util.GetEnv("AI_EMBED_KEY") != "" {
			embedder = client
		}
	}

	summaries := wiki.NewClient(wiki.ClientParams{
		BaseURL: util.GetEnv("SUMMARY_API_URL"),
	})

	gateway := provider.NewModelGateway(provider.ModelGatewayParams{
		Model:       model,
		Summaries:   summaries,
		CallTimeout: time.Duration(util.GetEnvNumeric("AI_TIMEOUT_SECONDS", 20)) * time.Second,
	})
	return gateway, embedder
}
