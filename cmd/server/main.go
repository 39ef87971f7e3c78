package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rrens/chat-memory/internal/api"
	"github.com/Rrens/chat-memory/internal/api/handler"
	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/Rrens/chat-memory/internal/llm/anthropic"
	"github.com/Rrens/chat-memory/internal/llm/deepseek"
	"github.com/Rrens/chat-memory/internal/llm/gemini"
	"github.com/Rrens/chat-memory/internal/llm/ollama"
	"github.com/Rrens/chat-memory/internal/llm/openai"
	"github.com/Rrens/chat-memory/internal/logger"
	"github.com/Rrens/chat-memory/internal/memory"
	"github.com/Rrens/chat-memory/internal/repository/mongo"
	"github.com/Rrens/chat-memory/internal/repository/postgres"
	"github.com/Rrens/chat-memory/internal/repository/redis"
	"github.com/Rrens/chat-memory/internal/repository/sqlite"
	"github.com/Rrens/chat-memory/internal/retrieval"
	"github.com/Rrens/chat-memory/internal/retrieval/vector"
	"github.com/Rrens/chat-memory/internal/security"
	"github.com/Rrens/chat-memory/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	summaryTemperature = 0.2
	summaryMaxTokens   = 600
	rerankTemperature  = 0.0
	rerankMaxTokens    = 300
)

// store is the session persistence picked by storage.driver
type store struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	pinger   handler.Pinger
	closer   io.Closer
}

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCloser, err := logger.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Bool("memory_enabled", cfg.Memory.Enabled).
		Msg("Starting chat memory API server")

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open session store")
	}
	defer st.closer.Close()

	ready := map[string]handler.Pinger{"database": st.pinger}

	// Redis is optional: without it locks are in-process and searches are uncached
	var (
		redisClient *redis.Client
		searchCache *redis.SearchCache
		locker      memory.SessionLocker
		rateLimiter *redis.RateLimiter
	)
	redisClient, err = redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running single-node without cache or rate limiting")
	} else {
		defer redisClient.Close()
		searchCache = redis.NewSearchCache(redisClient, cfg.Retrieval.CacheTTL)
		locker = redis.NewLocker(redisClient)
		rateLimiter = redis.NewRateLimiter(redisClient, cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		ready["redis"] = redisClient
	}

	llmRouter := newLLMRouter(cfg.LLM)

	summaryProvider, err := llmRouter.GetProvider(cfg.LLM.SummaryProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("Summary provider is not registered")
	}
	summarizer := llm.NewPromptClient(summaryProvider, cfg.LLM.SummaryModel, summaryTemperature, summaryMaxTokens)
	reranker := retrieval.NewLLMReranker(
		llm.NewPromptClient(summaryProvider, cfg.LLM.SummaryModel, rerankTemperature, rerankMaxTokens),
		cfg.Retrieval.RerankSimilarityWeight,
		cfg.Retrieval.RerankScoreWeight,
	)

	index, err := newIndex(cfg, searchCache)
	if err != nil {
		log.Warn().Err(err).Msg("Similarity index unavailable, replies will not be grounded")
	}

	manager := memory.NewManager(cfg.Memory, st.sessions, st.messages, summarizer, locker)
	guardrail := retrieval.NewGuardrail(cfg.Retrieval, cfg.Memory.Enabled, reranker)

	deps := api.Dependencies{
		JWT:       security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		LLMRouter: llmRouter,
		Chat: service.NewChatService(
			st.sessions, st.messages, index, guardrail, manager, llmRouter,
			cfg.Memory, cfg.Retrieval, cfg.LLM.Persona,
		),
		Sessions:  service.NewSessionService(st.sessions, st.messages),
		Knowledge: service.NewKnowledgeService(index),
		Ready:     ready,
	}
	// typed nils must not reach the interface fields
	if rateLimiter != nil {
		deps.RateLimiter = rateLimiter
	}
	if searchCache != nil {
		deps.SearchCache = searchCache
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// let in-flight summary refreshes land before the store closes
	if err := manager.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Summary refreshes still running at shutdown")
	}

	log.Info().Msg("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Storage.Driver {
	case "", "postgres":
		if cfg.Database.MigrationsURL != "" {
			if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsURL); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(connectCtx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &store{
			sessions: postgres.NewSessionRepository(db),
			messages: postgres.NewMessageRepository(db),
			pinger:   db,
			closer:   db,
		}, nil

	case "sqlite":
		s, err := sqlite.Open(connectCtx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return &store{sessions: s.Sessions(), messages: s.Messages(), pinger: s, closer: s}, nil

	case "mongo":
		s, err := mongo.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return &store{sessions: s.Sessions(), messages: s.Messages(), pinger: s, closer: s}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	// Ollama needs no credentials and is always registered
	router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))

	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model, cfg.DeepSeek.BaseURL))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}

	log.Info().Strs("providers", router.ListProviders()).Str("default", router.DefaultProvider()).Msg("LLM providers registered")
	return router
}

// newIndex opens the similarity index, fronted by the search cache when there is one
func newIndex(cfg *config.Config, cache *redis.SearchCache) (retrieval.Index, error) {
	idx, err := vector.New(cfg.Index.PersistPath, vector.EmbeddingFunc(cfg.Index, cfg.LLM))
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return idx, nil
	}
	return retrieval.NewCachedIndex(idx, cache), nil
}
