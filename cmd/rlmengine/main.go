// Command rlmengine runs the recursive LM orchestration HTTP server:
// loads configuration, wires the LM provider clients, storage backend,
// and orchestrator, then serves the execution/session HTTP API until
// signalled to shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pmukeshreddy/rlm-engine/internal/config"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
	"github.com/pmukeshreddy/rlm-engine/internal/httpapi"
	"github.com/pmukeshreddy/rlm-engine/internal/llmclient"
	"github.com/pmukeshreddy/rlm-engine/internal/orchestrator"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
	"github.com/pmukeshreddy/rlm-engine/internal/storage/postgres"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	configFile := flag.String("config-file", getEnv("CONFIG_FILE", ""),
		"Path to a YAML config file (overrides defaults)")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm := buildLLMRouter(cfg.Providers)
	priceTable := pricing.NewTable(nil)
	bus := events.NewBus()
	sessions := session.NewManager()

	execRepo, closeStorage := buildStorage(ctx, cfg.Storage)
	if closeStorage != nil {
		defer closeStorage()
	}

	orch := orchestrator.New(llm, priceTable, bus, sessions, cfg.Limits)
	server := httpapi.NewServer(orch, sessions, execRepo, priceTable, cfg.Limits)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Engine(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining in-flight requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

// buildLLMRouter wires the Anthropic and OpenAI clients (each wrapped in
// the shared retry/backoff decorator) to the model-name-prefix Router:
// transient LM provider errors are retried a bounded number of times
// before being classified as a terminal ProviderError.
func buildLLMRouter(providers config.ProvidersConfig) *llmclient.Router {
	router := llmclient.NewRouter()

	anthropicClient := llmclient.NewAnthropicClient(llmclient.AnthropicConfig{
		APIKey:  providers.AnthropicAPIKey,
		BaseURL: providers.AnthropicBaseURL,
	})
	router.Register("claude-", llmclient.NewRetrying(anthropicClient))

	openaiClient := llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
		APIKey:  providers.OpenAIAPIKey,
		BaseURL: providers.OpenAIBaseURL,
	})
	router.Register("gpt-", llmclient.NewRetrying(openaiClient))
	router.Register("o1", llmclient.NewRetrying(openaiClient))

	router.SetFallback(llmclient.NewRetrying(anthropicClient))
	return router
}

// buildStorage selects the execution repository driver. The returned
// close func is nil for the in-memory driver (nothing to release).
func buildStorage(ctx context.Context, cfg config.StorageConfig) (storage.ExecutionRepository, func()) {
	switch cfg.Driver {
	case "postgres":
		pgCfg, err := postgres.LoadConfigFromEnv()
		if err != nil {
			log.Fatalf("Failed to load Postgres config: %v", err)
		}
		client, err := postgres.NewClient(ctx, pgCfg)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Println("Connected to Postgres, migrations applied")
		return postgres.NewExecutionRepo(client), client.Close
	default:
		log.Println("Using in-memory execution storage (storage.driver is not \"postgres\")")
		return storage.NewInMemory(), nil
	}
}
