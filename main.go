package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analyze-service/config"
	"analyze-service/database"
	"analyze-service/handlers"
	"analyze-service/llm"
	"analyze-service/metrics"
	"analyze-service/rabbitmq"
	"analyze-service/relay"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using environment variables")
	}

	cfg := config.Load()
	lvl, err := cfg.Level()
	if err != nil {
		log.Warnf("%v, using info", err)
	}
	log.SetLevel(lvl)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Info("Starting the analyze service...")
	gin.SetMode(gin.ReleaseMode)
	metrics.Register()

	provider, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM provider: %v", err)
	}
	if !provider.Enabled() {
		log.Warnf("%s provider has no %s configured; analyze requests will fail until it is set", provider.Name(), provider.CredentialKey())
	}

	mode, _ := relay.ParseMode(cfg.RelayMode)
	r := relay.New(provider, relay.Config{
		Mode:           mode,
		MaxPromptChars: cfg.MaxPromptChars,
		Timeout:        cfg.RelayTimeout,
		Params: llm.Params{
			Temperature:     cfg.LLMTemperature,
			MaxOutputTokens: cfg.LLMMaxOutputTokens,
		},
	})

	var journal handlers.JournalStore
	if cfg.JournalEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		db, err := database.Connect(ctx, cfg.DSN(), database.DefaultPoolConfig())
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		store := database.NewJournalStore(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to create journal schema: %v", err)
		}
		journal = store
	}

	var events handlers.EventPublisher
	if cfg.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.EventsExchange, cfg.EventsRoutingKey)
		if err != nil {
			log.Warnf("Analysis events disabled: %v", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	router := setupRouter(cfg, r, journal, events)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":       cfg.Port,
			"provider":   provider.Name(),
			"mode":       string(mode),
			"journal":    cfg.JournalEnabled,
			"rate_limit": cfg.RateLimitPerMinute,
		}).Info("analyze service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
