// pick27 game server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/api"
	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/config"
	"github.com/ashureev/pick27/internal/drawclock"
	"github.com/ashureev/pick27/internal/draws"
	"github.com/ashureev/pick27/internal/game"
	"github.com/ashureev/pick27/internal/identity"
	"github.com/ashureev/pick27/internal/live"
	"github.com/ashureev/pick27/internal/llm"
	"github.com/ashureev/pick27/internal/metrics"
	"github.com/ashureev/pick27/internal/middleware"
	"github.com/ashureev/pick27/internal/reasonrpc"
	"github.com/ashureev/pick27/internal/store"
	"github.com/ashureev/pick27/internal/wallet"
	"github.com/ashureev/pick27/web"
)

const limiterSweepInterval = 5 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	history, err := draws.Load(context.Background(), repo, 0)
	if err != nil {
		slog.Error("Failed to load draw history", "error", err)
		os.Exit(1)
	}
	slog.Info("Draw history loaded", "draws", len(history.All()), "last_cycle", history.LastCycle())

	// Every consumer gets its own source; *rand.Rand is not safe for
	// concurrent use.
	seeds := analytics.NewRand(cfg.RNGSeed)
	clock := drawclock.New(drawclock.Config{
		Open:     cfg.Draw.Open,
		CutOff:   cfg.Draw.CutOff,
		Reveal:   cfg.Draw.Reveal,
		Complete: cfg.Draw.Complete,
	}, history.LastCycle()+1, analytics.NewRand(seeds.Uint64()))

	reasoner, closeReasoner := newReasoner(cfg, seeds.Uint64(), logger)
	defer closeReasoner()
	aiEnabled := reasoner != nil
	if !aiEnabled {
		slog.Info("AI features disabled, recommendations fall back to local random picks")
	}

	walletCfg := wallet.DefaultConfig()
	walletCfg.EntryCost = cfg.Wallet.EntryCost
	walletCfg.StartingBalance = cfg.Wallet.StartingBalance

	hub := game.NewHub(game.Config{
		Store:    repo,
		Clock:    clock,
		Draws:    history,
		Wallet:   walletCfg,
		Reasoner: reasoner,
		Rand:     analytics.NewRand(seeds.Uint64()),
		Logger:   logger,
	})

	liveManager := live.NewManager()
	hub.OnChange(liveManager.Publish)

	chatLimiter := middleware.NewRateLimiter(cfg.ChatRate.PerMinute, cfg.ChatRate.Burst, logger)

	baseHandler := api.NewHandler(hub, repo)
	gameHandler := api.NewGameHandler(baseHandler, aiEnabled)
	var statelessReasoner assistant.Reasoner
	if cfg.Reasoner.ServeHTTP {
		statelessReasoner = reasoner
	}
	assistantHandler := api.NewAssistantHandler(baseHandler, statelessReasoner, chatLimiter.Handler)
	wsHandler := live.NewHandler(hub, liveManager, cfg.FrontendURL, cfg.IsDevelopment())

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := repo.Ping(req.Context()); err != nil {
			api.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		api.JSON(w, http.StatusOK, map[string]any{"status": "ok", "timer": hub.Timer()})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		gameHandler.RegisterRoutes(r)
		assistantHandler.RegisterRoutes(r)
		r.Get("/ws/state", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket streams stay open
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go clock.Run(ctx)
	slog.Info("Draw clock started", "cycle", clock.Snapshot().Cycle)
	go chatLimiter.Run(ctx, limiterSweepInterval)

	var grpcServer *grpc.Server
	if cfg.Reasoner.GRPCPort != "" && reasoner != nil {
		grpcServer = serveReasoner(cfg.Reasoner.GRPCPort, reasoner, logger)
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newReasoner picks the reasoning backend: a remote HTTP service, a remote
// gRPC service, or the in-process model client, in that order. It returns a
// nil Reasoner when none is configured.
func newReasoner(cfg *config.Config, seed uint64, logger *slog.Logger) (assistant.Reasoner, func()) {
	noop := func() {}

	switch {
	case cfg.Reasoner.URL != "":
		slog.Info("Using HTTP reasoning service", "url", cfg.Reasoner.URL)
		return assistant.NewHTTPReasoner(cfg.Reasoner.URL, cfg.Reasoner.Timeout, logger), noop

	case cfg.Reasoner.GRPCAddr != "":
		slog.Info("Connecting to reasoning service via gRPC", "address", cfg.Reasoner.GRPCAddr)
		clientCfg := reasonrpc.DefaultClientConfig(cfg.Reasoner.GRPCAddr)
		clientCfg.RequestTimeout = cfg.Reasoner.Timeout
		client, err := reasonrpc.NewClient(clientCfg, logger)
		if err != nil {
			slog.Warn("Failed to connect to reasoning service, AI features will be disabled", "error", err)
			return nil, noop
		}
		return client, client.Close

	case cfg.OpenAI.APIKey != "":
		prompts, err := loadPrompts(cfg.Reasoner.PromptsPath)
		if err != nil {
			slog.Error("Failed to load prompts", "error", err)
			os.Exit(1)
		}
		client, err := llm.NewClient(llm.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			slog.Error("Failed to initialize model client", "error", err)
			os.Exit(1)
		}
		slog.Info("Using in-process reasoner", "model", cfg.OpenAI.Model)
		return llm.NewToolReasoner(client, prompts, analytics.NewRand(seed), logger), noop
	}
	return nil, noop
}

func loadPrompts(path string) (*llm.Prompts, error) {
	if path == "" {
		return llm.DefaultPrompts()
	}
	return llm.LoadPrompts(path)
}

func serveReasoner(port string, reasoner assistant.Reasoner, logger *slog.Logger) *grpc.Server {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "port", port, "error", err)
		os.Exit(1)
	}
	s := grpc.NewServer()
	reasonrpc.Register(s, reasoner, logger)
	go func() {
		slog.Info("Reasoning gRPC service listening", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			slog.Error("gRPC server failed", "error", err)
		}
	}()
	return s
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
