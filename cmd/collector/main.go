package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kuldar/futures-data/internal/api"
	"github.com/kuldar/futures-data/internal/backfill"
	"github.com/kuldar/futures-data/internal/config"
	"github.com/kuldar/futures-data/internal/connection"
	"github.com/kuldar/futures-data/internal/contracts"
	"github.com/kuldar/futures-data/internal/live"
	"github.com/kuldar/futures-data/internal/ratelimit"
	"github.com/kuldar/futures-data/internal/store"
	"github.com/kuldar/futures-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	backfillOnly := flag.Bool("backfill", false, "run backfill only, then exit")
	liveOnly := flag.Bool("live", false, "run live collector only, skip backfill")
	statusMode := flag.Bool("status", false, "print per-symbol bar status and exit")
	chainMode := flag.Bool("chain", false, "print per-symbol contract chains for the backfill window and exit")
	envPath := flag.String("env", ".env", "path to .env credentials file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	runID := uuid.NewString()
	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"run_id", runID,
		"config", *configPath,
	)

	// Credentials come from the environment; a .env file is optional.
	if err := godotenv.Load(*envPath); err != nil {
		logger.Debug("no .env file loaded", "path", *envPath)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *chainMode {
		printChains(cfg)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	db, err := store.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *statusMode {
		printStatus(ctx, db, cfg.Symbols())
		return
	}

	username := os.Getenv("PROJECTX_USERNAME")
	apiKey := os.Getenv("PROJECTX_API_KEY")
	if username == "" || apiKey == "" {
		logger.Error("PROJECTX_USERNAME and PROJECTX_API_KEY must be set")
		os.Exit(1)
	}

	client := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.HistoryTimeout),
		api.WithRetries(3, time.Second),
	)

	logger.Info("authenticating", "user", username)
	token, err := client.Login(ctx, username, apiKey)
	if err != nil {
		logger.Error("authentication failed", "error", err)
		os.Exit(1)
	}
	logger.Info("authenticated")

	limiter := ratelimit.New(cfg.API.RateLimit, cfg.API.RateWindow, logger)
	resolver := contracts.NewResolver(db, limiter, client, cfg.API.SearchTimeout, logger)

	logger.Info("resolving contract ids", "symbols", len(cfg.Instruments))
	idToSymbol, contractIDs := resolver.ResolveAll(ctx, cfg.Symbols())
	logger.Info("contracts resolved", "found", len(contractIDs))

	engine := backfill.New(backfill.Config{
		Days:           cfg.Backfill.Days,
		BarsPerRequest: cfg.Backfill.BarsPerRequest,
		PageTimeout:    cfg.API.HistoryTimeout,
	}, resolver, limiter, client, db, logger)

	aggregator := live.New(db, live.VolumeResetPolicy(cfg.Live.VolumeResetPolicy), logger)
	aggregator.SetContractMapping(idToSymbol)

	manager := connection.NewManager(connection.ManagerConfig{
		HubURL:          cfg.Connection.HubURL,
		Token:           token,
		ReconnectDelays: cfg.Connection.ReconnectDelays,
		SubscribeDelay:  cfg.Connection.SubscribeDelay,
		WriteTimeout:    cfg.Connection.WriteTimeout,
		PingInterval:    cfg.Connection.PingInterval,
		StaleTimeout:    cfg.Connection.StaleTimeout,
		HandshakeWait:   cfg.Connection.HandshakeTimeout,
	}, contractIDs, aggregator, logger)

	doBackfill := !*liveOnly
	doLive := !*backfillOnly

	g, gctx := errgroup.WithContext(ctx)

	if doBackfill {
		g.Go(func() error {
			engine.BackfillAll(gctx, cfg.Symbols())
			return nil
		})
	}

	if doLive {
		if err := manager.Start(gctx); err != nil {
			logger.Error("failed to start connection manager", "error", err)
			os.Exit(1)
		}

		healthServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(db, manager, aggregator, cfg.Symbols(), logger),
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			statusTicker := time.NewTicker(5 * time.Minute)
			defer statusTicker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-statusTicker.C:
					stats := manager.Stats()
					logger.Info("collector status",
						"state", stats.State,
						"subscriptions", stats.Subscriptions,
						"quotes_routed", stats.QuotesRouted,
						"bars_saved", aggregator.BarsSaved(),
					)
				}
			}
		})

		// Shutdown sequencing: flush in-progress bars before the socket
		// goes down, then stop the health server.
		g.Go(func() error {
			<-gctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			manager.Stop(stopCtx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			healthServer.Shutdown(shutdownCtx)
			return nil
		})

		logger.Info("collector running",
			"instruments", len(contractIDs),
			"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
		)
	}

	if err := g.Wait(); err != nil {
		logger.Error("collector error", "error", err)
		os.Exit(1)
	}

	logger.Info("collector stopped")
}

// printStatus prints per-symbol bar coverage from the store.
func printStatus(ctx context.Context, db *store.Store, symbols []string) {
	statuses, err := db.SymbolStatuses(ctx, symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status read failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("DATABASE STATUS")
	fmt.Println("----------------------------------------")
	for _, st := range statuses {
		if st.BarCount == 0 {
			fmt.Printf("  %-5s | %8d bars | no data\n", st.Symbol, st.BarCount)
			continue
		}
		oldest := time.Unix(st.OldestBar, 0).UTC().Format("2006-01-02")
		newest := time.Unix(st.NewestBar, 0).UTC().Format("2006-01-02")
		fmt.Printf("  %-5s | %8d bars | %s to %s\n", st.Symbol, st.BarCount, oldest, newest)
	}
}

// printChains prints the contract months covering the backfill window
// for each configured instrument.
func printChains(cfg *config.CollectorConfig) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -cfg.Backfill.Days)

	fmt.Printf("CONTRACT CHAINS (%s to %s)\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Println("----------------------------------------")
	for _, inst := range cfg.Instruments {
		fmt.Printf("  %-5s", inst.Symbol)
		for _, c := range contracts.Chain(inst, start, end) {
			code, err := c.MonthCode()
			if err != nil {
				code = "?"
			}
			fmt.Printf(" | %s (%s%s, from %s)", c.Code, inst.Symbol, code, c.Start.Format("2006-01-02"))
		}
		fmt.Println()
	}
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(db *store.Store, manager *connection.Manager, aggregator *live.Aggregator, symbols []string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		stats := manager.Stats()
		health.Components["connection"] = map[string]any{
			"state":         stats.State,
			"subscriptions": stats.Subscriptions,
			"reconnects":    stats.Reconnects,
		}
		if stats.State != connection.StateConnected {
			health.Status = "degraded"
		}
		health.Components["bars_saved"] = aggregator.BarsSaved()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses, err := db.SymbolStatuses(ctx, symbols)
		if err != nil {
			logger.Warn("status read failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statuses)
	})

	return mux
}
