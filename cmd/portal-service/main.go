package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/TirthC27/HealthID/internal/access"
	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/internal/consent"
	"github.com/TirthC27/HealthID/internal/directory"
	"github.com/TirthC27/HealthID/internal/gateway"
	"github.com/TirthC27/HealthID/internal/qrsession"
	"github.com/TirthC27/HealthID/internal/records"
	"github.com/TirthC27/HealthID/internal/token"
	"github.com/TirthC27/HealthID/pkg/config"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/monitoring"
	"github.com/TirthC27/HealthID/pkg/storage"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("version", serviceVersion).Info("Starting HealthID portal service")

	// Initialize the key-value store
	var store storage.Store
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := storage.NewPostgresStore(&cfg.Storage.Postgres, log)
		if err != nil {
			log.WithError(err).Error("Failed to connect to database")
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	default:
		log.Info("Using in-memory store; state will not survive restarts")
		store = storage.NewMemoryStore()
	}

	// Wire the portal services
	recorder := audit.NewStoreRecorder(store, log)

	passwords := directory.NewPasswordManager()
	sessionTokens := directory.NewSessionTokens(
		cfg.JWT.SecretKey,
		time.Duration(cfg.JWT.SessionTTL)*time.Second,
		cfg.JWT.Issuer,
	)
	dir := directory.NewService(store, passwords, sessionTokens, recorder, log)

	codec := token.NewCodec(store, time.Duration(cfg.Access.QRTokenTTL)*time.Minute, log)
	ledger := consent.NewLedger(store, recorder, time.Duration(cfg.Access.ConsentTTL)*time.Hour, log)
	evaluator := access.NewEvaluator(ledger, access.Policy(cfg.Access.AutoGrantPolicy), log)
	qrManager := qrsession.NewManager(codec, evaluator, dir, recorder, log)
	recordsService := records.NewService(store, evaluator, dir, recorder, log)

	gatewayService := gateway.NewService(dir, qrManager, ledger, recordsService, recorder, log)

	// Setup router
	router := mux.NewRouter()
	gatewayService.RegisterRoutes(router)

	if cfg.Monitoring.Enabled {
		health := monitoring.NewHealthHandler("portal-service", serviceVersion)
		health.Register("store", store.Health)
		router.Handle(cfg.Monitoring.HealthPath, health).Methods("GET")
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Report the live-token gauge in the background
	gaugeCtx, stopGauge := context.WithCancel(context.Background())
	defer stopGauge()
	go reportLiveTokens(gaugeCtx, codec, log)

	// Start server in a goroutine
	go func() {
		log.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down portal service...")
	stopGauge()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Portal service stopped")
}

// reportLiveTokens periodically updates the live-token gauge. Expired tokens
// are left in the store so redemption keeps reporting TOKEN_EXPIRED for them.
func reportLiveTokens(ctx context.Context, codec *token.Codec, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			live, err := codec.LiveTokens()
			if err != nil {
				log.WithError(err).Error("Failed to count live tokens")
				continue
			}
			monitoring.SetLiveTokens(live)
		}
	}
}
