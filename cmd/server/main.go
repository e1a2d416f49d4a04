package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockgate/cmd/server/config"
	"stockgate/internal/adapters/httpapi"
	"stockgate/internal/events"
	"stockgate/internal/inventory"
	"stockgate/internal/observability"
	"stockgate/internal/orders"
	"stockgate/internal/payment"
	"stockgate/internal/products"
	"stockgate/internal/realtime"
	"stockgate/internal/saga"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	sagaCfg, err := config.LoadSaga()
	if err != nil {
		return err
	}
	storageCfg := config.LoadStorage()

	ledger, cleanupLedger, err := buildLedger(ctx, storageCfg)
	if err != nil {
		return err
	}
	defer cleanupLedger()

	outcomeStore, cleanupStore, err := buildOutcomeStore(ctx, storageCfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer cleanupStore()

	hub := realtime.NewHub()
	go hub.Run()

	var storage events.Publisher
	if outcomeStore != nil {
		storage = events.NewStorePublisher(outcomeStore)
	}
	publisher := events.NewFanoutPublisher(storage, realtime.NewHubBroadcaster(hub))

	gateway := payment.NewSimulated(sagaCfg.PaymentSeed, sagaCfg.PaymentThreshold)

	retry := orders.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}
	inventoryBackend := saga.InventoryClient(ledger)
	if sagaCfg.InventoryURL != "" {
		inventoryBackend = inventory.NewHTTPClient(sagaCfg.InventoryURL, inventory.DefaultClientTimeout)
		log.Printf("using remote inventory at %s", sagaCfg.InventoryURL)
	}
	inventoryClient := orders.NewReliableInventoryClient(inventoryBackend, nil,
		orders.NewCircuitBreaker(orders.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 10 * time.Second}), retry)
	paymentClient := orders.NewReliablePaymentClient(gateway, nil,
		orders.NewCircuitBreaker(orders.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 10 * time.Second}), retry)

	orderService, cleanupOrders := orders.BuildService(ctx, storageCfg.DatabaseURL, inventoryClient, paymentClient, publisher, sagaCfg.StepTimeout, log.Printf)
	defer cleanupOrders()

	metrics := observability.NewMetrics()

	var limiter httpapi.Limiter
	if httpCfg.RateLimitInterval > 0 && httpCfg.RateLimitBurst > 0 {
		limiter = orders.NewRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst)
	}

	handler := httpapi.NewHandler(orderService, ledger, products.NewCatalog(ledger, nil), hub, metrics, log.Printf)
	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: httpapi.Wrap(handler.Mux(), metrics, limiter),
	}

	obsSrv := startObservabilityServer(metrics)

	log.Printf("server running on %s", httpCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		snap := metrics.Snapshot()
		metrics.MarkShutdown(snap.InFlight)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if obsSrv != nil {
			obsCtx, obsCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer obsCancel()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func startObservabilityServer(metrics *observability.Metrics) *http.Server {
	cfg := config.LoadObservability()
	if cfg.Addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: observability.NewMux(metrics),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()
	return srv
}
