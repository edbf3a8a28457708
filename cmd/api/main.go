package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/clearledger/subpay/api/routes"
	"github.com/clearledger/subpay/internal/events"
	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/internal/plans"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/internal/subscriptions"
	"github.com/clearledger/subpay/internal/upgrade"
	"github.com/clearledger/subpay/pkg/config"
	"github.com/clearledger/subpay/pkg/db"
	"github.com/clearledger/subpay/pkg/gateway"
	"github.com/clearledger/subpay/pkg/logger"
	"github.com/clearledger/subpay/pkg/metrics"
	"github.com/clearledger/subpay/pkg/migrate"
	"github.com/clearledger/subpay/pkg/redis"
	"github.com/clearledger/subpay/pkg/types"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build gateway client", err)
		os.Exit(1)
	}
	tokenClient, err := gateway.NewTokenClient(gatewayClient, cfg.Gateway.TokenEndpoint)
	if err != nil {
		logg.Error(context.Background(), "failed to build token client", err)
		os.Exit(1)
	}
	nativeClient, err := gateway.NewNativeClient(gatewayClient, cfg.Gateway.NativeEndpoint)
	if err != nil {
		logg.Error(context.Background(), "failed to build native client", err)
		os.Exit(1)
	}
	oracleClient, err := gateway.NewOracleClient(gatewayClient, cfg.Gateway.OracleEndpoint)
	if err != nil {
		logg.Error(context.Background(), "failed to build oracle client", err)
		os.Exit(1)
	}

	stableCollector, err := payments.NewStableTokenCollector(tokenClient, cfg.Billing.StableTokenDecimals)
	if err != nil {
		logg.Error(context.Background(), "failed to build stable collector", err)
		os.Exit(1)
	}
	oracleAdapter, err := payments.NewOracleAdapter(oracleClient, cfg.Billing.OracleStaleAfter)
	if err != nil {
		logg.Error(context.Background(), "failed to build oracle adapter", err)
		os.Exit(1)
	}
	nativeCollector, err := payments.NewNativeAssetCollector(nativeClient, oracleAdapter)
	if err != nil {
		logg.Error(context.Background(), "failed to build native collector", err)
		os.Exit(1)
	}

	logicV1, err := upgrade.NewV1(stableCollector)
	if err != nil {
		logg.Error(context.Background(), "failed to build v1 logic", err)
		os.Exit(1)
	}
	logicV2, err := upgrade.NewV2(stableCollector, nativeCollector)
	if err != nil {
		logg.Error(context.Background(), "failed to build v2 logic", err)
		os.Exit(1)
	}
	registry, err := upgrade.NewRegistry(logicV1, logicV2)
	if err != nil {
		logg.Error(context.Background(), "failed to build logic registry", err)
		os.Exit(1)
	}

	store := statestore.New(dbClient.DB())
	gate := statestore.NewGate()
	emitter, err := events.NewEmitter(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to build event emitter", err)
		os.Exit(1)
	}

	upgradeCtrl, err := upgrade.NewController(upgrade.ControllerParams{
		DB:       dbClient,
		Store:    store,
		Events:   emitter,
		Gate:     gate,
		Registry: registry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build upgrade controller", err)
		os.Exit(1)
	}

	if err := maybeBootstrap(context.Background(), cfg, logg, upgradeCtrl); err != nil {
		logg.Error(context.Background(), "failed to bootstrap engine", err)
		os.Exit(1)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		DB:     dbClient,
		Store:  store,
		Events: emitter,
		Gate:   gate,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build plan service", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		DB:       dbClient,
		Store:    store,
		Events:   emitter,
		Gate:     gate,
		Registry: registry,
		Period:   cfg.Billing.Period(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build subscription service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(promRegistry)

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Metrics:       billingMetrics,
		Registry:      promRegistry,
		Plans:         planService,
		Subscriptions: subscriptionService,
		Upgrades:      upgradeCtrl,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

// maybeBootstrap runs first-time initialization when the stored version is
// still zero and the bootstrap addresses are configured.
func maybeBootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger, ctrl *upgrade.Controller) error {
	version, err := ctrl.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if version != 0 {
		logg.Info(logg.WithLogicVersion(ctx, version), "engine already initialized")
		return nil
	}
	if !cfg.Bootstrap.Configured() {
		logg.Warn(ctx, "engine uninitialized and bootstrap addresses missing; admin surface will reject mutations")
		return nil
	}

	owner, err := types.ParseAddress(cfg.Bootstrap.Owner)
	if err != nil {
		return err
	}
	treasury, err := types.ParseAddress(cfg.Bootstrap.Treasury)
	if err != nil {
		return err
	}
	token, err := types.ParseAddress(cfg.Bootstrap.PaymentToken)
	if err != nil {
		return err
	}

	if err := ctrl.Initialize(ctx, upgrade.InitArgs{
		Owner:        owner,
		PaymentToken: token,
		Treasury:     treasury,
	}); err != nil {
		return err
	}
	logg.Info(logg.WithLogicVersion(ctx, 1), "engine initialized")
	return nil
}
