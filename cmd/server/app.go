package main

import (
	"context"
	"errors"
	"time"

	fasthttprouter "github.com/fasthttp/router"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/miniconomy2025/sumsang-phones/api/handler"
	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/gateway/httpapi"
	"github.com/miniconomy2025/sumsang-phones/internal/config"
	"github.com/miniconomy2025/sumsang-phones/internal/infrastructure/journal"
	"github.com/miniconomy2025/sumsang-phones/internal/infrastructure/monitor"
	pgInfra "github.com/miniconomy2025/sumsang-phones/internal/infrastructure/postgres"
	redisInfra "github.com/miniconomy2025/sumsang-phones/internal/infrastructure/redis"
	"github.com/miniconomy2025/sumsang-phones/internal/middleware"
	"github.com/miniconomy2025/sumsang-phones/internal/router"
	"github.com/miniconomy2025/sumsang-phones/internal/services"
	"github.com/miniconomy2025/sumsang-phones/internal/services/lifecycle"
	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/repository/memory"
	"github.com/miniconomy2025/sumsang-phones/repository/postgres"
	redisRepo "github.com/miniconomy2025/sumsang-phones/repository/redis"
	"github.com/miniconomy2025/sumsang-phones/usecase"
	advanceUC "github.com/miniconomy2025/sumsang-phones/usecase/advance"
	dashboardUC "github.com/miniconomy2025/sumsang-phones/usecase/dashboard"
	deliveryUC "github.com/miniconomy2025/sumsang-phones/usecase/delivery"
	financeUC "github.com/miniconomy2025/sumsang-phones/usecase/finance"
	ordersUC "github.com/miniconomy2025/sumsang-phones/usecase/orders"
	procurementUC "github.com/miniconomy2025/sumsang-phones/usecase/procurement"
	productionUC "github.com/miniconomy2025/sumsang-phones/usecase/production"
	simulationUC "github.com/miniconomy2025/sumsang-phones/usecase/simulation"
)

// application holds the wired components a command needs.
type application struct {
	manager    *lifecycle.Manager
	monitor    *monitor.Monitor
	scheduler  *services.Scheduler
	simulation *simulationUC.UseCase
	router     *fasthttprouter.Router
}

// build opens the stores and wires every use case. Closers are registered on
// the returned manager in dependency order.
func build(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*application, error) {
	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)

	var (
		pool  *pgxpool.Pool
		store repository.Store
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store = memory.NewStore(memory.DefaultCatalog()...).Repositories()
		zapLogger.Warn("using in-memory storage, state is lost on restart")
	default:
		var err error
		pool, err = pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, zapLogger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		store = postgres.NewStore(pool)
	}

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis)
	switch {
	case errors.Is(err, redisInfra.ErrNotConfigured):
		if cfg.Redis.LeaseEnabled {
			return nil, errors.New("PIPELINE_LEASE_ENABLED needs REDIS_URL")
		}
		redisClient = nil
	case err != nil:
		return nil, err
	default:
		manager.RegisterCloser("redis", redisClient)
	}

	calls, err := journal.Open(cfg.Journal.Path, cfg.Journal.Bucket)
	if err != nil {
		return nil, err
	}
	manager.RegisterCloser("journal", calls)
	bridge := services.NewJournalBridge(calls)

	mon := monitor.New(pool, redisClient, calls, cfg.Simulation.MonitorInterval, zapLogger)

	gw := newGateway(cfg, zapLogger)
	sim := cfg.Simulation

	procurement := procurementUC.New(store, gw, bridge, procurementUC.Policy{
		Utilization:  sim.Utilization,
		MinStockDays: sim.MinStockDays,
		ReorderDays:  sim.ReorderDays,
		BatchSize:    sim.BatchSize,
		MinOrder:     sim.MinOrder,
	}, zapLogger)
	production := productionUC.New(store, productionUC.Policy{
		MinBuffer:   sim.MinBuffer,
		BufferRatio: sim.BufferRatio,
		StockFloor:  sim.StockFloor,
	}, zapLogger)
	advance := advanceUC.New(store, gw, bridge, advanceUC.Policy{
		PaymentTimeoutDays: sim.PaymentTimeoutDays,
		Company:            cfg.Counterparties.CompanyID,
	}, zapLogger)
	finance := financeUC.New(store.Simulation, gw.Bank, bridge, sim.LoanInstallment, zapLogger)

	pipeline := simulationUC.NewPipeline(procurement, production, advance, finance, bridge, cfg.Journal.Retention, zapLogger)

	var lease services.Lease
	if cfg.Redis.LeaseEnabled {
		lease = redisRepo.NewPipelineLock(redisClient, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL)
	}
	scheduler := services.NewScheduler(store.Simulation, pipeline, mon, lease, zapLogger, services.SchedulerConfig{
		PollInterval: sim.PollInterval,
		DayLength:    sim.DayLength,
	})

	simulation := simulationUC.New(store, gw.MachineSupplier, finance, procurement, bridge, scheduler, simulationUC.Seed{
		MachinesPerProduct: sim.SeedMachines,
		PartBatch:          sim.SeedPartBatch,
		InitialLoan:        sim.InitialLoan,
	}, zapLogger)

	calendar := usecase.Calendar{Simulation: store.Simulation, DayLength: sim.DayLength}
	orders := ordersUC.New(store, calendar, zapLogger)
	delivery := deliveryUC.New(store, calendar, zapLogger)
	dashboard := dashboardUC.New(store, sim.DayLength, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Simulation:    apiHandler.NewSimulationHandler(simulation, scheduler, dashboard, ctxAdapter, zapLogger),
		Dashboard:     apiHandler.NewDashboardHandler(dashboard, ctxAdapter, zapLogger),
		Orders:        apiHandler.NewOrderHandler(orders, ctxAdapter, zapLogger),
		Notifications: apiHandler.NewNotificationHandler(orders, delivery, ctxAdapter, zapLogger),
		Health:        apiHandler.NewHealthHandler(mon, cfg.Redis.LeaseEnabled, ctxAdapter, zapLogger),
		Panic:         apiHandler.NewPanicHandler(zapLogger),
	}

	var guard func(fasthttp.RequestHandler) fasthttp.RequestHandler
	if cfg.JWT.Secret != "" {
		guard = middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	} else {
		zapLogger.Warn("JWT_SECRET not set, simulation controls are unauthenticated")
	}

	return &application{
		manager:    manager,
		monitor:    mon,
		scheduler:  scheduler,
		simulation: simulation,
		router:     router.New(handlers, guard),
	}, nil
}

func newGateway(cfg *config.Config, zapLogger *zap.Logger) *gateway.Gateway {
	cp := cfg.Counterparties
	client := func(name, baseURL string) *httpapi.Client {
		if baseURL == "" {
			zapLogger.Warn("counterparty base URL not set", zap.String("counterparty", name))
		}
		return httpapi.NewClient(httpapi.Options{
			Name:      name,
			BaseURL:   baseURL,
			Timeout:   callTimeout(cfg),
			CompanyID: cp.CompanyID,
		}, zapLogger)
	}

	return &gateway.Gateway{
		Bank:              httpapi.NewBank(client("commercial-bank", cp.BankURL)),
		BulkLogistics:     httpapi.NewLogistics(client("bulk-logistics", cp.BulkLogisticsURL)),
		ConsumerLogistics: httpapi.NewLogistics(client("consumer-logistics", cp.ConsumerLogistics)),
		PartSuppliers: map[domain.Part]gateway.Supplier{
			domain.PartScreen:      httpapi.NewSupplier(client("screen-supplier", cp.ScreenSupplierURL), domain.PartScreen),
			domain.PartCase:        httpapi.NewSupplier(client("case-supplier", cp.CaseSupplierURL), domain.PartCase),
			domain.PartElectronics: httpapi.NewSupplier(client("electronics-supplier", cp.ElectronicsURL), domain.PartElectronics),
		},
		MachineSupplier: httpapi.NewMachineSupplier(client("thoh", cp.MachineSupplier)),
	}
}

func callTimeout(cfg *config.Config) time.Duration {
	if cfg.Simulation.CallTimeout > 0 {
		return cfg.Simulation.CallTimeout
	}
	return 10 * time.Second
}
