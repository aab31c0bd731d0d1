package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/miniconomy2025/sumsang-phones/api/handler"
)

type Handlers struct {
	Simulation    *apiHandler.SimulationHandler
	Dashboard     *apiHandler.DashboardHandler
	Orders        *apiHandler.OrderHandler
	Notifications *apiHandler.NotificationHandler
	Health        *apiHandler.HealthHandler
	// Panic recovers handler panics; nil leaves them unrecovered.
	Panic         func(*fasthttp.RequestCtx, interface{})
}

// New builds the route table. authMiddleware guards the simulation controls;
// nil leaves them open.
func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	if authMiddleware == nil {
		authMiddleware = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()
	r.PanicHandler = handlers.Panic

	r.GET("/health", handlers.Health.Check)

	// Simulation controls
	r.GET("/api/v1/simulation", handlers.Simulation.Overview)
	r.POST("/api/v1/simulation/start", authMiddleware(handlers.Simulation.Start))
	r.POST("/api/v1/simulation/stop", authMiddleware(handlers.Simulation.Stop))
	r.POST("/api/v1/simulation/tick", authMiddleware(handlers.Simulation.Tick))

	// Dashboard
	r.GET("/api/v1/inventory", handlers.Dashboard.Inventory)
	r.GET("/api/v1/transactions/{kind}", handlers.Dashboard.Transactions)
	r.GET("/api/v1/events", handlers.Dashboard.Events)

	// Customers
	r.POST("/api/v1/orders", handlers.Orders.Create)
	r.GET("/api/v1/orders/{id}", handlers.Orders.Get)

	// Counterparty callbacks
	r.POST("/api/v1/notifications/bank", handlers.Notifications.Bank)
	r.POST("/api/v1/notifications/logistics", handlers.Notifications.Logistics)

	return r
}
