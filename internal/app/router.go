package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridedispatch/internal/handler"
	"ridedispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	DriverHandler  *handler.DriverHandler
	UserHandler    *handler.UserHandler
	PromoHandler   *handler.PromoHandler
	PaymentHandler *handler.PaymentHandler
	RedisClient    redis.UniversalClient // nil disables idempotency keys
	NewRelicApp    *newrelic.Application
	Logger         logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())

	// New Relic goes before the logger so requests carry a trace id.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.RequestLogger(deps.Logger))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	if deps.RedisClient != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	v1.POST("/users/register", deps.UserHandler.Register)

	authed := v1.Group("", middleware.RequireUser())
	{
		// User routes.
		authed.GET("/users", deps.UserHandler.GetAll)

		// Driver routes.
		drivers := authed.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("/me", deps.DriverHandler.Me)
			drivers.GET("/nearby", deps.DriverHandler.Nearby)
			drivers.GET("/:id/summary", deps.DriverHandler.GetSummary)
			drivers.PUT("/availability", deps.DriverHandler.UpdateAvailability)
			drivers.PUT("/location", deps.DriverHandler.UpdateLocation)
		}

		// Ride routes.
		rides := authed.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", deps.RideHandler.AcceptRide)
			rides.POST("/:id/start", deps.RideHandler.StartRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/rate", deps.RideHandler.RateRide)
		}

		// Promo code routes.
		promos := authed.Group("/promo-codes")
		{
			promos.POST("", deps.PromoHandler.Create)
			promos.POST("/validate", deps.PromoHandler.Validate)
			promos.GET("/available", deps.PromoHandler.Available)
		}

		// Payment routes.
		payments := authed.Group("/payments")
		{
			payments.POST("/checkout", deps.PaymentHandler.Checkout)
			payments.GET("/rides/:rideId", deps.PaymentHandler.GetByRide)
		}
	}

	return router
}
