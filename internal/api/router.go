package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"smart_parking_lot/internal/api/handler"
	"smart_parking_lot/internal/api/middleware"
	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

// Dependencies are the services behind the HTTP API. Gate may be nil when
// gate control is not configured.
type Dependencies struct {
	Auth        *service.AuthService
	Parking     *service.ParkingService
	LPR         *service.LPRService
	Gate        *service.GateService
	WebSockets  *handler.WebSocketManager
	Metrics     prometheus.Gatherer
	ServiceName string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(middleware.RequestLogger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "lot": deps.Parking.LotName()})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}
	if deps.WebSockets != nil {
		wsHandler := handler.NewWebSocketHandler(deps.WebSockets)
		r.GET("/ws", wsHandler.HandleWebSocket)
	}

	authHandler := handler.NewAuthHandler(deps.Auth)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	authMw := middleware.NewAuthMiddleware(deps.Auth)
	adminOnly := authMw.AuthorizeRole(domain.RoleAdmin)
	staff := authMw.AuthorizeRole(domain.RoleAdmin, domain.RoleOperator)

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		spotH := handler.NewSpotHandler(deps.Parking)
		spotRoutes := v1.Group("/spots")
		{
			spotRoutes.GET("", spotH.GetSpots)
			spotRoutes.GET("/available", spotH.GetAvailableSpots)
			spotRoutes.GET("/:id", spotH.GetSpotByID)
		}

		lotH := handler.NewLotHandler(deps.Parking)
		lotRoutes := v1.Group("/lot")
		{
			lotRoutes.GET("/status", lotH.GetStatus)
			lotRoutes.POST("/reset", adminOnly, lotH.ResetLot)
		}

		parkingH := handler.NewParkingHandler(deps.Parking)
		vehicleRoutes := v1.Group("/vehicles")
		{
			vehicleRoutes.POST("/entry", staff, parkingH.VehicleEntry)
			vehicleRoutes.POST("/exit", staff, parkingH.VehicleExit)
			vehicleRoutes.GET("", parkingH.CurrentVehicles)
		}

		historyH := handler.NewHistoryHandler(deps.Parking)
		historyRoutes := v1.Group("/history")
		{
			historyRoutes.GET("", historyH.GetHistory)
			historyRoutes.GET("/export", historyH.ExportHistory)
			historyRoutes.DELETE("", adminOnly, historyH.ClearHistory)
		}
		v1.GET("/statistics", historyH.GetStatistics)
		v1.GET("/revenue", historyH.GetRevenue)

		if deps.LPR != nil {
			lprH := handler.NewLPRHandler(deps.LPR, deps.Parking)
			lprRoutes := v1.Group("/lpr")
			lprRoutes.Use(staff)
			{
				lprRoutes.POST("/recognize", lprH.Recognize)
				lprRoutes.POST("/entry", lprH.EntryFromImage)
			}
			v1.GET("/detections", lprH.RecentDetections)
		}

		if deps.Gate != nil {
			iotCmdH := handler.NewIoTCommandHandler(deps.Gate)
			v1.POST("/gates/:gate_id/command", staff, iotCmdH.ControlBarrier)
		}
	}
	return r
}
