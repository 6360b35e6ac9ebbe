package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bernard777/cadok-backend-sub005/internal/config"
	"github.com/bernard777/cadok-backend-sub005/internal/http/handlers"
	"github.com/bernard777/cadok-backend-sub005/internal/http/middleware"
	"github.com/bernard777/cadok-backend-sub005/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	tradeHandler *handlers.TradeHandler,
	redirectionHandler *handlers.RedirectionHandler,
	trustHandler *handlers.TrustHandler,
	mediaHandler *handlers.MediaHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media-files", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	api.GET("/ws", wsHandler.Handle)

	// Routes participants.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/trades", tradeHandler.ProposeTrade)
		protected.GET("/trades", tradeHandler.ListTrades)
		protected.GET("/trades/:id", middleware.UUIDValidator("id"), tradeHandler.GetTrade)
		protected.POST("/trades/:id/accept", middleware.UUIDValidator("id"), tradeHandler.AcceptTrade)
		protected.POST("/trades/:id/photos", middleware.UUIDValidator("id"), tradeHandler.SubmitPhotos)
		protected.POST("/trades/:id/shipment", middleware.UUIDValidator("id"), tradeHandler.ConfirmShipment)
		protected.POST("/trades/:id/delivery", middleware.UUIDValidator("id"), tradeHandler.ConfirmDelivery)
		protected.POST("/trades/:id/cancel", middleware.UUIDValidator("id"), tradeHandler.CancelTrade)
		protected.POST("/trades/:id/disputes", middleware.UUIDValidator("id"), tradeHandler.ReportDispute)
		protected.GET("/trades/:id/disputes", middleware.UUIDValidator("id"), tradeHandler.ListDisputes)
		protected.GET("/trades/:id/redirections", middleware.UUIDValidator("id"), redirectionHandler.ListTradeRedirections)

		protected.GET("/trust/me", trustHandler.GetMyProfile)
		protected.GET("/trust/:id/score", middleware.UUIDValidator("id"), trustHandler.GetUserScore)

		protected.POST("/media/photos", mediaHandler.UploadPhoto)
		protected.GET("/media/:id", middleware.UUIDValidator("id"), mediaHandler.GetMedia)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
	}

	// Arbitrage des litiges : réservé au service de modération. Un JWT
	// participant ne passe pas cette garde, donc ni un tiers ni une
	// partie au litige ne peut trancher.
	arbitration := api.Group("/")
	arbitration.Use(middleware.ArbiterAuthMiddleware(cfg.ArbiterToken))
	{
		arbitration.POST("/trades/:id/disputes/resolve", middleware.UUIDValidator("id"), tradeHandler.ResolveDispute)
	}

	// Webhook transporteur : authentification par jeton partagé et
	// limitation de débit propre.
	carrier := api.Group("/carrier")
	carrier.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	carrier.Use(middleware.CarrierAuthMiddleware(cfg.CarrierWebhookToken))
	{
		carrier.POST("/redirections/:code/resolve", redirectionHandler.ResolveRedirection)
		carrier.GET("/redirections/:code", redirectionHandler.GetRedirectionStatus)
	}

	return r
}
