package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bernard777/cadok-backend-sub005/internal/carrier"
	"github.com/bernard777/cadok-backend-sub005/internal/config"
	"github.com/bernard777/cadok-backend-sub005/internal/crypto"
	"github.com/bernard777/cadok-backend-sub005/internal/db"
	"github.com/bernard777/cadok-backend-sub005/internal/goroutine"
	httpHandlers "github.com/bernard777/cadok-backend-sub005/internal/http/handlers"
	httpRouter "github.com/bernard777/cadok-backend-sub005/internal/http/router"
	"github.com/bernard777/cadok-backend-sub005/internal/logger"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
	"github.com/bernard777/cadok-backend-sub005/internal/service"
	"github.com/bernard777/cadok-backend-sub005/internal/storage"
	"github.com/bernard777/cadok-backend-sub005/internal/ws"
)

func main() {
	// Contexte pour l'arrêt propre.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: erreur de chargement de la configuration: %v", err)
	}

	// Initialisation du logger.
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Connexion base et migrations.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: erreur de connexion à la base: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: erreur de migrations: %v", err)
	}

	// Services auxiliaires.
	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	addressCipher, err := crypto.NewAddressCipher(cfg.AddressEncryptionKey)
	if err != nil {
		log.Fatalf("main: impossible d'initialiser le chiffrement des adresses: %v", err)
	}

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: impossible de préparer le stockage fichier: %v", err)
	}

	// Dépôts.
	userDirectory := repository.NewUserDirectory(dbConn)
	tradeRepo := repository.NewTradeRepository(dbConn)
	trustProfileRepo := repository.NewTrustProfileRepository(dbConn)
	redirectionRepo := repository.NewRedirectionRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Services métier.
	trustService := service.NewTrustService(trustProfileRepo, userDirectory)
	notificationService := service.NewNotificationService(notificationRepo)

	var carrierClient service.CarrierNotifier
	if c := carrier.NewClient(cfg.CarrierBaseURL, cfg.CarrierAPIKey); c != nil {
		carrierClient = c
	}
	redirectionService := service.NewRedirectionService(
		redirectionRepo, addressCipher, carrierClient,
		cfg.RedirectionPrefix, cfg.WarehouseAddress, cfg.RedirectionTTL)

	tradeService := service.NewTradeService(tradeRepo, trustService, redirectionService, userDirectory, mediaRepo)

	// WebSockets.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	tradeService.SetNotifier(hub)

	// Balayage périodique des codes de redirection échus.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		redirectionService.RunExpirySweep(ctx, cfg.RedirectionSweep)
	})

	// Handlers HTTP.
	tradeHandler := httpHandlers.NewTradeHandler(tradeService)
	redirectionHandler := httpHandlers.NewRedirectionHandler(redirectionService, tradeService)
	trustHandler := httpHandlers.NewTrustHandler(trustService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaRepo, photoStorage)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Routeur.
	engine := httpRouter.SetupRouter(cfg, tradeHandler, redirectionHandler, trustHandler,
		mediaHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Arrêt du serveur sur signal.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: erreur d'arrêt du serveur http: %v", err)
		}
	}()

	log.Printf("main: serveur HTTP démarré sur le port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: le serveur s'est arrêté en erreur: %v", err)
	}
}

// safeClose ferme la connexion à la base.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: erreur de fermeture de la base: %v", err)
	}
}
