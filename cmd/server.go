package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/auth"
	"giveaway/internal/config"
	"giveaway/internal/database"
	"giveaway/internal/handlers"
	"giveaway/internal/jobs"
	"giveaway/internal/middleware"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
	"giveaway/internal/services"
)

const (
	tokenTTL        = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, log); err != nil {
		return err
	}

	reader, err := database.NewReader(db, cfg.Database.Driver)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Change feed: in-process hub, bridged through LISTEN/NOTIFY on postgres
	// so every instance sees every write.
	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	if cfg.Database.Driver == "postgres" {
		bridge, err := realtime.NewPGBridge(cfg.Database.GetDSN(), db, hub, log)
		if err != nil {
			return err
		}
		defer bridge.Close()
		publisher = bridge
		g.Go(func() error {
			if err := bridge.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	var gateway services.PushGateway = services.NewLogPushGateway(log)
	if cfg.Push.Endpoint != "" {
		gateway = services.NewHTTPPushGateway(cfg.Push.Endpoint, cfg.Push.APIKey, cfg.Push.Timeout)
	}

	// Initialize services
	repo := repository.NewRepository(db)
	tokens := auth.NewTokenManager(cfg.App.JWTSecret, tokenTTL)
	userService := services.NewUserService(repo, log)
	hostService := services.NewHostService(repo, log)
	ledger := services.NewParticipationService(repo, userService, publisher, log)
	linkService := services.NewLinkService(repo, publisher, log, cfg.App.PublicOrigin, cfg.Tracking.UniqueVisitorWindow)
	notifier := services.NewNotificationService(repo, gateway, log)
	campaignService := services.NewCampaignService(repo, hostService, ledger, linkService, notifier, hub, publisher, log)
	analyticsService := services.NewAnalyticsService(repository.NewAnalyticsStore(reader), log)
	authService := services.NewAuthService(userService, tokens, log)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "Accept-Language", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/health/db", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authService),
		User:          handlers.NewUserHandler(userService, authService),
		Host:          handlers.NewHostHandler(hostService),
		Campaign:      handlers.NewCampaignHandler(campaignService, log),
		Participation: handlers.NewParticipationHandler(ledger, campaignService),
		Link:          handlers.NewLinkHandler(linkService, campaignService, log),
		Analytics:     handlers.NewAnalyticsHandler(analyticsService, campaignService),
	}, handlers.RouteOptions{
		RequireAuth:  tokens.Middleware(log),
		OptionalAuth: tokens.OptionalMiddleware(),
		ClickLimit:   middleware.RateLimit(middleware.NewIPRateLimiter(cfg.Tracking.ClickRateLimit, cfg.Tracking.ClickBurst)),
		DevSessions:  cfg.App.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		// h2c serves HTTP/2 without TLS behind the load balancer
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}

	// Campaign streams never finish on their own; cancel request contexts
	// once shutdown starts so they release their connections.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	server.RegisterOnShutdown(cancelBase)

	closer := jobs.NewCampaignClosingJob(campaignService, cfg.Jobs.CloserInterval, log)
	reconciler := jobs.NewCounterReconcileJob(campaignService, cfg.Jobs.ReconcileInterval, log)
	g.Go(func() error {
		closer.Start(gctx)
		return nil
	})
	g.Go(func() error {
		reconciler.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.App.Environment),
			zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// Winner pushes started by draws finish before the database closes.
	campaignService.Wait()
	if err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
