package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commevents/backend/handlers"
	"github.com/commevents/backend/internal/calendar"
	"github.com/commevents/backend/internal/config"
	"github.com/commevents/backend/internal/database"
	"github.com/commevents/backend/internal/events"
	"github.com/commevents/backend/internal/oidc"
	"github.com/commevents/backend/internal/registration"
	"github.com/commevents/backend/internal/storage"
	"github.com/commevents/backend/internal/users"
	"github.com/commevents/backend/pkg/logger"
	"github.com/commevents/backend/pkg/metrics"
	"github.com/commevents/backend/pkg/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var startTime = time.Now()

const mongoConnectAttempts = 5

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)
	logger.Configure(cfg.Server.Environment)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := database.ConnectWithRetry(ctx, database.Settings{
		URI:           cfg.MongoDB.URI,
		Timeout:       cfg.MongoDB.Timeout,
		SocketTimeout: cfg.MongoDB.SocketTimeout,
		MaxPoolSize:   cfg.MongoDB.MaxPoolSize,
	}, mongoConnectAttempts)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.MongoDB.Database)

	eventRepo := events.NewMongoRepository(mongoClient, db.Collection("events"), cfg.MongoDB.OpTimeout)
	userRepo := users.NewMongoUserRepository(db.Collection("users"), cfg.MongoDB.OpTimeout)
	if err := eventRepo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("event indexes: %v", err)
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("user indexes: %v", err)
	}

	// Redis is optional: it backs OAuth state and the shared rate limiter when reachable.
	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unavailable, falling back to MongoDB state: %v", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to redis at %s", addr)
		}
	}

	var states calendar.StateStore
	if rdb != nil {
		states = calendar.NewRedisStateStore(rdb, "")
	} else {
		ms := calendar.NewMongoStateStore(db.Collection("oauth_states"), cfg.MongoDB.OpTimeout)
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Warnf("oauth state indexes: %v", err)
		}
		states = ms
	}

	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limiter = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	verifier, err := oidc.New(ctx, oidc.Settings{
		Issuer:        cfg.OIDC.Issuer,
		ClientID:      cfg.OIDC.ClientID,
		AllowInsecure: cfg.OIDC.AllowInsecure,
	})
	if err != nil {
		logger.Fatalf("failed to initialize token verifier: %v", err)
	}

	objects, err := storage.NewMinIOStorage(ctx, storage.Settings{
		Endpoint:      cfg.MinIO.Endpoint,
		AccessKey:     cfg.MinIO.AccessKey,
		SecretKey:     cfg.MinIO.SecretKey,
		UseSSL:        cfg.MinIO.UseSSL,
		Bucket:        cfg.MinIO.Bucket,
		PublicBaseURL: cfg.MinIO.PublicBaseURL,
		OpTimeout:     cfg.MinIO.Timeout,
	})
	if err != nil {
		logger.Fatalf("failed to initialize object storage: %v", err)
	}

	userSvc := users.NewService(userRepo, eventRepo)
	eventSvc := events.NewService(eventRepo, userSvc)
	engine := registration.NewEngine(eventRepo, userSvc)
	calendarSvc := calendar.NewService(
		calendar.NewGoogleOAuth(calendar.OAuthSettings{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Timeout:      cfg.Google.Timeout,
		}),
		calendar.NewGoogleProvider("", cfg.Google.Timeout),
		userRepo, eventRepo, states,
		calendar.Options{CalendarID: cfg.Google.CalendarID},
	)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-ID")
	corsCfg.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	if len(cfg.Server.CORSOrigins) == 0 || cfg.Server.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "uptime": time.Since(startTime).String()})
	})
	r.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := gin.H{}
		ready := true
		if err := mongoClient.Ping(pctx, readpref.Primary()); err != nil {
			deps["mongodb"] = false
			ready = false
		} else {
			deps["mongodb"] = true
		}
		if err := objects.Ping(pctx); err != nil {
			deps["storage"] = false
			ready = false
		} else {
			deps["storage"] = true
		}
		// redis is optional; report it without failing readiness
		if rdb != nil {
			deps["redis"] = rdb.Ping(pctx).Err() == nil
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	routes := handlers.NewRoutes(r.Group("/api"), verifier, userSvc, limiter)
	handlers.NewEventHandler(eventSvc, engine).Register(routes)
	handlers.NewUserHandler(userSvc).Register(routes)
	handlers.NewCalendarHandler(calendarSvc).Register(routes)
	handlers.NewImageHandler(objects, userSvc, cfg.Upload.MaxBytes).Register(routes)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting community events API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
