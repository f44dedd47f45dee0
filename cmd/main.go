package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vnkhanh/tracer-study/cache"
	"github.com/vnkhanh/tracer-study/config"
	"github.com/vnkhanh/tracer-study/controllers"
	"github.com/vnkhanh/tracer-study/events"
	"github.com/vnkhanh/tracer-study/exporter"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/middleware"
	"github.com/vnkhanh/tracer-study/routes"
	"github.com/vnkhanh/tracer-study/services"
	"github.com/vnkhanh/tracer-study/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(".env", "config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logger.Init(logger.Config{
		LogFile:   cfg.Log.File,
		LogLevel:  cfg.Log.Level,
		AppName:   "tracer-study",
		AddCaller: true,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.Connect(5, 3*time.Second, func() (*gorm.DB, error) {
		return config.ConnectDB(cfg.DB)
	})
	if err != nil {
		lg.Fatal("error connecting to database", zap.Error(err))
	}

	closers := utils.NewCloserGroup()
	defer func() {
		if err := closers.Close(); err != nil {
			lg.Error("error closing resources", zap.Error(err))
		}
	}()
	if sqlDB, err := db.DB(); err == nil {
		closers.Add(sqlDB)
	}

	var snapshots cache.SnapshotCache = cache.Noop{}
	if cfg.RedisURL != "" {
		client, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			lg.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		} else {
			snapshots = cache.NewRedis(client, 24*time.Hour, lg)
		}
	}
	closers.Add(snapshots)

	var publisher events.Publisher = events.NewLog(lg)
	if cfg.AMQPURL != "" {
		p, err := utils.Connect(3, 2*time.Second, func() (*events.AMQP, error) {
			conn, err := amqp.Dial(cfg.AMQPURL)
			if err != nil {
				return nil, err
			}
			p, err := events.NewAMQP(conn, cfg.AMQPExchange, lg)
			if err != nil {
				conn.Close()
			}
			return p, err
		})
		if err != nil {
			lg.Warn("broker unavailable, events are logged only", zap.Error(err))
		} else {
			publisher = p
		}
	}
	closers.Add(publisher)

	auth := services.NewAuthService(db, publisher, lg, services.AuthConfig{
		JWTSecret:   cfg.JWTSecret,
		OTPTTL:      cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		PerMinute:   cfg.OTP.PerMinute,
	})
	closers.Add(auth)
	schema := services.NewSchemaService(db, snapshots, publisher, lg)
	responses := services.NewResponseService(db, publisher, lg)
	exp := exporter.New(cfg.Export.Dir, cfg.Export.Timeout, lg)
	reports := services.NewReportService(schema, responses, exp, lg)

	if cfg.Admin.Email != "" {
		if _, err := auth.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			lg.Fatal("error seeding admin account", zap.Error(err))
		}
	}

	authLimiter := utils.NewKeyedLimiter(20, 20, 10*time.Minute)
	closers.Add(authLimiter)

	go exporter.RunSweeper(ctx, exp.Dir(), cfg.Export.MaxAge, cfg.Export.SweepInt, lg)

	r := gin.New()
	r.Use(middleware.RequestLogger(lg), middleware.Recovery(lg))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		lg.Fatal("error setting trusted proxies", zap.Error(err))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Tracer study server is running")
	})
	routes.SetupRoutes(r, routes.Deps{
		DB:        db,
		Auth:      auth,
		Schema:    schema,
		Responses: responses,
		Reports:   reports,
		Health: map[string]controllers.Healther{
			"cache":  snapshots,
			"events": publisher,
		},
		Logger:      lg,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("error during shutdown", zap.Error(err))
	}
}
