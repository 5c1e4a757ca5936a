package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadp "chainlend-backend/internal/adapter/http"
	"chainlend-backend/internal/adapter/middleware"
	"chainlend-backend/internal/adapter/repository/mysql"
	"chainlend-backend/internal/infrastructure/cache"
	"chainlend-backend/internal/infrastructure/db"
	"chainlend-backend/internal/infrastructure/metrics"
	"chainlend-backend/internal/risk"
	"chainlend-backend/internal/usecase/lending"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lending HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "migrate the schema before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), db.DefaultPool(), log.Named("gorm"))
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	if doMigrate, _ := cmd.Flags().GetBool("migrate"); doMigrate {
		if err := migrate(ctx, gdb, cfg); err != nil {
			return err
		}
	}

	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	m := metrics.New()
	orc, releaseOracle, err := buildOracle(ctx, cfg, rdb, m, log)
	if err != nil {
		return err
	}
	defer releaseOracle()
	pub, closePub, err := buildPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePub()

	svc := lending.New(mysql.NewGormUoW(gdb), orc, risk.DefaultCalculator(), buildSettings(cfg),
		lending.WithLogger(log.Named("lending")),
		lending.WithPublisher(pub),
		lending.WithObserver(m.ObserveOperation),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover(), requestLogger(log.Named("http")))

	checks := map[string]httpadp.Pinger{
		"mysql": sqlDB.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	httpadp.RegisterRoutes(e, httpadp.NewHandler(checks), httpadp.NewLendingHandler(svc),
		middleware.IdempotencyMiddleware(rdb, cfg.IdempTTL(), log.Named("idempotency")))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		log.Info("listening", zap.String("addr", addr), zap.String("price_source", cfg.PriceSource))
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("account", c.Request().Header.Get(middleware.HeaderAccountID)),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
