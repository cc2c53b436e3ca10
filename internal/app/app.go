// Package app assembles the predictor, caches and stores from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/config"
	"github.com/Skufu/medipredict/internal/history"
	"github.com/Skufu/medipredict/internal/metrics"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/model/onnx"
	"github.com/Skufu/medipredict/internal/predict"
	"github.com/Skufu/medipredict/internal/report"
	"github.com/Skufu/medipredict/internal/server"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Predictor *predict.Predictor
	Cache     report.Cache
	History   history.Store
	Metrics   *metrics.Collector

	closers []func() error
}

// ModelLoader picks the artifact loader for backend.
func ModelLoader(backend, dir, onnxLib string) (model.Loader, error) {
	switch strings.ToLower(backend) {
	case config.BackendNative, "":
		return model.DirLoader(dir), nil
	case config.BackendONNX:
		return func(context.Context) (*model.Artifacts, error) {
			return onnx.LoadDir(dir, onnxLib)
		}, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", backend)
	}
}

// LoadPredictor loads models and data tables for cfg.
func LoadPredictor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*predict.Predictor, error) {
	loader, err := ModelLoader(cfg.ModelBackend, cfg.ModelsDir, cfg.ONNXRuntimeLib)
	if err != nil {
		return nil, err
	}
	return predict.Load(ctx, predict.Sources{Models: loader, DataDir: cfg.DataDir}, logger)
}

// New connects every dependency cfg asks for. On error, whatever was
// already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	p, err := LoadPredictor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load predictor: %w", err)
	}
	a.Predictor = p
	a.addModelClosers(cfg.ModelBackend, p.Close)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     strings.TrimPrefix(cfg.RedisAddr, "redis://"),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.Cache = report.NewRedisCache(rdb, cfg.ReportTTL)
		logger.Info("report cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		a.Cache = report.NewMemoryCache(cfg.ReportTTL)
		logger.Info("report cache: memory")
	}

	if cfg.EnableDB {
		driver, err := cfg.DatabaseDriver()
		if err != nil {
			a.Close()
			return nil, err
		}
		dsn := cfg.DatabaseURL
		if driver == config.DriverSQLite {
			dsn = cfg.SQLiteDSN()
		}
		store, err := history.Open(ctx, driver, dsn)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.History = store
		a.closers = append(a.closers, store.Close)
		logger.Info("prediction history enabled", zap.String("driver", driver))
	}

	return a, nil
}

var shutdownONNX = onnx.Shutdown

// addModelClosers registers the predictor's closer after the backend
// teardown, so Close destroys model sessions before the runtime unloads.
func (a *App) addModelClosers(backend string, closePredictor func() error) {
	if strings.EqualFold(backend, config.BackendONNX) {
		a.closers = append(a.closers, shutdownONNX)
	}
	a.closers = append(a.closers, closePredictor)
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return server.NewRouter(server.Options{
		Predictor:    a.Predictor,
		Cache:        a.Cache,
		History:      a.History,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
		StaticDir:    a.Config.StaticDir,
		MaxBodyBytes: a.Config.MaxBodyBytes,
		AllowOrigins: a.Config.CORSAllowedOrigins,
		SessionTTL:   a.Config.ReportTTL,
		HistoryLimit: a.Config.HistoryLimit,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
