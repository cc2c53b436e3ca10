// Package server is the HTTP surface: HTML pages, the JSON API, report
// downloads and health probes.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/history"
	"github.com/Skufu/medipredict/internal/logging"
	"github.com/Skufu/medipredict/internal/metrics"
	"github.com/Skufu/medipredict/internal/predict"
	"github.com/Skufu/medipredict/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options wires the router. Predictor and Cache are required; History and
// Metrics may be nil.
type Options struct {
	Predictor    *predict.Predictor
	Cache        report.Cache
	History      history.Store
	Metrics      *metrics.Collector
	Logger       *zap.Logger
	StaticDir    string
	MaxBodyBytes int64
	AllowOrigins []string
	SessionTTL   time.Duration
	HistoryLimit int
	Now          func() time.Time
}

type handlers struct {
	predictor    *predict.Predictor
	cache        report.Cache
	history      history.Store
	metrics      *metrics.Collector
	logger       *zap.Logger
	sessionTTL   time.Duration
	historyLimit int
	now          func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	h := &handlers{
		predictor:    opts.Predictor,
		cache:        opts.Cache,
		history:      opts.History,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		sessionTTL:   opts.SessionTTL,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 30 * time.Minute
	}
	if h.historyLimit <= 0 {
		h.historyLimit = 20
	}
	if h.now == nil {
		h.now = time.Now
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		logging.Middleware(h.logger),
		gin.Recovery(),
		h.metrics.Middleware(),
		limitBodySize(maxBody),
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)
	router.SetHTMLTemplate(template.Must(
		template.New("").Funcs(template.FuncMap{"join": strings.Join}).ParseFS(templateFS, "templates/*.html"),
	))

	if opts.StaticDir != "" {
		router.Static("/static", opts.StaticDir)
	}

	router.GET("/", h.index)
	router.POST("/predict", h.predictForm)
	router.GET("/about", h.about)
	router.GET("/diseases", h.diseases)
	router.GET("/download-report", h.downloadReport)

	api := router.Group("/api")
	api.POST("/predict", h.predictJSON)
	api.GET("/symptoms", h.symptoms)
	api.GET("/diseases", h.diseaseList)
	api.GET("/history", h.historyList)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.ready)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	return router
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
