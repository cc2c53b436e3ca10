// Package metrics holds the prometheus collectors for predictions and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records prediction outcomes on its own registry.
type Collector struct {
	registry *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionErrors   *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	agreement          *prometheus.CounterVec
	reports            prometheus.Counter
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medipredict_predictions_total",
				Help: "Total number of successful predictions by risk level",
			},
			[]string{"risk_level"},
		),
		predictionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medipredict_prediction_errors_total",
				Help: "Total number of failed predictions by error kind",
			},
			[]string{"kind"},
		),
		predictionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medipredict_prediction_duration_seconds",
				Help:    "Prediction pipeline duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		agreement: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medipredict_model_agreement_total",
				Help: "Predictions by number of agreeing model pairs",
			},
			[]string{"agreement"},
		),
		reports: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "medipredict_reports_total",
				Help: "Total number of PDF reports rendered",
			},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medipredict_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medipredict_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObservePrediction records a successful prediction.
func (c *Collector) ObservePrediction(riskLevel string, agreement int, elapsed time.Duration) {
	c.predictions.WithLabelValues(riskLevel).Inc()
	c.agreement.WithLabelValues(strconv.Itoa(agreement)).Inc()
	c.predictionDuration.Observe(elapsed.Seconds())
}

// ObserveError records a failed prediction.
func (c *Collector) ObserveError(kind string) {
	c.predictionErrors.WithLabelValues(kind).Inc()
}

// ObserveReport records a rendered report.
func (c *Collector) ObserveReport() {
	c.reports.Inc()
}

// Middleware records request counts and latency per matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.requests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
