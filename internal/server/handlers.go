package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/history"
	"github.com/Skufu/medipredict/internal/metadata"
	"github.com/Skufu/medipredict/internal/predict"
	"github.com/Skufu/medipredict/internal/report"
)

const (
	predictionFailed = "An error occurred during prediction."
	noReport         = "No report data found. Please perform a prediction first."
)

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

func (h *handlers) index(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, "")
}

func (h *handlers) renderIndex(c *gin.Context, status int, errMsg string) {
	c.HTML(status, "index.html", gin.H{
		"Title":    "Symptom Checker",
		"Symptoms": h.predictor.Vocabulary().DisplayNames(),
		"Error":    errMsg,
	})
}

func (h *handlers) about(c *gin.Context) {
	c.HTML(http.StatusOK, "about.html", gin.H{"Title": "About"})
}

func (h *handlers) diseases(c *gin.Context) {
	c.HTML(http.StatusOK, "diseases.html", gin.H{
		"Title":    "Diseases",
		"Diseases": h.predictor.Metadata().Diseases(),
	})
}

func (h *handlers) predictForm(c *gin.Context) {
	symptoms := c.PostFormArray("symptoms")
	if err := predict.CheckSymptoms(symptoms); err != nil {
		h.metrics.ObserveError(string(predict.KindInput))
		h.renderIndex(c, http.StatusOK, err.Error())
		return
	}

	res, err := h.run(c.Request.Context(), symptoms)
	if err != nil {
		h.renderIndex(c, http.StatusInternalServerError, predictionFailed)
		return
	}

	h.remember(c, res)
	c.HTML(http.StatusOK, "result.html", gin.H{"Title": res.PrimaryPrediction, "Result": res})
}

func (h *handlers) predictJSON(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := predict.CheckSymptoms(req.Symptoms); err != nil {
		h.metrics.ObserveError(string(predict.KindInput))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.run(c.Request.Context(), req.Symptoms)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "prediction failed",
			"kind":  predict.KindOf(err),
		})
		return
	}

	h.remember(c, res)
	c.JSON(http.StatusOK, res)
}

// run predicts and records metrics. Errors are already logged by the
// predictor.
func (h *handlers) run(ctx context.Context, symptoms []string) (*predict.Result, error) {
	start := time.Now()
	res, err := h.predictor.Predict(ctx, symptoms)
	if err != nil {
		h.metrics.ObserveError(string(predict.KindOf(err)))
		return nil, err
	}
	h.metrics.ObservePrediction(string(res.RiskLevel), res.ModelAgreement, time.Since(start))
	return res, nil
}

// remember stores res as the session's latest result and appends it to the
// history. Storage failures are logged and do not fail the request.
func (h *handlers) remember(c *gin.Context, res *predict.Result) {
	session := h.session(c, true)
	ctx := c.Request.Context()

	if err := h.cache.Put(ctx, session, res); err != nil {
		h.logger.Warn("cache result for report", zap.Error(err))
	}
	if h.history != nil {
		if err := h.history.Save(ctx, history.FromResult(session, res)); err != nil {
			h.logger.Warn("save prediction history", zap.Error(err))
		}
	}
}

func (h *handlers) symptoms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symptoms": h.predictor.Vocabulary().DisplayNames()})
}

func (h *handlers) diseaseList(c *gin.Context) {
	list := h.predictor.Metadata().Diseases()
	if list == nil {
		list = []metadata.Disease{}
	}
	c.JSON(http.StatusOK, gin.H{"diseases": list})
}

func (h *handlers) downloadReport(c *gin.Context) {
	session := h.session(c, false)
	if session == "" {
		c.String(http.StatusNotFound, noReport)
		return
	}

	res, err := h.cache.Get(c.Request.Context(), session)
	if err != nil {
		h.logger.Error("load cached result", zap.Error(err))
		c.String(http.StatusInternalServerError, "Could not load report data.")
		return
	}
	if res == nil {
		c.String(http.StatusNotFound, noReport)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, res, h.now()); err != nil {
		h.logger.Error("render report", zap.Error(err))
		c.String(http.StatusInternalServerError, "Could not render report.")
		return
	}
	h.metrics.ObserveReport()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *handlers) historyList(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	session := h.session(c, false)
	if session == "" {
		c.JSON(http.StatusOK, gin.H{"history": []history.Record{}})
		return
	}
	records, err := h.history.Recent(c.Request.Context(), session, h.historyLimit)
	if err != nil {
		h.logger.Error("list prediction history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

func (h *handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "models": "ok", "data": "ok", "db": "disabled", "cache": "memory"}

	if err := h.predictor.Degraded(); err != nil {
		body["data"] = fmt.Sprintf("degraded: %v", err)
	}
	if h.history != nil {
		body["db"] = "ok"
		if err := h.history.Ping(ctx); err != nil {
			body["db"] = fmt.Sprintf("unhealthy: %v", err)
			status = http.StatusServiceUnavailable
		}
	}
	if checker, ok := h.cache.(HealthChecker); ok {
		body["cache"] = "ok"
		if err := checker.Ping(ctx); err != nil {
			body["cache"] = fmt.Sprintf("unhealthy: %v", err)
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
