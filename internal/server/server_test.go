package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Skufu/medipredict/internal/fixture"
	"github.com/Skufu/medipredict/internal/history"
	"github.com/Skufu/medipredict/internal/metadata"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/predict"
	"github.com/Skufu/medipredict/internal/report"
)

type fakeDB struct {
	history.Store
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type failingClassifier struct{ model.Classifier }

func (failingClassifier) Predict([]float64) (int, error) {
	return 0, errors.New("weights corrupted")
}

func testPredictor(t *testing.T) *predict.Predictor {
	t.Helper()
	models, data := t.TempDir(), t.TempDir()
	require.NoError(t, fixture.WriteModels(models))
	require.NoError(t, fixture.WriteData(data))
	p, err := predict.Load(context.Background(), predict.Sources{
		Models:  model.DirLoader(models),
		DataDir: data,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func newTestRouter(t *testing.T, mutate func(*Options)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts := Options{
		Predictor: testPredictor(t),
		Cache:     report.NewMemoryCache(time.Minute),
		Logger:    zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewRouter(opts)
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterReadyzWithoutDB(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["db"])
	assert.Equal(t, "ok", body["data"])
}

func TestRouterReadyzDBFailure(t *testing.T) {
	router := newTestRouter(t, func(o *Options) {
		o.History = fakeDB{err: errors.New("down")}
	})
	rec := do(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: down")
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestIndexListsSymptoms(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="Skin Rash">`)
	assert.Contains(t, rec.Body.String(), "Joint Pain")
}

func TestAPISymptoms(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, httptest.NewRequest(http.MethodGet, "/api/symptoms", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct{ Symptoms []string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Cough", "Fever", "Itching", "Joint Pain", "Skin Rash"}, body.Symptoms)
}

func TestAPIPredict(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res predict.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Fungal infection", res.PrimaryPrediction)
	assert.Equal(t, 85.0, res.Confidence)
	assert.Equal(t, 3, res.ModelAgreement)
	assert.Equal(t, 9.0, res.SeverityScore)
	assert.Len(t, res.Top3Predictions, 3)
	assert.NotEmpty(t, sessionCookie(t, rec).Value)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"primary_prediction", "top3_predictions", "rf_prediction", "nb_prediction",
		"svm_prediction", "risk_level", "risk_category", "symptoms_entered", "model_agreement"} {
		assert.Contains(t, raw, key)
	}
}

func TestAPIPredictTooFewSymptoms(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "fever"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Please select at least 3 symptoms"}`, rec.Body.String())

	rec = do(router, jsonRequest(t, "/api/predict", gin.H{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIPredictInvalidPayload(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := do(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid payload"}`, rec.Body.String())
}

func TestAPIPredictBodyLimit(t *testing.T) {
	router := newTestRouter(t, func(o *Options) { o.MaxBodyBytes = 16 })
	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIPredictModelFailure(t *testing.T) {
	a := fixture.Artifacts()
	a.Bayes = failingClassifier{a.Bayes}
	p, err := predict.New(predict.Options{Artifacts: a})
	require.NoError(t, err)

	router := newTestRouter(t, func(o *Options) { o.Predictor = p })
	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"prediction failed","kind":"model_unavailable"}`, rec.Body.String())

	form := url.Values{"symptoms": {"Itching", "Skin Rash", "Fever"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = do(router, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "An error occurred during prediction.")
}

func TestFormPredict(t *testing.T) {
	router := newTestRouter(t, nil)

	form := url.Values{"symptoms": {"Itching", "Skin Rash", "Fever"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Fungal infection</h1>")
	assert.Contains(t, body, "Confidence: 85.00%")
	assert.Contains(t, body, "badge-warning")
	assert.Contains(t, body, "bath twice")
	sessionCookie(t, rec)
}

func TestFormPredictTooFewSymptoms(t *testing.T) {
	router := newTestRouter(t, nil)
	form := url.Values{"symptoms": {"Itching", "Fever"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please select at least 3 symptoms")
	assert.Contains(t, rec.Body.String(), `<option value="Itching">`)
}

func TestDownloadReport(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/download-report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No report data found. Please perform a prediction first.", rec.Body.String())

	rec = do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/download-report", nil)
	req.AddCookie(cookie)
	rec = do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), report.FileName)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestReportsAreScopedToSession(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	require.Equal(t, http.StatusOK, rec.Code)

	other := httptest.NewRequest(http.MethodGet, "/download-report", nil)
	other.AddCookie(&http.Cookie{Name: SessionCookie, Value: "6f1c3c1e-1d2b-4a7a-9a3e-0d4c1b2a3f4e"})
	assert.Equal(t, http.StatusNotFound, do(router, other).Code)

	bogus := httptest.NewRequest(http.MethodGet, "/download-report", nil)
	bogus.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})
	assert.Equal(t, http.StatusNotFound, do(router, bogus).Code)
}

func TestSessionCookieReused(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	cookie := sessionCookie(t, rec)

	req := jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"fever", "cough", "joint_pain"}})
	req.AddCookie(cookie)
	rec = do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestDiseases(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, httptest.NewRequest(http.MethodGet, "/api/diseases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct{ Diseases []metadata.Disease }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Diseases, 2)
	assert.Equal(t, "Fungal infection", body.Diseases[0].Name)

	rec = do(router, httptest.NewRequest(http.MethodGet, "/diseases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Common Cold")

	rec = do(router, httptest.NewRequest(http.MethodGet, "/about", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "educational purposes only")
}

func TestDiseasesWithoutMetadata(t *testing.T) {
	p, err := predict.New(predict.Options{Artifacts: fixture.Artifacts()})
	require.NoError(t, err)
	router := newTestRouter(t, func(o *Options) { o.Predictor = p })

	rec := do(router, httptest.NewRequest(http.MethodGet, "/api/diseases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"diseases":[]}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store, err := history.OpenSQLite(context.Background(), "file:server_history?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	router = newTestRouter(t, func(o *Options) { o.History = store })
	rec = do(router, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"history":[]}`, rec.Body.String())

	rec = do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(cookie)
	rec = do(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct{ History []history.Record }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.History, 1)
	assert.Equal(t, "Fungal infection", body.History[0].Prediction)
	assert.Equal(t, cookie.Value, body.History[0].Session)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching", "skin_rash", "fever"}}))
	do(router, jsonRequest(t, "/api/predict", gin.H{"symptoms": []string{"itching"}}))

	rec := do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `medipredict_predictions_total{risk_level="MODERATE"} 1`)
	assert.Contains(t, body, `medipredict_prediction_errors_total{kind="input"} 1`)
}
