package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestHTTPServerMetricsRecordsRequestsAndPredictions(t *testing.T) {
	m := NewHTTPServerMetrics("classifier")
	handler := m.Middleware("classifier", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))
	m.RecordPrediction("classifier", "civel")
	m.SetIndexSize(3)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`advocacia_http_requests_total{method="POST",path="/predict",service="classifier",status="418"} 1`,
		`advocacia_classifier_predictions_total{label="civel",service="classifier"} 1`,
		`advocacia_classifier_semantic_index_size{service="classifier"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestWorkerMetricsLabelsJobStatus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartJob()
	m.FinishJob("worker", "pdf", 4, time.Second, nil)
	m.StartJob()
	m.FinishJob("worker", "", 0, time.Second, errors.New("boom"))
	m.StartJob()
	m.FinishJob("worker", "image", 0, time.Second, nil)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`advocacia_worker_upload_jobs_total{media="pdf",service="worker",status="success"} 1`,
		`advocacia_worker_upload_jobs_total{media="unknown",service="worker",status="error"} 1`,
		`advocacia_worker_upload_jobs_total{media="image",service="worker",status="empty"} 1`,
		`advocacia_worker_chunks_ingested_total{media="pdf",service="worker"} 4`,
		`advocacia_worker_upload_jobs_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
