package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
	"github.com/probe365/advocacia-ia-sub000/internal/core/ports"
	"github.com/probe365/advocacia-ia-sub000/internal/observability/metrics"
)

const (
	serviceName  = "classifier"
	maxBodyBytes = 10 << 20
)

// Router serves the classifier wire protocol.
type Router struct {
	cfg        config.Config
	classifier ports.ClassifierService
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	classifier ports.ClassifierService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if httpMetrics != nil {
		httpMetrics.SetIndexSize(classifier.IndexSize())
	}
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		metrics:    httpMetrics,
		logger:     logger.With("component", "classifier_http"),
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /predict", rt.predict)
	api.HandleFunc("POST /batch_predict", rt.batchPredict)
	api.HandleFunc("POST /index", rt.index)
	api.HandleFunc("POST /similar", rt.similar)
	api.HandleFunc("POST /reset_index", rt.resetIndex)

	limited := newAdmission(api, admissionConfig{
		RPS:         rt.cfg.ClassifierRateLimitRPS,
		Burst:       rt.cfg.ClassifierRateLimitBurst,
		MaxInFlight: rt.cfg.ClassifierMaxInFlight,
		Wait:        time.Duration(rt.cfg.ClassifierInFlightWaitMS) * time.Millisecond,
	}, rt.rejected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", rt.health)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) rejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejection(serviceName, reason)
	}
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"labels":     rt.classifier.Labels(),
		"index_size": rt.classifier.IndexSize(),
	})
}

func (rt *Router) predict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	prediction, err := rt.classifier.Predict(req.Text)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.recordPredictions(prediction)
	writeJSON(w, http.StatusOK, prediction)
}

func (rt *Router) batchPredict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	predictions, err := rt.classifier.BatchPredict(req.Texts)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.recordPredictions(predictions...)
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Docs []domain.IndexDoc `json:"docs"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := rt.classifier.IndexDocs(req.Docs)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	size := rt.classifier.IndexSize()
	if rt.metrics != nil {
		rt.metrics.SetIndexSize(size)
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed": n, "index_size": size})
}

func (rt *Router) similar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	hits, err := rt.classifier.Similar(req.Query, req.K)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (rt *Router) resetIndex(w http.ResponseWriter, r *http.Request) {
	if err := rt.classifier.ResetIndex(); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.SetIndexSize(0)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "index_size": 0})
}

func (rt *Router) recordPredictions(predictions ...domain.Prediction) {
	if rt.metrics == nil {
		return
	}
	for _, p := range predictions {
		rt.metrics.RecordPrediction(serviceName, p.Label)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("classifier_request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
