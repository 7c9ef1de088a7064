package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/probe365/advocacia-ia-sub000/internal/adapters/http"
	"github.com/probe365/advocacia-ia-sub000/internal/classifier"
	"github.com/probe365/advocacia-ia-sub000/internal/config"
	"github.com/probe365/advocacia-ia-sub000/internal/observability/metrics"
)

// ClassifierApp is the classifier process: the loaded model plus its HTTP surface.
type ClassifierApp struct {
	Service *classifier.Service
	Handler http.Handler
}

// NewClassifier refuses to build when the artifacts are incomplete.
func NewClassifier(cfg config.Config, logger *slog.Logger) (*ClassifierApp, error) {
	svc, err := classifier.Load(cfg.ClassifierArtifactsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load classifier from %s: %w", cfg.ClassifierArtifactsDir, err)
	}
	router := httpadapter.NewRouter(cfg, svc, metrics.NewHTTPServerMetrics("classifier"), logger)
	return &ClassifierApp{Service: svc, Handler: router.Handler()}, nil
}
