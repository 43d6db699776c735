package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/http"
	httpH "github.com/yungbote/caseforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/caseforge-backend/internal/http/middleware"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Case         *httpH.CaseHandler
	Document     *httpH.DocumentHandler
	Analysis     *httpH.AnalysisHandler
	Verification *httpH.VerificationHandler
	Routing      *httpH.RoutingHandler
	Artifact     *httpH.ArtifactHandler
	Event        *httpH.EventHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, r Repos, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Case:         httpH.NewCaseHandler(log, s.Case, s.Survey),
		Document:     httpH.NewDocumentHandler(log, s.Case, s.Document, s.Verifier),
		Analysis:     httpH.NewAnalysisHandler(log, s.Case, r.Analysis, s.Pipeline, s.Evaluation, s.Relay),
		Verification: httpH.NewVerificationHandler(log, s.Case, s.Pipeline, s.Relay),
		Routing:      httpH.NewRoutingHandler(log, s.Case, s.Router),
		Artifact:     httpH.NewArtifactHandler(log, s.Case, s.Pipeline, s.Relay, r.GapAnalysis, r.Denial, r.Consolidation),
		Event:        httpH.NewEventHandler(log, s.Case, s.Hub),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                 log,
		ServiceName:         cfg.Otel.ServiceName,
		CORSOrigins:         cfg.CORSOrigins,
		Metrics:             metrics,
		AuthMiddleware:      middleware.Auth,
		CaseHandler:         handlers.Case,
		DocumentHandler:     handlers.Document,
		AnalysisHandler:     handlers.Analysis,
		VerificationHandler: handlers.Verification,
		RoutingHandler:      handlers.Routing,
		ArtifactHandler:     handlers.Artifact,
		EventHandler:        handlers.Event,
		HealthHandler:       handlers.Health,
	})
}
