package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/caseforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/caseforge-backend/internal/http/middleware"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	CaseHandler         *httpH.CaseHandler
	DocumentHandler     *httpH.DocumentHandler
	AnalysisHandler     *httpH.AnalysisHandler
	VerificationHandler *httpH.VerificationHandler
	RoutingHandler      *httpH.RoutingHandler
	ArtifactHandler     *httpH.ArtifactHandler
	EventHandler        *httpH.EventHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.OptionalAuth())
	}

	// Cases + survey
	if cfg.CaseHandler != nil {
		api.POST("/cases", cfg.CaseHandler.Create)
		api.GET("/cases/:caseId", cfg.CaseHandler.Get)
		api.POST("/cases/:caseId/claim", cfg.CaseHandler.Claim)
		api.GET("/cases/:caseId/survey", cfg.CaseHandler.GetSurvey)
		api.PATCH("/cases/:caseId/survey", cfg.CaseHandler.PatchSurvey)
	}

	// Documents
	if cfg.DocumentHandler != nil {
		api.POST("/cases/:caseId/documents", cfg.DocumentHandler.Upload)
		api.GET("/cases/:caseId/documents", cfg.DocumentHandler.List)
		api.PATCH("/cases/:caseId/documents/:documentId", cfg.DocumentHandler.Edit)
		api.POST("/cases/:caseId/documents/:documentId/finalize", cfg.DocumentHandler.Finalize)
		api.GET("/cases/:caseId/documents/:documentId/verifications", cfg.DocumentHandler.Verifications)
	}

	// Analysis + criterion evaluation
	if cfg.AnalysisHandler != nil {
		api.POST("/cases/:caseId/analysis/stream", cfg.AnalysisHandler.Stream)
		api.GET("/cases/:caseId/analysis", cfg.AnalysisHandler.Latest)
		api.GET("/cases/:caseId/analysis/versions", cfg.AnalysisHandler.Versions)
		api.POST("/cases/:caseId/criteria/:criterion/evaluate", cfg.AnalysisHandler.Evaluate)
		api.POST("/cases/:caseId/criteria/:criterion/evidence/remove", cfg.AnalysisHandler.RemoveEvidence)
	}

	// Verification + routing
	if cfg.VerificationHandler != nil {
		api.POST("/cases/:caseId/verification/stream", cfg.VerificationHandler.Stream)
	}
	if cfg.RoutingHandler != nil {
		api.GET("/cases/:caseId/routing", cfg.RoutingHandler.Overview)
		api.POST("/cases/:caseId/routing", cfg.RoutingHandler.Apply)
	}

	// Artifacts
	if cfg.ArtifactHandler != nil {
		api.POST("/cases/:caseId/gap-analysis/stream", cfg.ArtifactHandler.GapStream)
		api.GET("/cases/:caseId/gap-analysis", cfg.ArtifactHandler.GapLatest)
		api.POST("/cases/:caseId/denial-probability/stream", cfg.ArtifactHandler.DenialStream)
		api.GET("/cases/:caseId/denial-probability", cfg.ArtifactHandler.DenialLatest)
		api.POST("/cases/:caseId/consolidation/stream", cfg.ArtifactHandler.ConsolidationStream)
		api.GET("/cases/:caseId/consolidation", cfg.ArtifactHandler.ConsolidationLatest)
	}

	// Realtime (SSE)
	if cfg.EventHandler != nil {
		api.GET("/cases/:caseId/events", cfg.EventHandler.Stream)
	}

	return r
}
