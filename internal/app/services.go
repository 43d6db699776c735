package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/jobs/persist"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/modules/routing"
	"github.com/yungbote/caseforge-backend/internal/modules/verification"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

type Services struct {
	Case       services.CaseService
	Survey     services.SurveyService
	Document   services.DocumentService
	Evaluation *evaluation.Service
	Verifier   *verification.Service
	Router     *routing.Engine
	Pipeline   *pipeline.Pipeline
	Persist    *persist.Queue
	Relay      *realtime.Relay
	Hub        *realtime.Hub
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	queue := persist.NewQueue(log, cfg.Persist, c.DeadLetters)
	verifier := verification.New(verification.Deps{
		DB:            db,
		Log:           log,
		Gen:           c.Generator,
		Verifications: r.Verification,
		Concurrency:   cfg.VerifyConcurrency,
	})
	router := routing.NewEngine(routing.Deps{
		DB:            db,
		Log:           log,
		Documents:     r.Document,
		Verifications: r.Verification,
		Routes:        r.Routing,
	})

	return Services{
		Case:     services.NewCaseService(log, r.Case),
		Survey:   services.NewSurveyService(db, log, r.CaseProfile, r.Analysis),
		Document: services.NewDocumentService(log, r.Document, services.NewDocumentClassifier(log, c.Generator)),
		Evaluation: evaluation.New(evaluation.Deps{
			Log:       log,
			Gen:       c.Generator,
			Search:    c.Search,
			Analyses:  r.Analysis,
			Documents: r.Document,
		}),
		Verifier: verifier,
		Router:   router,
		Pipeline: pipeline.New(pipeline.Deps{
			DB:             db,
			Log:            log,
			Gen:            c.Generator,
			Queue:          queue,
			Cases:          r.Case,
			Profiles:       r.CaseProfile,
			Analyses:       r.Analysis,
			Documents:      r.Document,
			Verifications:  r.Verification,
			Routes:         r.Routing,
			Gaps:           r.GapAnalysis,
			Denials:        r.Denial,
			Consolidations: r.Consolidation,
			Verifier:       verifier,
			Router:         router,
			Search:         c.Search,
		}),
		Persist: queue,
		Relay:   realtime.NewRelay(log, c.FrameBus),
		Hub:     realtime.NewHub(log),
	}
}
