package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	httpH "github.com/yungbote/caseforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/caseforge-backend/internal/http/middleware"
	"github.com/yungbote/caseforge-backend/internal/jobs/persist"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/modules/routing"
	"github.com/yungbote/caseforge-backend/internal/modules/verification"
	"github.com/yungbote/caseforge-backend/internal/platform/openai/openaitest"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

const secret = "router-test-secret"

type api struct {
	t      *testing.T
	tx     *gorm.DB
	fake   *openaitest.Fake
	engine *gin.Engine
	hub    *realtime.Hub
	pipe   *pipeline.Pipeline
	queue  *persist.Queue
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	fake := openaitest.New()

	caseRepo := repos.NewCaseRepo(tx, log)
	profiles := repos.NewCaseProfileRepo(tx, log)
	analyses := repos.NewAnalysisRepo(tx, log)
	docs := repos.NewDocumentRepo(tx, log)
	verifs := repos.NewVerificationRepo(tx, log)
	routes := repos.NewRoutingRepo(tx, log)
	gaps := repos.NewGapAnalysisRepo(tx, log)
	denials := repos.NewDenialProbabilityRepo(tx, log)
	consolidations := repos.NewConsolidationRepo(tx, log)

	caseService := services.NewCaseService(log, caseRepo)
	docService := services.NewDocumentService(log, docs, services.NewDocumentClassifier(log, fake))
	verifier := verification.New(verification.Deps{DB: tx, Log: log, Gen: fake, Verifications: verifs, Concurrency: 2})
	engine := routing.NewEngine(routing.Deps{DB: tx, Log: log, Documents: docs, Verifications: verifs, Routes: routes})
	evaluator := evaluation.New(evaluation.Deps{Log: log, Gen: fake, Analyses: analyses, Documents: docs})

	queue := persist.NewQueue(log, persist.Config{Workers: 1, Size: 32}, persist.NewLogSink(log))
	queue.Start()
	pipe := pipeline.New(pipeline.Deps{
		DB: tx, Log: log, Gen: fake, Queue: queue,
		Cases: caseRepo, Profiles: profiles, Analyses: analyses, Documents: docs,
		Verifications: verifs, Routes: routes, Gaps: gaps, Denials: denials, Consolidations: consolidations,
		Verifier: verifier, Router: engine,
	})

	bus := realtime.NewLocalBus()
	hub := realtime.NewHub(log)
	require.NoError(t, realtime.Forward(context.Background(), bus, hub))
	relay := realtime.NewRelay(log, bus)

	a := &api{t: t, tx: tx, fake: fake, hub: hub, pipe: pipe, queue: queue}
	a.engine = NewRouter(RouterConfig{
		AuthMiddleware:      httpMW.NewAuthMiddleware(log, secret),
		CaseHandler:         httpH.NewCaseHandler(log, caseService, services.NewSurveyService(tx, log, profiles, analyses)),
		DocumentHandler:     httpH.NewDocumentHandler(log, caseService, docService, verifier),
		AnalysisHandler:     httpH.NewAnalysisHandler(log, caseService, analyses, pipe, evaluator, relay),
		VerificationHandler: httpH.NewVerificationHandler(log, caseService, pipe, relay),
		RoutingHandler:      httpH.NewRoutingHandler(log, caseService, engine),
		ArtifactHandler:     httpH.NewArtifactHandler(log, caseService, pipe, relay, gaps, denials, consolidations),
		HealthHandler:       httpH.NewHealthHandler(nil),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, pipe.Wait(ctx))
		require.NoError(t, queue.Close(ctx))
		_ = bus.Close()
	})
	return a
}

func token(t *testing.T, user uuid.UUID) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (a *api) do(user uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(a.t, user))
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

type caseBody struct {
	Case struct {
		ID          uuid.UUID  `json:"id"`
		OwnerUserID *uuid.UUID `json:"owner_user_id"`
		Status      string     `json:"status"`
	} `json:"case"`
}

func TestHealthcheck(t *testing.T) {
	a := newAPI(t)
	rec := a.do(uuid.Nil, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCaseOwnership(t *testing.T) {
	a := newAPI(t)
	alice, bob := uuid.New(), uuid.New()

	rec := a.do(alice, http.MethodPost, "/api/cases", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[caseBody](t, rec)
	require.NotNil(t, created.Case.OwnerUserID)
	assert.Equal(t, alice, *created.Case.OwnerUserID)
	assert.Equal(t, "INTAKE", created.Case.Status)

	path := "/api/cases/" + created.Case.ID.String()
	assert.Equal(t, http.StatusOK, a.do(alice, http.MethodGet, path, nil).Code)

	for _, who := range []uuid.UUID{bob, uuid.Nil} {
		rec := a.do(who, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "case_not_found", errorCode(t, rec))
	}
	missing := a.do(alice, http.MethodGet, "/api/cases/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "case_not_found", errorCode(t, missing))

	bad := a.do(alice, http.MethodGet, "/api/cases/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "invalid_case_id", errorCode(t, bad))
}

func TestClaimAnonymousCase(t *testing.T) {
	a := newAPI(t)
	rec := a.do(uuid.Nil, http.MethodPost, "/api/cases", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[caseBody](t, rec).Case.ID
	path := "/api/cases/" + id.String()

	assert.Equal(t, http.StatusOK, a.do(uuid.Nil, http.MethodGet, path, nil).Code)

	alice := uuid.New()
	claimed := a.do(alice, http.MethodPost, path+"/claim", nil)
	require.Equal(t, http.StatusOK, claimed.Code, claimed.Body.String())
	assert.Equal(t, alice, *decode[caseBody](t, claimed).Case.OwnerUserID)

	assert.Equal(t, http.StatusNotFound, a.do(uuid.Nil, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(uuid.New(), http.MethodPost, path+"/claim", nil).Code)
}

func TestSurveyRoundTrip(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	path := "/api/cases/" + uuid.NewString() + "/survey"

	rec := a.do(user, http.MethodPatch, path, map[string]any{
		"data":             map[string]any{"personal_info": map[string]any{"full_name": "Ada Lovelace"}},
		"skipped_sections": []string{"compensation"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(user, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Profile struct {
			Data            map[string]map[string]any `json:"data"`
			Version         int                       `json:"version"`
			SkippedSections []string                  `json:"skipped_sections"`
			IntakeStatus    string                    `json:"intake_status"`
		} `json:"profile"`
	}](t, rec)
	assert.Equal(t, "Ada Lovelace", got.Profile.Data["personal_info"]["full_name"])
	assert.Equal(t, 1, got.Profile.Version)
	assert.Equal(t, []string{"compensation"}, got.Profile.SkippedSections)
	assert.Equal(t, "IN_PROGRESS", got.Profile.IntakeStatus)

	bad := a.do(user, http.MethodPatch, path, map[string]any{"intake_status": "DONE"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "invalid_input", errorCode(t, bad))
}

type docsBody struct {
	Documents []struct {
		ID       uuid.UUID `json:"id"`
		Name     string    `json:"name"`
		Type     string    `json:"type"`
		Category string    `json:"category"`
		Source   string    `json:"source"`
	} `json:"documents"`
}

func TestUploadJSONAndMultipart(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	base := "/api/cases/" + uuid.NewString() + "/documents"

	rec := a.do(user, http.MethodPost, base, map[string]any{"name": "resume.txt", "text": "Ada Lovelace, analyst", "category": "resume"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resume := decode[docsBody](t, rec).Documents
	require.Len(t, resume, 1)
	assert.Equal(t, "RESUME", resume[0].Category)
	assert.Equal(t, "USER_UPLOADED", resume[0].Source)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Judging\n\nReviewed for NeurIPS."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("category", "judging"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, base, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, user))
	mp := httptest.NewRecorder()
	a.engine.ServeHTTP(mp, req)
	require.Equal(t, http.StatusCreated, mp.Code, mp.Body.String())
	uploaded := decode[docsBody](t, mp).Documents
	require.Len(t, uploaded, 1)
	assert.Equal(t, "notes.md", uploaded[0].Name)
	assert.Equal(t, "JUDGING", uploaded[0].Category)
	assert.Equal(t, "USER_UPLOADED", uploaded[0].Source)

	list := a.do(user, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[docsBody](t, list).Documents, 2)

	empty := a.do(user, http.MethodPost, base, map[string]any{"name": "blank.txt"})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	assert.Equal(t, "invalid_input", errorCode(t, empty))
}

func TestVerificationStreamRelaysFrames(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	c := testutil.SeedCase(t, context.Background(), a.tx, &user)
	doc := testutil.SeedDocument(t, context.Background(), a.tx, c.ID, "wired.pdf", documents.SourceUserUploaded)
	a.fake.Return(verification.SchemaName, map[string]any{
		"score": 7, "recommendation": "STRONG", "summary": "", "verified_claims": []string{"Wired profile"},
		"red_flags": []string{}, "matched_item_ids": []string{},
	})

	sub := a.hub.NewClient()
	defer a.hub.CloseClient(sub)
	a.hub.Subscribe(sub, realtime.CaseChannel(c.ID))

	rec := a.do(user, http.MethodPost, "/api/cases/"+c.ID.String()+"/verification/stream", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var frames []stream.Frame
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var f stream.Frame
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f))
		frames = append(frames, f)
	}
	require.NotEmpty(t, frames)
	assert.Equal(t, stream.TypeStage, frames[0].Type)
	assert.Equal(t, stream.TypeDocStarted, frames[1].Type)
	assert.Equal(t, doc.ID.String(), frames[1].Key)
	assert.Equal(t, stream.TypeAllComplete, frames[len(frames)-1].Type)
	scored := 0
	for i, f := range frames {
		assert.Equal(t, i+1, f.Seq)
		if f.Type == stream.TypeCriterionComplete {
			scored++
		}
	}
	assert.Equal(t, criteria.Count, scored)

	assert.Len(t, sub.Outbound, len(frames))
	first := <-sub.Outbound
	assert.Equal(t, "verify.stage", first.Event)
}

func TestStreamPrechecksFailAsJSON(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	c := testutil.SeedCase(t, context.Background(), a.tx, &user)
	base := "/api/cases/" + c.ID.String()

	rec := a.do(user, http.MethodPost, base+"/verification/stream", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_documents", errorCode(t, rec))

	rec = a.do(user, http.MethodPost, base+"/analysis/stream", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_resume", errorCode(t, rec))

	for _, p := range []string{"/gap-analysis/stream", "/denial-probability/stream", "/consolidation/stream"} {
		rec := a.do(user, http.MethodPost, base+p, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, p)
		assert.Equal(t, "analysis_required", errorCode(t, rec), p)
	}
	for p, code := range map[string]string{
		"/analysis":           "analysis_not_found",
		"/gap-analysis":       "gap_analysis_not_found",
		"/denial-probability": "denial_probability_not_found",
		"/consolidation":      "consolidation_not_found",
	} {
		rec := a.do(user, http.MethodGet, base+p, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.Equal(t, code, errorCode(t, rec), p)
	}
}

func TestEvaluateGenerationFailure(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	c := testutil.SeedCase(t, context.Background(), a.tx, &user)
	base := "/api/cases/" + c.ID.String() + "/criteria/"

	rec := a.do(user, http.MethodPost, base+"C3/evaluate", map[string]any{"context": "Featured in Wired"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "generation_failed", errorCode(t, rec))

	rec = a.do(user, http.MethodPost, base+"C42/evaluate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_criterion", errorCode(t, rec))

	rec = a.do(user, http.MethodPost, base+"C3/evidence/remove", map[string]any{"index": 0, "source": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_removal", errorCode(t, rec))
}

func TestRoutingCommands(t *testing.T) {
	a := newAPI(t)
	user := uuid.New()
	c := testutil.SeedCase(t, context.Background(), a.tx, &user)
	doc := testutil.SeedDocument(t, context.Background(), a.tx, c.ID, "award.pdf", documents.SourceUserUploaded)
	path := "/api/cases/" + c.ID.String() + "/routing"

	rec := a.do(user, http.MethodPost, path, map[string]any{"documentId": doc.ID, "criterion": "C1", "action": "add"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(user, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[routing.Overview](t, rec)
	require.Len(t, overview.Criteria, criteria.Count)
	require.Len(t, overview.Criteria[0].Documents, 1)
	assert.Equal(t, doc.ID, overview.Criteria[0].Documents[0].DocumentID)
	assert.False(t, overview.Criteria[0].Documents[0].AutoRouted)

	rec = a.do(user, http.MethodPost, path, map[string]any{"documentId": uuid.New(), "criterion": "C1", "action": "add"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "document_not_found", errorCode(t, rec))

	rec = a.do(user, http.MethodPost, path, map[string]any{"action": "shuffle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_command", errorCode(t, rec))
}
