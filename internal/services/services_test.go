package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/openai/openaitest"
)

type fixture struct {
	tx       *gorm.DB
	fake     *openaitest.Fake
	cases    CaseService
	survey   SurveyService
	docs     DocumentService
	analyses repos.AnalysisRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	fake := openaitest.New()
	analyses := repos.NewAnalysisRepo(tx, log)
	return &fixture{
		tx:       tx,
		fake:     fake,
		cases:    NewCaseService(log, repos.NewCaseRepo(tx, log)),
		survey:   NewSurveyService(tx, log, repos.NewCaseProfileRepo(tx, log), analyses),
		docs:     NewDocumentService(log, repos.NewDocumentRepo(tx, log), NewDocumentClassifier(log, fake)),
		analyses: analyses,
	}
}

func as(userID uuid.UUID) context.Context {
	return ctxutil.WithCaller(context.Background(), &ctxutil.Caller{UserID: userID})
}

func TestEnsureCaseCreatesOnceAndHidesForeignCases(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	id := uuid.New()

	c, err := f.cases.EnsureCase(as(owner), id)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	require.NotNil(t, c.OwnerUserID)
	assert.Equal(t, owner, *c.OwnerUserID)
	assert.Equal(t, cases.StatusIntake, c.Status)

	again, err := f.cases.EnsureCase(as(owner), id)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	_, err = f.cases.EnsureCase(as(uuid.New()), id)
	assert.ErrorIs(t, err, ErrCaseNotFound)
	_, err = f.cases.Authorize(as(uuid.New()), id)
	assert.ErrorIs(t, err, ErrCaseNotFound)
	_, err = f.cases.Authorize(as(owner), uuid.New())
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	c, err := f.cases.Create(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c.OwnerUserID)

	_, err = f.cases.Claim(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	alice, bob := uuid.New(), uuid.New()
	claimed, err := f.cases.Claim(as(alice), c.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, *claimed.OwnerUserID)

	_, err = f.cases.Claim(as(alice), c.ID)
	require.NoError(t, err)
	_, err = f.cases.Claim(as(bob), c.ID)
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestSurveyPatchDeepMergesAndRederivesAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCase(t, ctx, f.tx, nil)

	empty, err := f.survey.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, cases.IntakeNotStarted, empty.IntakeStatus)
	assert.Equal(t, 0, empty.Version)

	res, err := f.survey.Patch(ctx, c.ID, SurveyPatch{Data: map[string]any{
		"personal_info": map[string]any{"full_name": "Ada Lovelace", "field": "Mathematics"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Profile.Version)
	assert.Equal(t, cases.IntakeInProgress, res.Profile.IntakeStatus)
	assert.Equal(t, 0, res.AnalysisVersion)

	_, err = f.analyses.Append(dbctx.From(ctx), &analysis.Analysis{
		CaseID:     c.ID,
		Extraction: datatypes.NewJSONType(analysis.Extraction{PersonalInfo: analysis.PersonalInfo{FullName: "A. Lovelace", CurrentTitle: "Analyst"}}),
		Criteria:   datatypes.NewJSONType(analysis.EmptyResults()),
	})
	require.NoError(t, err)

	skipped := []string{"compensation", "compensation"}
	complete := cases.IntakeComplete
	res, err = f.survey.Patch(ctx, c.ID, SurveyPatch{
		Data:            map[string]any{"personal_info": map[string]any{"nationality": "British"}},
		SkippedSections: &skipped,
		IntakeStatus:    &complete,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profile.Version)
	assert.Equal(t, cases.IntakeComplete, res.Profile.IntakeStatus)
	assert.Equal(t, []string{"compensation"}, res.Profile.SkippedSections.Data())
	assert.Equal(t, 2, res.AnalysisVersion)

	var data map[string]map[string]any
	require.NoError(t, json.Unmarshal(res.Profile.Data, &data))
	assert.Equal(t, "Ada Lovelace", data["personal_info"]["full_name"])
	assert.Equal(t, "British", data["personal_info"]["nationality"])

	latest, err := f.analyses.Latest(dbctx.From(ctx), c.ID)
	require.NoError(t, err)
	info := latest.Extraction.Data().PersonalInfo
	assert.Equal(t, "Ada Lovelace", info.FullName)
	assert.Equal(t, "British", info.Nationality)
	assert.Equal(t, "Analyst", info.CurrentTitle)
	assert.Equal(t, analysis.SourceSurvey, info.Source)
}

func TestSurveyPatchValidation(t *testing.T) {
	f := newFixture(t)
	bad := cases.IntakeStatus("DONE")
	_, err := f.survey.Patch(context.Background(), uuid.New(), SurveyPatch{IntakeStatus: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.survey.Patch(context.Background(), uuid.New(), SurveyPatch{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSurveyPatchRejectsAnswersThatDoNotFit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCase(t, ctx, f.tx, nil)

	_, err := f.survey.Patch(ctx, c.ID, SurveyPatch{Data: map[string]any{
		"personal_info": map[string]any{"years_experience": "ten"},
	}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	stored, err := f.survey.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Version)

	_, err = f.analyses.Append(dbctx.From(ctx), &analysis.Analysis{
		CaseID:     c.ID,
		Extraction: datatypes.NewJSONType(analysis.Extraction{}),
		Criteria:   datatypes.NewJSONType(analysis.EmptyResults()),
	})
	require.NoError(t, err)

	_, err = f.survey.Patch(ctx, c.ID, SurveyPatch{Data: map[string]any{
		"awards": map[string]any{"title": "Lovelace Medal"},
	}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	latest, err := f.analyses.Latest(dbctx.From(ctx), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)

	res, err := f.survey.Patch(ctx, c.ID, SurveyPatch{Data: map[string]any{
		"personal_info": map[string]any{"years_experience": 10.0},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Profile.Version)
	assert.Equal(t, 2, res.AnalysisVersion)
}

func TestUploadExtractsAndClassifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCase(t, ctx, f.tx, nil)
	f.fake.Return(ClassificationSchemaName, map[string]any{"category": "award", "confidence": 1.7})

	doc, err := f.docs.Upload(ctx, c.ID, UploadInput{
		Name:     "medal.md",
		MimeType: "text/markdown",
		Data:     []byte("# Royal Medal\n\nAwarded   by the Royal Society."),
	})
	require.NoError(t, err)
	assert.Equal(t, documents.TypeMarkdown, doc.Type)
	assert.Equal(t, documents.StatusDraft, doc.Status)
	assert.Equal(t, documents.SourceUserUploaded, doc.Source)
	assert.Equal(t, documents.CategoryAward, doc.Category)
	require.NotNil(t, doc.ClassificationConfidence)
	assert.Equal(t, 1.0, *doc.ClassificationConfidence)
	assert.Contains(t, doc.Text(), "Awarded by the Royal Society.")
}

func TestUploadSurvivesEnrichmentFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCase(t, ctx, f.tx, nil)
	f.fake.Fail(ClassificationSchemaName)

	doc, err := f.docs.Upload(ctx, c.ID, UploadInput{Name: "letter.txt", Text: "To whom it may concern"})
	require.NoError(t, err)
	assert.Equal(t, documents.CategoryOther, doc.Category)
	assert.Nil(t, doc.ClassificationConfidence)

	img, err := f.docs.Upload(ctx, c.ID, UploadInput{Name: "photo.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}, Category: "media"})
	require.NoError(t, err)
	assert.Equal(t, documents.TypeImage, img.Type)
	assert.Equal(t, documents.CategoryMedia, img.Category)
	assert.Empty(t, img.Text())
	assert.Len(t, f.fake.CallsFor(ClassificationSchemaName), 1)

	_, err = f.docs.Upload(ctx, c.ID, UploadInput{Name: "x.md", Text: "x", Category: "BOGUS"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEditAndFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCase(t, ctx, f.tx, nil)
	seeded := testutil.SeedDocument(t, ctx, f.tx, c.ID, "draft.pdf", documents.SourceUserUploaded)

	name, cat := "Wired profile.pdf", "media"
	edited, err := f.docs.Edit(ctx, c.ID, seeded.ID, DocumentPatch{Name: &name, Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, name, edited.Name)
	assert.Equal(t, documents.CategoryMedia, edited.Category)

	final, err := f.docs.Finalize(ctx, c.ID, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusFinal, final.Status)
	again, err := f.docs.Finalize(ctx, c.ID, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusFinal, again.Status)

	draft := documents.StatusDraft
	reopened, err := f.docs.Edit(ctx, c.ID, seeded.ID, DocumentPatch{Status: &draft})
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDraft, reopened.Status)

	_, err = f.docs.Finalize(ctx, uuid.New(), seeded.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = f.docs.Edit(ctx, c.ID, seeded.ID, DocumentPatch{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
