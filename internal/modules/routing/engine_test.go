package routing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

type fixture struct {
	tx     *gorm.DB
	engine *Engine
	routes repos.RoutingRepo
	caseID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	c := testutil.SeedCase(t, context.Background(), tx, nil)
	routes := repos.NewRoutingRepo(tx, log)
	engine := NewEngine(Deps{
		DB:            tx,
		Log:           log,
		Documents:     repos.NewDocumentRepo(tx, log),
		Verifications: repos.NewVerificationRepo(tx, log),
		Routes:        routes,
	})
	return &fixture{tx: tx, engine: engine, routes: routes, caseID: c.ID}
}

type routeKey struct {
	Criterion  criteria.ID
	AutoRouted bool
	Score      float64
}

func (f *fixture) routing(t *testing.T, docID uuid.UUID) map[criteria.ID]routeKey {
	t.Helper()
	rows, err := f.routes.ListByDocument(dbctx.From(context.Background()), docID)
	require.NoError(t, err)
	out := map[criteria.ID]routeKey{}
	for _, r := range rows {
		out[r.Criterion] = routeKey{Criterion: r.Criterion, AutoRouted: r.AutoRouted, Score: r.Score}
	}
	return out
}

func TestAutoRouteScenarioManualSurvivesReroute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "press.pdf", documents.SourceUserUploaded)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C3, 1, 6.2, evidence.RecommendationStrong)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C6, 1, 4.0, evidence.RecommendationWeak)

	out, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []criteria.ID{criteria.C3}, out.Passing)
	assert.Equal(t, map[criteria.ID]routeKey{
		criteria.C3: {Criterion: criteria.C3, AutoRouted: true, Score: 6.2},
	}, f.routing(t, doc.ID))

	_, err = f.engine.Apply(ctx, f.caseID, Command{DocumentID: doc.ID, Criterion: "c6", Action: ActionAdd})
	require.NoError(t, err)
	got := f.routing(t, doc.ID)
	require.Len(t, got, 2)
	assert.False(t, got[criteria.C6].AutoRouted)

	res, err := f.engine.Apply(ctx, f.caseID, Command{Action: ActionReroute})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	got = f.routing(t, doc.ID)
	require.Len(t, got, 2)
	assert.True(t, got[criteria.C3].AutoRouted)
	assert.False(t, got[criteria.C6].AutoRouted)
}

func TestAutoRoutePassesIffThresholdAndRoutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "bundle.pdf", documents.SourceUserUploaded)

	cases := []struct {
		c     criteria.ID
		score float64
		rec   evidence.Recommendation
		pass  bool
	}{
		{criteria.C1, 5.0, evidence.RecommendationStrong, true},
		{criteria.C2, 4.99, evidence.RecommendationStrong, false},
		{criteria.C3, 9.0, evidence.RecommendationIncludeWithSupport, true},
		{criteria.C4, 9.0, evidence.RecommendationWeak, false},
		{criteria.C5, 9.0, evidence.RecommendationInsufficient, false},
		{criteria.C7, 9.0, evidence.RecommendationExclude, false},
		{criteria.C8, 9.0, evidence.RecommendationManual, false},
	}
	for _, tc := range cases {
		testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, tc.c, 1, tc.score, tc.rec)
	}
	// Only the latest version counts.
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C9, 1, 8.0, evidence.RecommendationStrong)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C9, 2, 3.0, evidence.RecommendationWeak)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C10, 1, 2.0, evidence.RecommendationWeak)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C10, 2, 7.5, evidence.RecommendationStrong)

	_, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)

	got := f.routing(t, doc.ID)
	for _, tc := range cases {
		_, routed := got[tc.c]
		assert.Equal(t, tc.pass, routed, "criterion %s", tc.c)
	}
	_, routed := got[criteria.C9]
	assert.False(t, routed)
	assert.Equal(t, 7.5, got[criteria.C10].Score)
	for _, r := range got {
		assert.True(t, r.AutoRouted)
	}
}

func TestAutoRouteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "award.pdf", documents.SourceUserUploaded)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C1, 1, 8.0, evidence.RecommendationStrong)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C2, 1, 6.0, evidence.RecommendationIncludeWithSupport)

	_, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)
	first := f.routing(t, doc.ID)

	out, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, out.Retracted)
	assert.Equal(t, first, f.routing(t, doc.ID))
}

func TestAutoRouteRetractsStaleAutoRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "letter.pdf", documents.SourceUserUploaded)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C8, 1, 7.0, evidence.RecommendationStrong)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C4, 1, 7.0, evidence.RecommendationStrong)

	_, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, f.caseID, Command{DocumentID: doc.ID, Criterion: criteria.C4, Action: ActionAdd})
	require.NoError(t, err)

	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C8, 2, 3.0, evidence.RecommendationWeak)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C4, 2, 1.0, evidence.RecommendationExclude)

	out, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Retracted)

	got := f.routing(t, doc.ID)
	_, hasC8 := got[criteria.C8]
	assert.False(t, hasC8)
	require.Contains(t, got, criteria.C4)
	assert.False(t, got[criteria.C4].AutoRouted, "manual row is left alone")
}

func TestApplyRemoveAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "cv.pdf", documents.SourceUserUploaded)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, doc.ID, criteria.C5, 1, 8.0, evidence.RecommendationStrong)
	_, err := f.engine.AutoRoute(ctx, f.caseID, doc.ID)
	require.NoError(t, err)

	res, err := f.engine.Apply(ctx, f.caseID, Command{DocumentID: doc.ID, Criterion: "original_contributions", Action: "REMOVE"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Removed)
	assert.Empty(t, f.routing(t, doc.ID))

	_, err = f.engine.Apply(ctx, f.caseID, Command{DocumentID: doc.ID, Criterion: "C42", Action: ActionAdd})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = f.engine.Apply(ctx, f.caseID, Command{Criterion: criteria.C1, Action: ActionAdd})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = f.engine.Apply(ctx, f.caseID, Command{DocumentID: doc.ID, Criterion: criteria.C1, Action: "pin"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = f.engine.Apply(ctx, f.caseID, Command{DocumentID: uuid.New(), Criterion: criteria.C1, Action: ActionAdd})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	other := testutil.SeedCase(t, ctx, f.tx, nil)
	_, err = f.engine.AutoRoute(ctx, other.ID, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestRerouteSkipsSystemGeneratedDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gen := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "petition.pdf", documents.SourceSystemGenerated)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, gen.ID, criteria.C1, 1, 9.0, evidence.RecommendationStrong)

	res, err := f.engine.Apply(ctx, f.caseID, Command{Action: ActionReroute})
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, f.routing(t, gen.ID))
}

func TestOverviewGroupsByCriterion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "a.pdf", documents.SourceUserUploaded)
	b := testutil.SeedDocument(t, ctx, f.tx, f.caseID, "b.pdf", documents.SourceUserUploaded)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, a.ID, criteria.C3, 1, 6.0, evidence.RecommendationStrong)
	testutil.SeedVerification(t, ctx, f.tx, f.caseID, b.ID, criteria.C3, 1, 8.0, evidence.RecommendationStrong)
	_, err := f.engine.Apply(ctx, f.caseID, Command{Action: ActionReroute})
	require.NoError(t, err)

	ov, err := f.engine.Overview(ctx, f.caseID)
	require.NoError(t, err)
	require.Len(t, ov.Criteria, criteria.Count)
	assert.Len(t, ov.Documents, 2)

	c3 := ov.Criteria[2]
	assert.Equal(t, criteria.C3, c3.Criterion)
	require.Len(t, c3.Documents, 2)
	assert.Equal(t, "b.pdf", c3.Documents[0].Name)
	assert.True(t, c3.Documents[0].AutoRouted)
	assert.Equal(t, []string{"item-C3"}, c3.Documents[0].MatchedItemIDs)
	assert.Empty(t, ov.Criteria[0].Documents)
}
