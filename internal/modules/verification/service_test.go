package verification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/domain/documents"
	"github.com/yungbote/caseforge-backend/internal/domain/evidence"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
	"github.com/yungbote/caseforge-backend/internal/platform/openai/openaitest"
)

func scripted(t *testing.T, byCriterion map[criteria.ID]generated) openaitest.Handler {
	return func(_ context.Context, req openai.Request) (any, error) {
		raw, err := json.Marshal(req.Context)
		require.NoError(t, err)
		var vc verifyContext
		require.NoError(t, json.Unmarshal(raw, &vc))
		if g, ok := byCriterion[vc.Criterion]; ok {
			return g, nil
		}
		if vc.Criterion == criteria.C9 {
			return nil, errors.New("upstream timeout")
		}
		return generated{Score: 1, Recommendation: "EXCLUDE"}, nil
	}
}

func TestVerifyDocumentScoresEveryCriterion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	c := testutil.SeedCase(t, ctx, tx, nil)
	doc := testutil.SeedDocument(t, ctx, tx, c.ID, "wired.pdf", documents.SourceUserUploaded)
	ext := analysis.Extraction{MediaCoverage: []analysis.EvidenceItem{{ID: "m1", Title: "Wired profile", MappedCriteria: []criteria.ID{criteria.C3}}}}

	fake := openaitest.New().On(SchemaName, scripted(t, map[criteria.ID]generated{
		criteria.C3: {Score: 6.24, Recommendation: "strong", VerifiedClaims: []string{"profile published"}, MatchedItemIDs: []string{"m1", "ghost"}},
		criteria.C6: {Score: 4.0, Recommendation: "WEAK"},
	}))
	verifs := repos.NewVerificationRepo(tx, log)
	svc := New(Deps{DB: tx, Log: log, Gen: fake, Verifications: verifs, Concurrency: 4})

	var (
		mu       sync.Mutex
		reported []criteria.ID
	)
	scores, err := svc.VerifyDocument(ctx, doc, ext, func(s Score) {
		mu.Lock()
		reported = append(reported, s.Criterion)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, scores, criteria.Count)
	assert.Len(t, reported, criteria.Count)
	assert.Len(t, fake.CallsFor(SchemaName), criteria.Count)

	c3 := scores[2]
	assert.Equal(t, criteria.C3, c3.Criterion)
	assert.Equal(t, 6.2, c3.Score)
	assert.Equal(t, evidence.RecommendationStrong, c3.Recommendation)
	assert.Equal(t, []string{"m1"}, c3.MatchedItemIDs)
	assert.True(t, c3.Passes)

	c6 := scores[5]
	assert.False(t, c6.Passes)

	c9 := scores[8]
	require.Error(t, c9.Err)
	assert.ErrorIs(t, c9.Err, openai.ErrNoStructuredResult)

	saved, err := svc.Record(ctx, c.ID, doc.ID, scores)
	require.NoError(t, err)
	assert.Len(t, saved, criteria.Count-1)

	latest, err := svc.Latest(ctx, doc.ID)
	require.NoError(t, err)
	_, hasC9 := latest[criteria.C9]
	assert.False(t, hasC9)
	assert.Equal(t, 1, latest[criteria.C3].Version)

	_, err = svc.Record(ctx, c.ID, doc.ID, scores)
	require.NoError(t, err)
	latest, err = svc.Latest(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest[criteria.C3].Version)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-3))
	assert.Equal(t, 10.0, clampScore(12))
	assert.Equal(t, 5.0, clampScore(4.96))
}
