package versioning_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/caseforge-backend/internal/data/versioning"
	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

func newAnalysis(caseID uuid.UUID, strong criteria.ID) *analysis.Analysis {
	results := analysis.EmptyResults()
	for i := range results {
		if results[i].Criterion == strong {
			results[i].Strength = criteria.StrengthStrong
		}
	}
	return &analysis.Analysis{
		ID:       uuid.New(),
		CaseID:   caseID,
		Criteria: datatypes.NewJSONType(results),
	}
}

func TestAppendNeverMutatesPriorVersions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	caseID := uuid.New()
	scope := versioning.Scope{"case_id": caseID}

	first := newAnalysis(caseID, criteria.C1)
	v1, err := versioning.Append(dbc, db, first, scope)
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	second := newAnalysis(caseID, criteria.C2)
	v2, err := versioning.Append(dbc, db, second, scope)
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	latest, err := versioning.Latest[analysis.Analysis](dbc, db, scope)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 2, latest.Version)
	require.Equal(t, second.ID, latest.ID)

	history, err := versioning.History[analysis.Analysis](dbc, db, scope)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.ID, history[1].ID)
	r, ok := analysis.FindResult(history[1].Criteria.Data(), criteria.C1)
	require.True(t, ok)
	require.Equal(t, criteria.StrengthStrong, r.Strength, "prior version payload must be untouched")
	require.Equal(t, 1, history[1].StrongCount)

	next, err := versioning.NextVersion(dbc, db, analysis.Analysis{}.TableName(), scope)
	require.NoError(t, err)
	require.Equal(t, 3, next)
}

func TestScopesAreIndependent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	a, b := uuid.New(), uuid.New()
	_, err := versioning.Append(dbc, db, newAnalysis(a, criteria.C1), versioning.Scope{"case_id": a})
	require.NoError(t, err)
	_, err = versioning.Append(dbc, db, newAnalysis(a, criteria.C1), versioning.Scope{"case_id": a})
	require.NoError(t, err)
	vb, err := versioning.Append(dbc, db, newAnalysis(b, criteria.C1), versioning.Scope{"case_id": b})
	require.NoError(t, err)
	require.Equal(t, 1, vb)

	none, err := versioning.Latest[analysis.Analysis](dbc, db, versioning.Scope{"case_id": uuid.New()})
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestConcurrentAppendsGetDistinctVersions(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.From(context.Background())
	caseID := uuid.New()
	scope := versioning.Scope{"case_id": caseID}

	const n = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions = map[int]bool{}
		errs     []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := versioning.Append(dbc, db, newAnalysis(caseID, criteria.C3), scope)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			versions[v] = true
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	require.Len(t, versions, n)
	for v := 1; v <= n; v++ {
		require.True(t, versions[v], "missing version %d", v)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, versioning.IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, versioning.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, versioning.IsUniqueViolation(errors.New("UNIQUE constraint failed: analysis.case_id, analysis.version")))
	require.False(t, versioning.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, versioning.IsUniqueViolation(nil))
}
