// Package versioning implements the append-only history shared by every
// analysis artifact. Rows are inserted with version = max(version in scope)+1
// and never updated; "current" always means the highest version in scope.
package versioning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
)

// MaxAttempts bounds retries when concurrent appends race on the same version.
const MaxAttempts = 5

var ErrTooManyConflicts = errors.New("versioning: too many concurrent appends")

// Versioned rows carry a unique index over (scope columns..., version).
type Versioned interface {
	TableName() string
	SetVersion(v int)
}

// Scope maps column names to the values that identify one version sequence,
// e.g. {"case_id": id} or {"case_id": id, "document_id": doc, "criterion": "C3"}.
type Scope map[string]interface{}

func (s Scope) where() map[string]interface{} { return map[string]interface{}(s) }

// Append inserts row as the next version in scope and returns that version.
func Append(dbc dbctx.Context, db *gorm.DB, row Versioned, scope Scope) (int, error) {
	if len(scope) == 0 {
		return 0, errors.New("versioning: empty scope")
	}
	var (
		version int
		lastErr error
	)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = dbc.DB(db).Transaction(func(tx *gorm.DB) error {
			next, err := nextVersion(tx, row.TableName(), scope)
			if err != nil {
				return err
			}
			row.SetVersion(next)
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			version = next
			return nil
		})
		if lastErr == nil {
			return version, nil
		}
		if !IsUniqueViolation(lastErr) {
			return 0, fmt.Errorf("append %s: %w", row.TableName(), lastErr)
		}
	}
	return 0, fmt.Errorf("append %s: %w: %v", row.TableName(), ErrTooManyConflicts, lastErr)
}

// NextVersion reports the version the next Append in scope would get.
func NextVersion(dbc dbctx.Context, db *gorm.DB, table string, scope Scope) (int, error) {
	return nextVersion(dbc.DB(db), table, scope)
}

func nextVersion(tx *gorm.DB, table string, scope Scope) (int, error) {
	var max int
	row := tx.Table(table).Where(scope.where()).Select("COALESCE(MAX(version), 0)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max version %s: %w", table, err)
	}
	return max + 1, nil
}

// Latest returns the highest version in scope, or nil when there is none.
func Latest[T any](dbc dbctx.Context, db *gorm.DB, scope Scope) (*T, error) {
	var rows []T
	if err := dbc.DB(db).
		Where(scope.where()).
		Order("version DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// History returns every version in scope, newest first.
func History[T any](dbc dbctx.Context, db *gorm.DB, scope Scope) ([]T, error) {
	var rows []T
	if err := dbc.DB(db).
		Where(scope.where()).
		Order("version DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IsUniqueViolation recognizes duplicate-key errors from postgres and sqlite,
// translated or not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
