// Package sqlxrepos implements the core repositories against PostgreSQL.
// Queries are written with "?" bindvars and rebound for pg; id-list
// expansion goes through sqlx.In.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
)

const uniqueViolation = "23505"

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// expandIn expands a "?"-style IN clause for an id list and rebinds the
// whole query for pg.
func expandIn(query string, args ...interface{}) (string, []interface{}, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding IN clause")
	}
	return rebind(q), expanded, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// orderByClause renders an ORDER BY clause for the orderings whose field is
// in the allowed set, mapping each to its column expression. Fields outside
// the set never reach the query text.
func orderByClause(ordering []core.DBOrdering, allowed map[string]string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		direction := "DESC"
		if ord.Ascending {
			direction = "ASC"
		}
		clauses = append(clauses, col+" "+direction)
	}
	if len(clauses) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
