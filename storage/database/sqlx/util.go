package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

const pqUniqueViolation = "23505"

type repository struct {
	db core.DBExecutor
}

// getExec returns the transaction passed by the caller, if any, or the repository's DB.
func (repo repository) getExec(exec ...core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

// trapNoRowsErr replaces sql.ErrNoRows with notFound.
func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

// isUniqueViolation reports whether err violates the given unique constraint (any, if empty).
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
