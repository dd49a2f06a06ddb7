package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isDuplicate signals that the error is a duplicate key violation.
func isDuplicate(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == "23505"
}

// isNotFound signals that the query matched no rows.
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
