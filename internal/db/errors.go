package db

import (
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation
// (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
