package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/aitrends/backend/internal/models"
)

// isDuplicateEntry reports whether err is a MySQL duplicate-key violation.
func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// constraintErr maps duplicate-key violations onto the domain error so
// callers never have to match driver codes.
func constraintErr(op string, err error) error {
	if isDuplicateEntry(err) {
		return fmt.Errorf("%s: %w", op, models.ErrConstraintViolation)
	}
	return fmt.Errorf("%s: %w", op, err)
}
