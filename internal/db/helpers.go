package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func NilTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
