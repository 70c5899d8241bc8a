package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carrental-backend/internal/repository"
)

type numberGenerator struct {
	db *sql.DB
}

func NewNumberGenerator(db *sql.DB) repository.NumberGenerator {
	return &numberGenerator{db: db}
}

func (g *numberGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := g.db.QueryRowContext(ctx, `SELECT nextval('booking_number_seq')`).Scan(&seq); err != nil {
		return "", storeErr("next booking number", err)
	}
	return fmt.Sprintf("%s-%08d", at.UTC().Format("20060102"), seq), nil
}
