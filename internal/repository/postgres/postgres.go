package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.BookingRepository
	repository.WalletRepository
	repository.AccountRepository
	Cars    repository.CarRepository
	Numbers repository.NumberGenerator
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                db,
		BookingRepository: NewBookingRepository(db),
		WalletRepository:  NewWalletRepository(db),
		AccountRepository: NewAccountRepository(db),
		Cars:              NewCarRepository(db),
		Numbers:           NewNumberGenerator(db),
	}
}

// storeErr maps driver errors onto the domain taxonomy.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
