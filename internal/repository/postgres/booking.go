package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

const bookingColumns = `booking_number, status, car_id, renter_id, pick_up_time, drop_off_time, pick_up_location,
	base_price, deposit, payment_type, driver_full_name, driver_phone, driver_national_id, driver_dob,
	driver_email, driver_license, driver_address, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := row.Scan(&b.Number, &b.Status, &b.CarID, &b.RenterID, &b.PickUpTime, &b.DropOffTime, &b.PickUpLocation,
		&b.BasePrice, &b.Deposit, &b.PaymentType, &b.Driver.FullName, &b.Driver.Phone, &b.Driver.NationalID,
		&b.Driver.DateOfBirth, &b.Driver.Email, &b.Driver.LicenseNumber, &b.Driver.Address, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("bookingRepository.Create", "bookingNumber", b.Number)

	query := `INSERT INTO bookings (` + bookingColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, query, b.Number, b.Status, b.CarID, b.RenterID, b.PickUpTime, b.DropOffTime,
		b.PickUpLocation, b.BasePrice, b.Deposit, b.PaymentType, b.Driver.FullName, b.Driver.Phone,
		b.Driver.NationalID, b.Driver.DateOfBirth, b.Driver.Email, b.Driver.LicenseNumber, b.Driver.Address,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.Create", err, "bookingNumber", b.Number)
		return storeErr("create booking", err)
	}

	logger.ExitMethod("bookingRepository.Create", "bookingNumber", b.Number)
	return nil
}

func (r *bookingRepository) GetByNumber(ctx context.Context, number string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_number = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		return nil, storeErr("get booking "+number, err)
	}
	return b, nil
}

func (r *bookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 ORDER BY booking_number`
	logger.DatabaseCall("ListByStatus", "SELECT bookings", "status", status)

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		logger.DatabaseResult("ListByStatus", 0, err)
		return nil, storeErr("list bookings", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, storeErr("scan booking", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate bookings", err)
	}

	logger.DatabaseResult("ListByStatus", int64(len(bookings)), nil)
	return bookings, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, number string, expected, next domain.BookingStatus, effect repository.SideEffect) (bool, error) {
	logger.EnterMethod("bookingRepository.UpdateStatus", "bookingNumber", number, "expected", expected, "next", next)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin status update", err)
	}
	defer tx.Rollback()

	// The WHERE clause on status is the compare-and-set: a concurrent writer
	// blocks on the row lock and then matches zero rows.
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = $2 WHERE booking_number = $3 AND status = $4`,
		next, time.Now(), number, expected)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.UpdateStatus", err, "bookingNumber", number)
		return false, storeErr("update booking status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("update booking status", err)
	}

	if affected == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_number = $1)`, number).Scan(&exists)
		if err != nil {
			return false, storeErr("check booking", err)
		}
		if !exists {
			return false, storeErr("update booking status", sql.ErrNoRows)
		}
		logger.ExitMethod("bookingRepository.UpdateStatus", "bookingNumber", number, "applied", false)
		return false, nil
	}

	if effect != nil {
		if err := effect(ctx, &ledgerWriter{tx: tx}); err != nil {
			logger.ExitMethodWithError("bookingRepository.UpdateStatus", err, "bookingNumber", number)
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit status update", err)
	}

	logger.ExitMethod("bookingRepository.UpdateStatus", "bookingNumber", number, "applied", true)
	return true, nil
}
