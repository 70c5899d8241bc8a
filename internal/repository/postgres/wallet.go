package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByAccount(ctx context.Context, accountID int32) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	query := `SELECT id, account_id, balance, updated_at FROM wallets WHERE account_id = $1`
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&w.ID, &w.AccountID, &w.Balance, &w.UpdatedAt)
	if err != nil {
		return nil, storeErr("get wallet", err)
	}
	return w, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID int32) ([]domain.Transaction, error) {
	query := `SELECT id, reference, wallet_id, type, amount, booking_number, message, created_at
	          FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var bookingNumber sql.NullString
		if err := rows.Scan(&t.ID, &t.Reference, &t.WalletID, &t.Type, &t.Amount, &bookingNumber, &t.Message, &t.CreatedAt); err != nil {
			return nil, storeErr("scan transaction", err)
		}
		if bookingNumber.Valid {
			t.BookingNumber = &bookingNumber.String
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate transactions", err)
	}
	return txs, nil
}

// ledgerWriter posts transactions inside an open status-update transaction.
type ledgerWriter struct {
	tx *sql.Tx
}

func (l *ledgerWriter) PostTransaction(ctx context.Context, entry *domain.Transaction, accountID int32) error {
	delta := entry.BalanceDelta()

	// The balance guard keeps the wallet non-negative under concurrent postings.
	err := l.tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = $2
		 WHERE account_id = $3 AND balance + $1 >= 0 RETURNING id`,
		delta, time.Now(), accountID).Scan(&entry.WalletID)
	if errors.Is(err, sql.ErrNoRows) {
		var walletID int32
		lookup := l.tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE account_id = $1`, accountID).Scan(&walletID)
		if lookup != nil {
			return storeErr("get wallet", lookup)
		}
		return domain.ErrInsufficientBalance
	}
	if err != nil {
		return storeErr("update wallet balance", err)
	}

	if entry.Reference == "" {
		entry.Reference = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	err = l.tx.QueryRowContext(ctx,
		`INSERT INTO wallet_transactions (reference, wallet_id, type, amount, booking_number, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		entry.Reference, entry.WalletID, entry.Type, entry.Amount, entry.BookingNumber, entry.Message, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return storeErr("insert transaction", err)
	}
	return nil
}
