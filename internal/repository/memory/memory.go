// Package memory is an in-process record store with the same conditional-update
// semantics as the postgres store. It backs tests that need no database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	bookings     map[string]domain.Booking
	wallets      map[int32]*domain.Wallet // keyed by account ID
	transactions []domain.Transaction
	accounts     map[int32]domain.Account
	cars         map[int32]domain.Car
	seq          int64
	nextWalletID int32
	nextTxID     int64

	Bookings repository.BookingRepository
	Wallets  repository.WalletRepository
	Accounts repository.AccountRepository
	Cars     repository.CarRepository
	Numbers  repository.NumberGenerator
}

func NewStore() *Store {
	s := &Store{
		bookings: make(map[string]domain.Booking),
		wallets:  make(map[int32]*domain.Wallet),
		accounts: make(map[int32]domain.Account),
		cars:     make(map[int32]domain.Car),
	}
	s.Bookings = &bookingRepository{s}
	s.Wallets = &walletRepository{s}
	s.Accounts = &accountRepository{s}
	s.Cars = &carRepository{s}
	s.Numbers = &numberGenerator{s}
	return s
}

// AddAccount registers an account together with its wallet.
func (s *Store) AddAccount(account domain.Account, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	s.nextWalletID++
	s.wallets[account.ID] = &domain.Wallet{ID: s.nextWalletID, AccountID: account.ID, Balance: balance, UpdatedAt: time.Now()}
}

func (s *Store) AddCar(car domain.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars[car.ID] = car
}

// Transactions returns a copy of every posted transaction in posting order.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.transactions...)
}

type bookingRepository struct{ s *Store }

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[b.Number]; ok {
		return fmt.Errorf("create booking: duplicate booking number %s", b.Number)
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	r.s.bookings[b.Number] = *b
	return nil
}

func (r *bookingRepository) GetByNumber(ctx context.Context, number string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[number]
	if !ok {
		return nil, fmt.Errorf("get booking %s: %w", number, domain.ErrNotFound)
	}
	return &b, nil
}

func (r *bookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, number string, expected, next domain.BookingStatus, effect repository.SideEffect) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[number]
	if !ok {
		return false, fmt.Errorf("update booking status: %w", domain.ErrNotFound)
	}
	if b.Status != expected {
		return false, nil
	}

	staged := &stagedLedger{s: r.s, balances: make(map[int32]int64)}
	if effect != nil {
		if err := effect(ctx, staged); err != nil {
			return false, err
		}
	}

	// Commit: nothing below can fail.
	for accountID, balance := range staged.balances {
		w := r.s.wallets[accountID]
		w.Balance = balance
		w.UpdatedAt = time.Now()
	}
	r.s.transactions = append(r.s.transactions, staged.entries...)
	b.Status = next
	b.UpdatedAt = time.Now()
	r.s.bookings[number] = b
	return true, nil
}

// stagedLedger buffers postings until the surrounding status update commits.
type stagedLedger struct {
	s        *Store
	balances map[int32]int64
	entries  []domain.Transaction
}

func (l *stagedLedger) PostTransaction(ctx context.Context, entry *domain.Transaction, accountID int32) error {
	w, ok := l.s.wallets[accountID]
	if !ok {
		return fmt.Errorf("get wallet: %w", domain.ErrNotFound)
	}
	balance, ok := l.balances[accountID]
	if !ok {
		balance = w.Balance
	}
	balance += entry.BalanceDelta()
	if balance < 0 {
		return domain.ErrInsufficientBalance
	}
	l.balances[accountID] = balance

	l.s.nextTxID++
	entry.ID = l.s.nextTxID
	entry.WalletID = w.ID
	entry.CreatedAt = time.Now()
	if entry.Reference == "" {
		entry.Reference = uuid.NewString()
	}
	l.entries = append(l.entries, *entry)
	return nil
}

type walletRepository struct{ s *Store }

func (r *walletRepository) GetByAccount(ctx context.Context, accountID int32) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[accountID]
	if !ok {
		return nil, fmt.Errorf("get wallet: %w", domain.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID int32) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Transaction
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		if r.s.transactions[i].WalletID == walletID {
			out = append(out, r.s.transactions[i])
		}
	}
	return out, nil
}

type accountRepository struct{ s *Store }

func (r *accountRepository) GetByID(ctx context.Context, id int32) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", domain.ErrNotFound)
	}
	return &a, nil
}

type carRepository struct{ s *Store }

func (r *carRepository) GetByID(ctx context.Context, id int32) (*domain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cars[id]
	if !ok {
		return nil, fmt.Errorf("get car: %w", domain.ErrNotFound)
	}
	return &c, nil
}

type numberGenerator struct{ s *Store }

func (g *numberGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.seq++
	return fmt.Sprintf("%s-%08d", at.UTC().Format("20060102"), g.s.seq), nil
}
