package service

import (
	"context"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type walletService struct {
	walletRepo repository.WalletRepository
}

func NewWalletService(walletRepo repository.WalletRepository) WalletService {
	return &walletService{walletRepo: walletRepo}
}

func (s *walletService) GetWallet(ctx context.Context, accountID int32) (*domain.Wallet, []domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.walletRepo.ListTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, nil, err
	}
	return wallet, txs, nil
}
