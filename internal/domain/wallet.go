package domain

import "time"

type TransactionType string

const (
	TransactionTypePayDeposit         TransactionType = "PAY_DEPOSIT"
	TransactionTypeRefundDeposit      TransactionType = "REFUND_DEPOSIT"
	TransactionTypeOffsetFinalPayment TransactionType = "OFFSET_FINAL_PAYMENT"
	TransactionTypeReceivePayment     TransactionType = "RECEIVE_PAYMENT"
	TransactionTypeTopUp              TransactionType = "TOP_UP"
	TransactionTypeWithdraw           TransactionType = "WITHDRAW"
)

// Sign returns +1 for types that credit the wallet and -1 for types that debit it.
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionTypePayDeposit, TransactionTypeOffsetFinalPayment, TransactionTypeWithdraw:
		return -1
	default:
		return 1
	}
}

type Wallet struct {
	ID        int32     `json:"id"`
	AccountID int32     `json:"account_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry. Amount is always positive; Type decides the direction.
type Transaction struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	WalletID      int32           `json:"wallet_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BookingNumber *string         `json:"booking_number,omitempty"`
	Message       string          `json:"message"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BalanceDelta is the signed change the transaction applies to its wallet.
func (t *Transaction) BalanceDelta() int64 {
	return t.Type.Sign() * t.Amount
}
