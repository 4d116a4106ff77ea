package models

import "time"

type Wallet struct {
	OwnerID   int       `json:"owner_id" db:"owner_id"`
	Balance   int64     `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreditTransactionType string

const (
	TxTypeEnrollmentDebit  CreditTransactionType = "enrollment_debit"
	TxTypeEnrollmentRefund CreditTransactionType = "enrollment_refund"
	TxTypeDeposit          CreditTransactionType = "deposit"
)

// CreditTransaction is the audit row written for every balance change.
type CreditTransaction struct {
	ID            string                `json:"id" db:"id"`
	OwnerID       int                   `json:"owner_id" db:"owner_id"`
	Amount        int64                 `json:"amount" db:"amount"`
	BalanceBefore int64                 `json:"balance_before" db:"balance_before"`
	BalanceAfter  int64                 `json:"balance_after" db:"balance_after"`
	Type          CreditTransactionType `json:"type" db:"type"`
	ReferenceID   *int                  `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
}
