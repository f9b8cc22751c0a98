package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the kind of value-moving event recorded against a balance
type TransactionKind string

const (
	KindBuy         TransactionKind = "BUY"
	KindSell        TransactionKind = "SELL"
	KindDeposit     TransactionKind = "DEPOSIT"
	KindWithdrawal  TransactionKind = "WITHDRAWAL"
	KindTransferIn  TransactionKind = "TRANSFER_IN"
	KindTransferOut TransactionKind = "TRANSFER_OUT"
	KindFee         TransactionKind = "FEE"
	KindReward      TransactionKind = "REWARD"
)

// TransactionStatus moves PENDING -> COMPLETED; COMPLETED is terminal
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
)

// IsValid reports whether k is one of the known kinds
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindBuy, KindSell, KindDeposit, KindWithdrawal,
		KindTransferIn, KindTransferOut, KindFee, KindReward:
		return true
	}
	return false
}

// IsInflow reports whether the kind increases the held quantity
func (k TransactionKind) IsInflow() bool {
	switch k {
	case KindBuy, KindDeposit, KindTransferIn, KindReward:
		return true
	}
	return false
}

// IsOutflow reports whether the kind disposes of quantity against FIFO lots.
// FEE reduces quantity too but is not a disposal.
func (k TransactionKind) IsOutflow() bool {
	switch k {
	case KindSell, KindWithdrawal, KindTransferOut:
		return true
	}
	return false
}

func (k TransactionKind) IsFee() bool {
	return k == KindFee
}

// ParseKind normalizes a user-supplied kind ("buy", "transfer_in", ...)
func ParseKind(s string) (TransactionKind, bool) {
	k := TransactionKind(strings.ToUpper(strings.TrimSpace(s)))
	return k, k.IsValid()
}

// Transaction is one entry in the per-(user, asset) ledger
type Transaction struct {
	ID          string            `json:"id" gorm:"primaryKey;column:id;type:varchar(255)"`
	UserID      string            `json:"user_id" gorm:"column:user_id;type:varchar(255);not null;index:idx_transactions_user_asset"`
	Asset       string            `json:"asset" gorm:"column:asset;type:varchar(50);not null;index:idx_transactions_user_asset"`
	Kind        TransactionKind   `json:"kind" gorm:"column:kind;type:varchar(20);not null"`
	Amount      decimal.Decimal   `json:"amount" gorm:"column:amount;type:numeric;not null"`
	Price       *decimal.Decimal  `json:"price,omitempty" gorm:"column:price;type:numeric"`
	Fee         decimal.Decimal   `json:"fee" gorm:"column:fee;type:numeric;not null;default:0"`
	TotalValue  decimal.Decimal   `json:"total_value" gorm:"column:total_value;type:numeric;not null;default:0"`
	Status      TransactionStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	ExternalRef *string           `json:"external_ref,omitempty" gorm:"column:external_ref;type:varchar(255)"`
	CreatedAt   time.Time         `json:"created_at" gorm:"column:created_at;type:timestamptz;not null;index"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at;type:timestamptz"`
}

// TableName returns the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionFilter represents filters for querying a user's ledger
type TransactionFilter struct {
	Assets    []string
	Kinds     []TransactionKind
	Statuses  []TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// TransactionPage is one page of ledger entries plus the unpaginated count
type TransactionPage struct {
	Items  []*Transaction `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HasPrice reports whether the movement carries a unit price
func (t *Transaction) HasPrice() bool {
	return t.Price != nil
}

// SignedAmount is the quantity effect on the balance: positive for inflows,
// negative for outflows and fees.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.IsInflow() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Validate validates the transaction data
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return errors.New("user_id is required")
	}
	if t.Asset == "" {
		return errors.New("asset is required")
	}
	if !t.Kind.IsValid() {
		return errors.New("kind must be one of BUY, SELL, DEPOSIT, WITHDRAWAL, TRANSFER_IN, TRANSFER_OUT, FEE, REWARD")
	}
	if !t.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if t.Price != nil && t.Price.IsNegative() {
		return errors.New("price must be non-negative")
	}
	if t.Fee.IsNegative() {
		return errors.New("fee must be non-negative")
	}
	return nil
}

// CalculateDerivedFields normalizes the asset symbol and computes TotalValue:
// amount x price, plus the fee on acquisitions and minus it on disposals.
func (t *Transaction) CalculateDerivedFields() {
	t.Asset = strings.ToUpper(strings.TrimSpace(t.Asset))

	if t.Price == nil {
		t.TotalValue = decimal.Zero
		return
	}
	gross := t.Amount.Mul(*t.Price)
	switch {
	case t.Kind == KindBuy:
		t.TotalValue = gross.Add(t.Fee)
	case t.Kind == KindSell:
		t.TotalValue = gross.Sub(t.Fee)
	default:
		t.TotalValue = gross
	}
}

// PreSave prepares the transaction for saving by calculating derived fields and validating
func (t *Transaction) PreSave() error {
	t.CalculateDerivedFields()
	return t.Validate()
}
