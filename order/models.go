package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceType is the closed set of services the marketplace offers. The same
// enumeration backs mitra skill sets and the order service field.
type ServiceType string

const (
	ServiceMassage ServiceType = "SmartMassage"
	ServiceBarber  ServiceType = "SmartBarber"
	ServiceClean   ServiceType = "SmartClean"
)

// ValidService reports whether s names a known service type.
func ValidService(s ServiceType) bool {
	switch s {
	case ServiceMassage, ServiceBarber, ServiceClean:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentBalance PaymentMethod = "balance"
	PaymentCash    PaymentMethod = "cash"
)

// Order mirrors the orders table. The financial fields (TotalAmount, Duration,
// Commission) are set exactly once, when the order completes.
type Order struct {
	ID            string
	UserID        string
	MitraID       *string
	Service       ServiceType
	Status        Status
	Rate          decimal.Decimal
	Address       string
	Description   *string
	PaymentMethod *PaymentMethod
	TotalAmount   *decimal.Decimal
	Duration      *int
	Commission    *decimal.Decimal
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Filters narrows List results.
type Filters struct {
	UserID  string
	MitraID string
	Status  Status
}

// CreateParams enumerates the fields a customer supplies when placing an order.
type CreateParams struct {
	UserID        string
	Service       ServiceType
	Rate          decimal.Decimal
	Address       string
	Description   *string
	PaymentMethod *PaymentMethod
}

// CompletionParams enumerates the writes applied when an order completes.
type CompletionParams struct {
	CompletedAt time.Time
	Duration    int
	TotalAmount decimal.Decimal
	Commission  decimal.Decimal
}

// CompletionResult reports a completed order together with the ledger outcome.
// Blocked means the commission exceeded the mitra's balance: the order still
// completed, the balance was left untouched and the mitra was blocked from
// accepting further work.
type CompletionResult struct {
	Order   Order
	Blocked bool
}
