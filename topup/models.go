package topup

import (
	"time"

	"github.com/shopspring/decimal"

	"mitraflow/ledger"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request mirrors the topup_requests table. Once processed the status is
// terminal; the processed timestamp is set exactly once.
type Request struct {
	ID          string
	UserID      string
	UserType    ledger.AccountClass
	Amount      decimal.Decimal
	Status      Status
	RequestedAt time.Time
	ProcessedAt *time.Time
}

// CreateParams enumerates the fields an account holder supplies when asking
// for a balance increase.
type CreateParams struct {
	UserID   string
	UserType ledger.AccountClass
	Amount   decimal.Decimal
}

// Filters narrows List results.
type Filters struct {
	UserID string
	Status Status
}
