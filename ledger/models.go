package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountClass separates the two balance namespaces. A single person could in
// principle hold both a customer and a mitra balance under the same id.
type AccountClass string

const (
	ClassUser  AccountClass = "user"
	ClassMitra AccountClass = "mitra"
)

// ValidClass reports whether c names a known account class.
func ValidClass(c AccountClass) bool {
	return c == ClassUser || c == ClassMitra
}

// Balance is one row of the ledger.
type Balance struct {
	AccountID    string
	AccountClass AccountClass
	Amount       decimal.Decimal
	UpdatedAt    time.Time
}

// BlockedAccount records a mitra barred from accepting new work.
type BlockedAccount struct {
	AccountID string
	BlockedAt time.Time
}
