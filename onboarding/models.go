package onboarding

import (
	"time"

	"mitraflow/order"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Application mirrors the mitra_applications table. Approval creates a brand
// new mitra account; it never mutates an existing one.
type Application struct {
	ID          string
	Name        string
	Phone       string
	Address     string
	Skills      []order.ServiceType
	Reason      string
	Status      Status
	AppliedAt   time.Time
	ProcessedAt *time.Time
}

// CreateParams enumerates the fields an applicant supplies.
type CreateParams struct {
	Name    string
	Phone   string
	Address string
	Skills  []order.ServiceType
	Reason  string
}

// Filters narrows List results.
type Filters struct {
	Status Status
}
