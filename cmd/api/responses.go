package main

import (
	"time"

	"github.com/shopspring/decimal"

	"mitraflow/auth"
	"mitraflow/chat"
	"mitraflow/onboarding"
	"mitraflow/order"
	"mitraflow/topup"
)

type userResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Role      string   `json:"role"`
	Address   *string  `json:"address"`
	IsBlocked bool     `json:"isBlocked"`
	Skills    []string `json:"skills,omitempty"`
	Balance   *string  `json:"balance,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

func toUserResponse(user auth.User, balance *decimal.Decimal) userResponse {
	resp := userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      string(user.Role),
		Address:   user.Address,
		IsBlocked: user.Blocked,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
	for _, skill := range user.Skills {
		resp.Skills = append(resp.Skills, string(skill))
	}
	if balance != nil {
		s := balance.String()
		resp.Balance = &s
	}
	return resp
}

type orderResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	MitraID       *string `json:"mitraId"`
	Service       string  `json:"service"`
	Status        string  `json:"status"`
	Rate          string  `json:"rate"`
	Address       string  `json:"address"`
	Description   *string `json:"description"`
	PaymentMethod *string `json:"paymentMethod"`
	TotalAmount   *string `json:"totalAmount"`
	Duration      *int    `json:"duration"`
	Commission    *string `json:"commission"`
	CreatedAt     string  `json:"createdAt"`
	AcceptedAt    *string `json:"acceptedAt"`
	StartedAt     *string `json:"startedAt"`
	CompletedAt   *string `json:"completedAt"`
}

func toOrderResponse(o order.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		MitraID:     o.MitraID,
		Service:     string(o.Service),
		Status:      string(o.Status),
		Rate:        o.Rate.String(),
		Address:     o.Address,
		Description: o.Description,
		TotalAmount: decimalString(o.TotalAmount),
		Duration:    o.Duration,
		Commission:  decimalString(o.Commission),
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
		AcceptedAt:  timeString(o.AcceptedAt),
		StartedAt:   timeString(o.StartedAt),
		CompletedAt: timeString(o.CompletedAt),
	}
	if o.PaymentMethod != nil {
		pm := string(*o.PaymentMethod)
		resp.PaymentMethod = &pm
	}
	return resp
}

type topupResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	UserType    string  `json:"userType"`
	Amount      string  `json:"amount"`
	Status      string  `json:"status"`
	RequestedAt string  `json:"requestedAt"`
	ProcessedAt *string `json:"processedAt"`
}

func toTopupResponse(req topup.Request) topupResponse {
	return topupResponse{
		ID:          req.ID,
		UserID:      req.UserID,
		UserType:    string(req.UserType),
		Amount:      req.Amount.String(),
		Status:      string(req.Status),
		RequestedAt: req.RequestedAt.Format(time.RFC3339),
		ProcessedAt: timeString(req.ProcessedAt),
	}
}

type applicationResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	Skills      []string `json:"skills"`
	Reason      string   `json:"reason"`
	Status      string   `json:"status"`
	AppliedAt   string   `json:"appliedAt"`
	ProcessedAt *string  `json:"processedAt"`
}

func toApplicationResponse(app onboarding.Application) applicationResponse {
	resp := applicationResponse{
		ID:          app.ID,
		Name:        app.Name,
		Phone:       app.Phone,
		Address:     app.Address,
		Skills:      []string{},
		Reason:      app.Reason,
		Status:      string(app.Status),
		AppliedAt:   app.AppliedAt.Format(time.RFC3339),
		ProcessedAt: timeString(app.ProcessedAt),
	}
	for _, skill := range app.Skills {
		resp.Skills = append(resp.Skills, string(skill))
	}
	return resp
}

type chatMessageResponse struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	SentAt     string `json:"sentAt"`
}

func toChatMessageResponse(msg chat.Message) chatMessageResponse {
	return chatMessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Message:    msg.Body,
		Type:       string(msg.Type),
		SentAt:     msg.SentAt.Format(time.RFC3339),
	}
}

type blockedAccountResponse struct {
	AccountID string `json:"accountId"`
	BlockedAt string `json:"blockedAt"`
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
