package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mitraflow/auth"
	"mitraflow/chat"
	"mitraflow/ledger"
	"mitraflow/onboarding"
	"mitraflow/order"
	"mitraflow/topup"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	ListUsers(ctx context.Context, role auth.Role) ([]auth.User, error)
	UpdateProfile(ctx context.Context, userID string, update auth.ProfileUpdate) (*auth.User, error)
}

type orderService interface {
	Create(ctx context.Context, params order.CreateParams) (order.Order, error)
	Get(ctx context.Context, orderID string) (order.Order, error)
	List(ctx context.Context, filters order.Filters) ([]order.Order, error)
	Accept(ctx context.Context, orderID, mitraID string) (order.Order, error)
	Start(ctx context.Context, orderID string) (order.Order, error)
	Complete(ctx context.Context, orderID string, endedAt time.Time) (order.CompletionResult, error)
	Cancel(ctx context.Context, orderID string) (order.Order, error)
}

type topupService interface {
	Create(ctx context.Context, params topup.CreateParams) (topup.Request, error)
	List(ctx context.Context, filters topup.Filters) ([]topup.Request, error)
	Approve(ctx context.Context, requestID string) (topup.Request, error)
	Reject(ctx context.Context, requestID string) (topup.Request, error)
}

type onboardingService interface {
	Apply(ctx context.Context, params onboarding.CreateParams) (onboarding.Application, error)
	List(ctx context.Context, filters onboarding.Filters) ([]onboarding.Application, error)
	Approve(ctx context.Context, applicationID, loginEmail, loginPassword string) (onboarding.ApprovalResult, error)
	Reject(ctx context.Context, applicationID string) (onboarding.Application, error)
}

type ledgerService interface {
	Balance(ctx context.Context, accountID string, class ledger.AccountClass) (decimal.Decimal, error)
	BlockAccount(ctx context.Context, accountID string) error
	UnblockAccount(ctx context.Context, accountID string) error
	ListBlocked(ctx context.Context) ([]ledger.BlockedAccount, error)
}

type chatService interface {
	Send(ctx context.Context, params chat.CreateParams) (chat.Message, error)
	List(ctx context.Context, filters chat.Filters) ([]chat.Message, error)
}

// Server routes the HTTP API onto the domain services.
type Server struct {
	authService       authService
	orderService      orderService
	topupService      topupService
	onboardingService onboardingService
	ledgerService     ledgerService
	chatService       chatService
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/users", s.withAuth(s.handleUsers))
	mux.HandleFunc("/api/users/", s.withAuth(s.handleUserDetail))
	mux.HandleFunc("/api/orders", s.withAuth(s.handleOrders))
	mux.HandleFunc("/api/orders/", s.withAuth(s.handleOrderDetail))
	mux.HandleFunc("/api/topup-requests", s.withAuth(s.handleTopUpRequests))
	mux.HandleFunc("/api/topup-requests/", s.withAuth(s.handleTopUpRequestDetail))
	mux.HandleFunc("/api/mitra-applications", s.withAuth(s.handleMitraApplications))
	mux.HandleFunc("/api/mitra-applications/", s.withAuth(s.handleMitraApplicationDetail))
	mux.HandleFunc("/api/chat-messages", s.withAuth(s.handleChatMessages))
	mux.HandleFunc("/api/blocked-accounts", s.withAuth(s.handleBlockedAccounts))
	return mux
}

// withAuth attaches the authenticated user to the request context when a
// bearer token is present. Handlers decide per route whether identity is
// required; mitra applications, for instance, are submitted anonymously.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		userID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  toUserResponse(result.User, nil),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "email already exists")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		default:
			writeError(w, http.StatusBadRequest, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(*user, nil)})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	users, err := s.authService.ListUsers(r.Context(), auth.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleUserDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getUser(w, r, id)
	case http.MethodPatch:
		s.patchUser(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, id string) {
	callerID, _ := requestUser(r)
	if callerID != id && !isAdmin(r) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	user, err := s.authService.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	balance := s.balanceFor(r.Context(), *user)
	writeJSON(w, http.StatusOK, toUserResponse(*user, balance))
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request, id string) {
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var body struct {
		Name      *string `json:"name"`
		Phone     *string `json:"phone"`
		Address   *string `json:"address"`
		IsBlocked *bool   `json:"isBlocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.IsBlocked != nil {
		var err error
		if *body.IsBlocked {
			err = s.ledgerService.BlockAccount(r.Context(), id)
		} else {
			err = s.ledgerService.UnblockAccount(r.Context(), id)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update block status")
			return
		}
	}

	if body.Name != nil || body.Phone != nil || body.Address != nil {
		update := auth.ProfileUpdate{Name: body.Name, Phone: body.Phone, Address: body.Address}
		if _, err := s.authService.UpdateProfile(r.Context(), id, update); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to update user")
			return
		}
	}

	user, err := s.authService.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user, s.balanceFor(r.Context(), *user)))
}

func (s *Server) balanceFor(ctx context.Context, user auth.User) *decimal.Decimal {
	var class ledger.AccountClass
	switch user.Role {
	case auth.RoleUser:
		class = ledger.ClassUser
	case auth.RoleMitra:
		class = ledger.ClassMitra
	default:
		return nil
	}

	balance, err := s.ledgerService.Balance(ctx, user.ID, class)
	if err != nil {
		return nil
	}
	return &balance
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listOrders(w, r)
	case http.MethodPost:
		s.createOrder(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	callerID, role := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	filters := order.Filters{
		UserID:  q.Get("userId"),
		MitraID: q.Get("mitraId"),
		Status:  order.Status(q.Get("status")),
	}

	// Non-admins only see their own slice of the book. A mitra may also
	// browse the pending pool to pick up work.
	switch role {
	case auth.RoleAdmin:
	case auth.RoleMitra:
		if filters.Status != order.StatusPending {
			filters.MitraID = callerID
		}
	default:
		filters.UserID = callerID
	}

	orders, err := s.orderService.List(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}

	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	callerID, _ := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body struct {
		Service       string          `json:"service"`
		Rate          decimal.Decimal `json:"rate"`
		Address       string          `json:"address"`
		Description   *string         `json:"description"`
		PaymentMethod *string         `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := order.CreateParams{
		UserID:      callerID,
		Service:     order.ServiceType(body.Service),
		Rate:        body.Rate,
		Address:     body.Address,
		Description: body.Description,
	}
	if body.PaymentMethod != nil {
		pm := order.PaymentMethod(*body.PaymentMethod)
		params.PaymentMethod = &pm
	}

	ord, err := s.orderService.Create(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to create order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

func (s *Server) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getOrder(w, r, id)
	case http.MethodPatch:
		s.patchOrder(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	callerID, role := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ord, err := s.orderService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch order")
		return
	}

	assigned := ord.MitraID != nil && *ord.MitraID == callerID
	if role != auth.RoleAdmin && ord.UserID != callerID && !assigned {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// patchOrder drives the lifecycle engine. The requested status names the
// transition: accepted, in_progress, completed or cancelled.
func (s *Server) patchOrder(w http.ResponseWriter, r *http.Request, id string) {
	callerID, role := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body struct {
		Status  string     `json:"status"`
		MitraID *string    `json:"mitraId"`
		EndTime *time.Time `json:"endTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch order.Status(body.Status) {
	case order.StatusAccepted:
		// A mitra accepts for itself; an admin may assign on a mitra's behalf.
		mitraID := callerID
		if role == auth.RoleAdmin && body.MitraID != nil {
			mitraID = *body.MitraID
		} else if role != auth.RoleMitra {
			writeError(w, http.StatusForbidden, "only a mitra can accept orders")
			return
		}
		ord, err := s.orderService.Accept(r.Context(), id, mitraID)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(ord))

	case order.StatusInProgress:
		if !s.authorizeAssigned(w, r, id, callerID, role) {
			return
		}
		ord, err := s.orderService.Start(r.Context(), id)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(ord))

	case order.StatusCompleted:
		if !s.authorizeAssigned(w, r, id, callerID, role) {
			return
		}
		endedAt := time.Now()
		if body.EndTime != nil {
			endedAt = *body.EndTime
		}
		result, err := s.orderService.Complete(r.Context(), id, endedAt)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		resp := toOrderResponse(result.Order)
		writeJSON(w, http.StatusOK, map[string]any{"order": resp, "mitraBlocked": result.Blocked})

	case order.StatusCancelled:
		ord, err := s.orderService.Get(r.Context(), id)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		if role != auth.RoleAdmin && ord.UserID != callerID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		updated, err := s.orderService.Cancel(r.Context(), id)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(updated))

	default:
		writeError(w, http.StatusBadRequest, "unknown status transition")
	}
}

func (s *Server) authorizeAssigned(w http.ResponseWriter, r *http.Request, orderID, callerID string, role auth.Role) bool {
	if role == auth.RoleAdmin {
		return true
	}
	ord, err := s.orderService.Get(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return false
	}
	if ord.MitraID == nil || *ord.MitraID != callerID {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (s *Server) handleTopUpRequests(w http.ResponseWriter, r *http.Request) {
	callerID, role := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		filters := topup.Filters{Status: topup.Status(r.URL.Query().Get("status"))}
		if role != auth.RoleAdmin {
			filters.UserID = callerID
		}
		requests, err := s.topupService.List(r.Context(), filters)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch top-up requests")
			return
		}
		items := make([]topupResponse, 0, len(requests))
		for _, req := range requests {
			items = append(items, toTopupResponse(req))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case http.MethodPost:
		var body struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		class := ledger.ClassUser
		if role == auth.RoleMitra {
			class = ledger.ClassMitra
		}
		req, err := s.topupService.Create(r.Context(), topup.CreateParams{
			UserID:   callerID,
			UserType: class,
			Amount:   body.Amount,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to create top-up request")
			return
		}
		writeJSON(w, http.StatusOK, toTopupResponse(req))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTopUpRequestDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/topup-requests/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		req topup.Request
		err error
	)
	switch topup.Status(body.Status) {
	case topup.StatusApproved:
		req, err = s.topupService.Approve(r.Context(), id)
	case topup.StatusRejected:
		req, err = s.topupService.Reject(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, topup.ErrNotFound):
			writeError(w, http.StatusNotFound, "top-up request not found")
		case errors.Is(err, topup.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, "top-up request already processed")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update top-up request")
		}
		return
	}

	writeJSON(w, http.StatusOK, toTopupResponse(req))
}

func (s *Server) handleMitraApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !isAdmin(r) {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		apps, err := s.onboardingService.List(r.Context(), onboarding.Filters{
			Status: onboarding.Status(r.URL.Query().Get("status")),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch applications")
			return
		}
		items := make([]applicationResponse, 0, len(apps))
		for _, app := range apps {
			items = append(items, toApplicationResponse(app))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case http.MethodPost:
		// Applicants are not account holders yet; no auth required.
		var body struct {
			Name    string   `json:"name"`
			Phone   string   `json:"phone"`
			Address string   `json:"address"`
			Skills  []string `json:"skills"`
			Reason  string   `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		skills := make([]order.ServiceType, 0, len(body.Skills))
		for _, skill := range body.Skills {
			skills = append(skills, order.ServiceType(skill))
		}
		app, err := s.onboardingService.Apply(r.Context(), onboarding.CreateParams{
			Name:    body.Name,
			Phone:   body.Phone,
			Address: body.Address,
			Skills:  skills,
			Reason:  body.Reason,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to create application")
			return
		}
		writeJSON(w, http.StatusOK, toApplicationResponse(app))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleMitraApplicationDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/mitra-applications/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var body struct {
		Status   string `json:"status"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch onboarding.Status(body.Status) {
	case onboarding.StatusApproved:
		result, err := s.onboardingService.Approve(r.Context(), id, body.Email, body.Password)
		if err != nil {
			writeOnboardingError(w, err)
			return
		}
		resp := toApplicationResponse(result.Application)
		writeJSON(w, http.StatusOK, map[string]any{"application": resp, "mitraId": result.MitraID})

	case onboarding.StatusRejected:
		app, err := s.onboardingService.Reject(r.Context(), id)
		if err != nil {
			writeOnboardingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApplicationResponse(app))

	default:
		writeError(w, http.StatusBadRequest, "status must be approved or rejected")
	}
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	callerID, role := requestUser(r)
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		filters := chat.Filters{}
		if role != auth.RoleAdmin {
			filters.ParticipantID = callerID
		}
		messages, err := s.chatService.List(r.Context(), filters)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch chat messages")
			return
		}
		items := make([]chatMessageResponse, 0, len(messages))
		for _, msg := range messages {
			items = append(items, toChatMessageResponse(msg))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case http.MethodPost:
		var body struct {
			ReceiverID string `json:"receiverId"`
			Message    string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := s.chatService.Send(r.Context(), chat.CreateParams{
			SenderID:   callerID,
			ReceiverID: body.ReceiverID,
			Body:       body.Message,
			Type:       chat.SenderType(role),
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to send message")
			return
		}
		writeJSON(w, http.StatusOK, toChatMessageResponse(msg))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBlockedAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	blocked, err := s.ledgerService.ListBlocked(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch blocked accounts")
		return
	}

	items := make([]blockedAccountResponse, 0, len(blocked))
	for _, b := range blocked {
		items = append(items, blockedAccountResponse{
			AccountID: b.AccountID,
			BlockedAt: b.BlockedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "transition not allowed in current status")
	case errors.Is(err, order.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "balance below acceptance threshold")
	case errors.Is(err, order.ErrMitraBlocked):
		writeError(w, http.StatusForbidden, "account is blocked")
	case errors.Is(err, order.ErrInvalidCompletionTime):
		writeError(w, http.StatusBadRequest, "completion time before start time")
	default:
		writeError(w, http.StatusInternalServerError, "failed to update order")
	}
}

func writeOnboardingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, onboarding.ErrNotFound):
		writeError(w, http.StatusNotFound, "application not found")
	case errors.Is(err, onboarding.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "application already processed")
	case errors.Is(err, onboarding.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email already registered")
	case errors.Is(err, onboarding.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
	default:
		writeError(w, http.StatusInternalServerError, "failed to update application")
	}
}

func requestUser(r *http.Request) (string, auth.Role) {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return userID, role
}

func isAdmin(r *http.Request) bool {
	_, role := requestUser(r)
	return role == auth.RoleAdmin
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
