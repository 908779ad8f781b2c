package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"mitraflow/order"
	"mitraflow/topup"
)

// The actors drive the real services against a live database. Individual
// operation failures are expected noise under contention and chaos; the
// oracles, not the actors, decide whether an invariant broke.

var services = []order.ServiceType{order.ServiceMassage, order.ServiceBarber, order.ServiceClean}

// Customer keeps placing new orders with integer rupiah rates.
func Customer(ctx context.Context, svc *order.Service, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		rate := decimal.NewFromInt(int64(20000 + rand.Intn(180)*1000))
		_, _ = svc.Create(ctx, order.CreateParams{
			UserID:  userID,
			Service: services[rand.Intn(len(services))],
			Rate:    rate,
			Address: "Jl. Stress No. 1",
		})
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Runner is a mitra working the pending pool: accept, start, complete. Racing
// runners hammer the same pending orders, so most accepts lose; the conditional
// transition write guarantees a single winner per order.
func Runner(ctx context.Context, pool *pgxpool.Pool, svc *order.Service, mitraID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		orderID, err := randomOrderID(ctx, pool, "pending")
		if err != nil || orderID == "" {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if _, err := svc.Accept(ctx, orderID, mitraID); err != nil {
			time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
			continue
		}
		if _, err := svc.Start(ctx, orderID); err != nil {
			continue
		}
		endedAt := time.Now().Add(time.Duration(rand.Intn(180)) * time.Minute)
		_, _ = svc.Complete(ctx, orderID, endedAt)

		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Canceller voids orders that have not started yet, racing the runners.
func Canceller(ctx context.Context, pool *pgxpool.Pool, svc *order.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		status := "pending"
		if rand.Intn(2) == 0 {
			status = "accepted"
		}
		orderID, err := randomOrderID(ctx, pool, status)
		if err == nil && orderID != "" {
			_, _ = svc.Cancel(ctx, orderID)
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// TopUpRequester keeps asking for balance increases.
func TopUpRequester(ctx context.Context, svc *topup.Service, params topup.CreateParams, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		p := params
		p.Amount = decimal.NewFromInt(int64(10000 + rand.Intn(90)*1000))
		_, _ = svc.Create(ctx, p)
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
	}
}

// TopUpProcessor is an admin racing other admins over the same pending
// requests. Replays must fail and each approval credits exactly once.
func TopUpProcessor(ctx context.Context, pool *pgxpool.Pool, svc *topup.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}

		var requestID string
		err := pool.QueryRow(ctx, `SELECT id FROM topup_requests WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&requestID)
		if err == nil && requestID != "" {
			if rand.Intn(4) == 0 {
				_, _ = svc.Reject(ctx, requestID)
			} else {
				_, _ = svc.Approve(ctx, requestID)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

func randomOrderID(ctx context.Context, pool *pgxpool.Pool, status string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM orders WHERE status = $1::order_status ORDER BY random() LIMIT 1`, status).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}
