package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mitraflow/ledger"
	"mitraflow/order"
	"mitraflow/test/actors"
	"mitraflow/test/chaos"
	"mitraflow/test/infra"
	"mitraflow/test/oracles"
	"mitraflow/topup"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

func TestMarketplaceConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Skipf("no docker and no local postgres: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seedData := mustSeed(t, ctx, pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(pool, ledgerRepo)
	orderService := order.NewService(pool, order.NewRepository(pool), ledgerService, ledgerService)
	topupService := topup.NewService(pool, topup.NewRepository(pool), ledgerRepo)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// customers placing orders and mitras racing over the pending pool
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Customer(ctx2, orderService, seedData.userID, stop) })
	}
	for _, mitraID := range seedData.mitraIDs {
		id := mitraID
		g.Go(func() error { return actors.Runner(ctx2, pool, orderService, id, stop) })
		g.Go(func() error {
			return actors.TopUpRequester(ctx2, topupService, topup.CreateParams{
				UserID:   id,
				UserType: ledger.ClassMitra,
			}, stop)
		})
	}
	g.Go(func() error { return actors.Canceller(ctx2, pool, orderService, stop) })
	// two admins racing over the same pending requests
	g.Go(func() error { return actors.TopUpProcessor(ctx2, pool, topupService, stop) })
	g.Go(func() error { return actors.TopUpProcessor(ctx2, pool, topupService, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	userID   string
	mitraIDs []string
}

// mustSeed creates one customer and a few mitra accounts. The first mitra is
// funded well above the acceptance threshold, the second sits exactly on it
// and the third starts broke, so all three acceptance outcomes occur.
func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIDs {
	t.Helper()
	var s seedIDs

	if err := pool.QueryRow(ctx, `
		INSERT INTO users (email, name, phone, password_hash, role)
		VALUES ($1, 'Stress Customer', '+628000000001', 'x', 'user')
		RETURNING id
	`, fmt.Sprintf("customer%d@example.com", rand.Int63())).Scan(&s.userID); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	balances := []decimal.Decimal{
		decimal.NewFromInt(500000),
		decimal.NewFromInt(10000),
		decimal.Zero,
	}
	for i, balance := range balances {
		var mitraID string
		if err := pool.QueryRow(ctx, `
			INSERT INTO users (email, name, phone, password_hash, role, skills)
			VALUES ($1, $2, $3, 'x', 'mitra', '{SmartMassage,SmartBarber,SmartClean}'::service_type[])
			RETURNING id
		`,
			fmt.Sprintf("mitra%d-%d@example.com", i, rand.Int63()),
			fmt.Sprintf("Stress Mitra %d", i),
			fmt.Sprintf("+62800000001%d", i),
		).Scan(&mitraID); err != nil {
			t.Fatalf("seed mitra %d: %v", i, err)
		}

		if _, err := pool.Exec(ctx, `
			INSERT INTO ledger_balances (account_id, account_class, balance)
			VALUES ($1, 'mitra', $2)
		`, mitraID, balance); err != nil {
			t.Fatalf("seed mitra balance %d: %v", i, err)
		}

		s.mitraIDs = append(s.mitraIDs, mitraID)
	}

	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"orders", `SELECT id, status, mitra_id, rate, total_amount, duration, commission FROM orders ORDER BY created_at DESC LIMIT 50`},
		{"topup_requests", `SELECT id, user_id, amount, status, processed_at FROM topup_requests ORDER BY requested_at DESC LIMIT 50`},
		{"ledger_balances", `SELECT account_id, account_class, balance FROM ledger_balances ORDER BY updated_at DESC LIMIT 50`},
		{"blocked_accounts", `SELECT account_id, blocked_at FROM blocked_accounts ORDER BY blocked_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
