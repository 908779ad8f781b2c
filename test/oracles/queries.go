package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_assigned_orders_have_mitra",
			SQL: `SELECT id FROM orders
                  WHERE status IN ('accepted','in_progress','completed')
                    AND (mitra_id IS NULL OR accepted_at IS NULL)`,
		},
		{
			Name: "O2_completed_financials",
			SQL: `SELECT id FROM orders
                  WHERE status = 'completed'
                    AND (duration IS NULL OR duration < 1
                         OR total_amount IS NULL OR commission IS NULL
                         OR total_amount <> rate * duration
                         OR commission <> total_amount * 0.25)`,
		},
		{
			Name: "O3_pending_orders_unassigned",
			SQL: `SELECT id FROM orders
                  WHERE status = 'pending'
                    AND (mitra_id IS NOT NULL OR accepted_at IS NOT NULL)`,
		},
		{
			Name: "O4_financials_set_exactly_on_completion",
			SQL: `SELECT id FROM orders
                  WHERE status <> 'completed'
                    AND (total_amount IS NOT NULL OR commission IS NOT NULL
                         OR duration IS NOT NULL OR completed_at IS NOT NULL)`,
		},
		{
			Name: "O5_lifecycle_timestamps_ordered",
			SQL: `SELECT id FROM orders
                  WHERE (started_at IS NOT NULL AND accepted_at IS NULL)
                     OR (completed_at IS NOT NULL AND started_at IS NULL)
                     OR (started_at IS NOT NULL AND started_at < accepted_at)
                     OR (completed_at IS NOT NULL AND completed_at < started_at)`,
		},
		{
			Name: "O6_nonnegative_balances",
			SQL:  `SELECT account_id FROM ledger_balances WHERE balance < 0`,
		},
		{
			Name: "O7_terminal_topups",
			SQL: `SELECT id FROM topup_requests
                  WHERE (status = 'pending' AND processed_at IS NOT NULL)
                     OR (status <> 'pending' AND processed_at IS NULL)`,
		},
		{
			Name: "O8_blocklist_flag_sync",
			SQL: `SELECT u.id FROM users u
                  LEFT JOIN blocked_accounts b ON b.account_id = u.id
                  WHERE u.is_blocked <> (b.account_id IS NOT NULL)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
