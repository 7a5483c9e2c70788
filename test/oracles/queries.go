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

// All returns invariant queries; each must return zero rows on a healthy database.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_approvals_ordered",
			SQL: `WITH ordered AS (
                      SELECT document_id, seq, created_at,
                             LAG(created_at) OVER (PARTITION BY document_id ORDER BY seq) AS prev
                      FROM approvals)
                  SELECT * FROM ordered WHERE prev IS NOT NULL AND created_at < prev`,
		},
		{
			Name: "O2_status_matches_last_approval",
			SQL: `SELECT d.id, d.status::text, last.status::text
                  FROM documents d
                  JOIN LATERAL (
                      SELECT a.status, a.created_at FROM approvals a
                      WHERE a.document_id = d.id
                      ORDER BY a.seq DESC LIMIT 1) last ON true
                  WHERE d.reviewed_by_id IS NOT NULL AND d.status <> last.status`,
		},
		{
			Name: "O3_reviewer_holds_role",
			SQL: `SELECT a.id, u.role::text, a.status::text FROM approvals a
                  JOIN users u ON u.id = a.approved_by_id
                  WHERE u.role = 'Vendor'`,
		},
		{
			Name: "O4_resubmit_clears_reviewer",
			SQL: `SELECT id FROM documents
                  WHERE status = 'submitted' AND reviewed_by_id IS NOT NULL
                    AND progress = 'Resubmitted by vendor'`,
		},
		{
			Name: "O5_outbox_per_transition",
			SQL: `SELECT d.id, COUNT(DISTINCT a.id) AS approvals, COUNT(DISTINCT o.id) AS events
                  FROM documents d
                  LEFT JOIN approvals a ON a.document_id = d.id
                  LEFT JOIN outbox o ON o.payload->>'document_id' = d.id::text
                       AND o.topic = 'document.status_changed'
                  GROUP BY d.id
                  HAVING COUNT(DISTINCT a.id) <> COUNT(DISTINCT o.id)`,
		},
		{
			Name: "O6_outbox_drained",
			SQL: `SELECT id, topic, attempts FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O7_approvals_append_only_guard",
			SQL: `SELECT 'missing_append_only_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'approvals_append_only')`,
		},
	}
}

// ByName returns the oracle with the given name.
func ByName(name string) (Oracle, bool) {
	for _, o := range All() {
		if o.Name == name {
			return o, true
		}
	}
	return Oracle{}, false
}

// Check runs one oracle and reports the first offending row, if any.
func Check(ctx context.Context, pool *pgxpool.Pool, o Oracle) (string, bool, error) {
	rows, err := pool.Query(ctx, o.SQL)
	if err != nil {
		return "", false, fmt.Errorf("oracle %s: %w", o.Name, err)
	}
	defer rows.Close()

	if rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return "", false, fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		return fmt.Sprintf("%v", vals), true, nil
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("oracle %s: %w", o.Name, err)
	}
	return "", false, nil
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		row, failed, err := Check(ctx, pool, o)
		if err != nil {
			return o.Name, "", err
		}
		if failed {
			return o.Name, row, nil
		}
	}
	return "", "", nil
}
