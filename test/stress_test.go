package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"docflow/auth"
	"docflow/contract"
	"docflow/document"
	"docflow/outbox"
	"docflow/test/actors"
	"docflow/test/chaos"
	"docflow/test/infra"
	"docflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 30*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "reviewers per stage and vendor workers")
	flDocuments   = flag.Int("documents", 12, "documents under contention")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flStrict      = flag.Bool("strict", false, "enforce stage order on reviews")
)

// TestReviewConcurrency races reviewers of every stage, resubmitting vendors
// and outbox relays on a shared set of documents while backends are killed,
// then checks the SQL oracles.
func TestReviewConcurrency(t *testing.T) {
	if os.Getenv("DOCFLOW_STRESS") == "" && *flDSN == "" {
		t.Skip("set DOCFLOW_STRESS=1 or pass -dsn to run the stress test")
	}
	seed := *flSeed
	rand.Seed(seed)
	t.Logf("seed=%d strict=%v", seed, *flStrict)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+2*time.Minute)
	defer cancel()

	h, err := infra.Start(ctx, *flDSN, 32)
	if err != nil {
		t.Fatalf("start harness: %v", err)
	}
	defer func() {
		if err := h.Close(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()
	t.Logf("postgres backend: %s", h.Backend)
	pool := h.Pool()

	logger := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	svc := document.NewService(document.NewRepository(pool), logger).
		WithContracts(contract.NewService(contract.NewRepository(pool))).
		WithStrictTransitions(*flStrict)

	seedData := mustSeed(t, ctx, pool, svc, *flConcurrency, *flDocuments)

	tally := &actors.Tally{}
	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		for stage, reviewers := range seedData.reviewers {
			stage, actor := stage, reviewers[i]
			g.Go(func() error {
				return actors.Reviewer(gctx, svc, actor, stage, seedData.docIDs, tally, stop)
			})
		}
		g.Go(func() error {
			return actors.Vendor(gctx, svc, seedData.vendor, seedData.docIDs, tally, stop)
		})
	}

	flaky := outbox.NewRelay(pool, actors.FlakyPublisher(10), logger).WithBatchSize(10)
	for i := 0; i < 2; i++ {
		g.Go(func() error { return actors.OutboxWorker(gctx, flaky, tally, stop) })
	}

	killed := make(chan int, 1)
	go func() { killed <- chaos.TerminateRandomBackend(gctx, pool, infra.AppName, stop) }()

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-gctx.Done():
			break loop
		case <-ticker.C:
			checkOracles(t, ctx, pool, seed)
		}
	}

	close(stop)
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}
	t.Logf("tally: %s killed=%d", tally, <-killed)

	if tally.Reviews.Load() == 0 {
		t.Fatalf("no review committed during the run (seed=%d)", seed)
	}

	drain := outbox.NewRelay(pool, outbox.PublisherFunc(func(context.Context, outbox.Message) error { return nil }), logger).
		WithBatchSize(100)
	for i := 0; i < 1000; i++ {
		stats, err := drain.RunOnce(ctx)
		if err != nil {
			continue
		}
		if stats.Claimed == 0 {
			break
		}
	}
	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&pending); err != nil {
		t.Fatalf("count pending outbox: %v", err)
	}
	if pending != 0 {
		t.Fatalf("outbox still has %d pending messages after drain", pending)
	}

	checkOracles(t, ctx, pool, seed)
}

// checkOracles runs every oracle, retrying once because chaos may have left a
// dead connection in the pool.
func checkOracles(t *testing.T, ctx context.Context, pool *pgxpool.Pool, seed int64) {
	t.Helper()
	var (
		name, row string
		err       error
	)
	for attempt := 0; attempt < 2; attempt++ {
		name, row, err = oracles.Run(ctx, pool)
		if err == nil {
			break
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		t.Fatalf("oracle error: %v", err)
	}
	if name != "" {
		dumpRecent(t, ctx, pool)
		t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
	}
}

type seedIDs struct {
	vendor    auth.Principal
	reviewers map[document.Stage][]auth.Principal
	docIDs    []string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, svc *document.Service, reviewersPerStage, documents int) seedIDs {
	t.Helper()
	suffix := rand.Int63()

	seedUser := func(role auth.Role, n int) auth.Principal {
		var id string
		err := pool.QueryRow(ctx,
			`INSERT INTO users (email, name, password_hash, role) VALUES ($1, $2, 'x', $3::user_role) RETURNING id::text`,
			fmt.Sprintf("%s-%d-%d@stress.test", role, n, suffix), fmt.Sprintf("%s %d", role, n), string(role)).Scan(&id)
		if err != nil {
			t.Fatalf("seed %s user: %v", role, err)
		}
		return auth.Principal{ID: id, Role: role}
	}

	s := seedIDs{
		vendor:    seedUser(auth.RoleVendor, 0),
		reviewers: map[document.Stage][]auth.Principal{},
	}
	for _, stage := range []document.Stage{document.StageConsultant, document.StageEngineering, document.StageManager} {
		for i := 0; i < reviewersPerStage; i++ {
			s.reviewers[stage] = append(s.reviewers[stage], seedUser(stage.RequiredRole(), i))
		}
	}

	var contractID string
	if err := pool.QueryRow(ctx,
		`INSERT INTO contracts (contract_number, contract_date) VALUES ($1, CURRENT_DATE) RETURNING id::text`,
		fmt.Sprintf("STRESS-%d", suffix)).Scan(&contractID); err != nil {
		t.Fatalf("seed contract: %v", err)
	}

	types := []document.Type{document.TypeCivil, document.TypeProtection}
	for i := 0; i < documents; i++ {
		params := document.SubmitParams{
			Name:     fmt.Sprintf("Stress document %d", i),
			FilePath: fmt.Sprintf("/uploads/stress-%d.pdf", i),
			Type:     types[i%len(types)],
		}
		if i%2 == 0 {
			params.ContractID = &contractID
		}
		doc, err := svc.Submit(ctx, s.vendor, params)
		if err != nil {
			t.Fatalf("seed document %d: %v", i, err)
		}
		s.docIDs = append(s.docIDs, doc.ID)
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
		{"documents", `SELECT id, status, version, reviewed_by_id, progress, updated_at FROM documents ORDER BY updated_at DESC LIMIT 20`},
		{"approvals", `SELECT id, document_id, status, approved_by_id, created_at FROM approvals ORDER BY created_at DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
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
				buf = append(buf, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
