package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_WritesTopicAndPayload(t *testing.T) {
	tx := &fakeTx{}
	err := Enqueue(context.Background(), tx, "document.status_changed", map[string]any{"document_id": "doc-1"})
	require.NoError(t, err)

	require.Len(t, tx.execs, 1)
	assert.Contains(t, tx.execs[0].sql, "INSERT INTO outbox")
	assert.Equal(t, "document.status_changed", tx.execs[0].args[0])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(tx.execs[0].args[1].([]byte), &payload))
	assert.Equal(t, "doc-1", payload["document_id"])
}

func TestEnqueue_RejectsEmptyTopic(t *testing.T) {
	tx := &fakeTx{}
	err := Enqueue(context.Background(), tx, "", nil)
	require.Error(t, err)
	assert.Empty(t, tx.execs)
}

func TestRelayRunOnce_PublishesAndMarksProcessed(t *testing.T) {
	tx := &fakeTx{rows: []Message{
		{ID: "m1", Topic: "a", Payload: json.RawMessage(`{}`), Status: StatusPending},
		{ID: "m2", Topic: "b", Payload: json.RawMessage(`{}`), Status: StatusPending},
	}}
	pool := &fakePool{tx: tx}

	var published []string
	pub := PublisherFunc(func(_ context.Context, msg Message) error {
		published = append(published, msg.ID)
		return nil
	})

	stats, err := NewRelay(pool, pub, nil).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Claimed: 2, Processed: 2}, stats)
	assert.Equal(t, []string{"m1", "m2"}, published)
	assert.True(t, tx.committed)
	require.Len(t, tx.execs, 2)
	for _, e := range tx.execs {
		assert.Contains(t, e.sql, "status='processed'")
	}
}

func TestRelayRunOnce_FailureIncrementsAttemptsAndDeadLetters(t *testing.T) {
	tx := &fakeTx{rows: []Message{
		{ID: "fresh", Topic: "a", Attempts: 0},
		{ID: "exhausted", Topic: "a", Attempts: 2},
	}}
	pool := &fakePool{tx: tx}
	pub := PublisherFunc(func(context.Context, Message) error { return errors.New("broker down") })

	stats, err := NewRelay(pool, pub, nil).WithMaxAttempts(3).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Claimed: 2, Failed: 1, Dead: 1}, stats)
	require.Len(t, tx.execs, 2)
	assert.Equal(t, "broker down", tx.execs[0].args[1])
	assert.Equal(t, string(StatusPending), tx.execs[0].args[2])
	assert.Equal(t, string(StatusDead), tx.execs[1].args[2])
	assert.True(t, tx.committed)
}

func TestRelayRunOnce_BeginError(t *testing.T) {
	pool := &fakePool{beginErr: errors.New("pool closed")}
	_, err := NewRelay(pool, NewLogPublisher(nil), nil).RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "outbox: begin tx"))
}

func TestRelayRun_StopsOnCancel(t *testing.T) {
	pool := &fakePool{tx: &fakeTx{}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewRelay(pool, NewLogPublisher(nil), nil).Run(ctx, 5*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestSettle(t *testing.T) {
	assert.Equal(t, StatusPending, settle(1, 5))
	assert.Equal(t, StatusPending, settle(4, 5))
	assert.Equal(t, StatusDead, settle(5, 5))
	assert.Equal(t, StatusDead, settle(6, 5))
}

type fakePool struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	// Each pass gets a fresh view of the same claimed rows.
	f.tx.rowsServed = false
	return f.tx, nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	rows       []Message
	rowsServed bool
	execs      []execCall
	rolled     bool
	committed  bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if f.rowsServed {
		return &fakeRows{}, nil
	}
	f.rowsServed = true
	return &fakeRows{msgs: f.rows, idx: -1}, nil
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

type fakeRows struct {
	msgs []Message
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.msgs == nil {
		return false
	}
	r.idx++
	return r.idx < len(r.msgs)
}

func (r *fakeRows) Scan(dest ...any) error {
	m := r.msgs[r.idx]
	*dest[0].(*string) = m.ID
	*dest[1].(*string) = m.Topic
	*dest[2].(*json.RawMessage) = m.Payload
	*dest[3].(*string) = string(m.Status)
	*dest[4].(*int) = m.Attempts
	*dest[5].(**string) = m.LastError
	*dest[6].(**time.Time) = m.LastAttempt
	*dest[7].(*time.Time) = m.CreatedAt
	return nil
}
