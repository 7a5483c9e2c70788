package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"docflow/auth"
	"docflow/outbox"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `
	d.id::text, d.name, d.file_path, d.version, d.status::text, d.document_type::text,
	d.contract_id::text, c.contract_number, d.submitted_by_id::text, su.name, su.email, su.role::text,
	d.reviewed_by_id::text, d.overall_deadline, d.remarks, d.progress, d.created_at, d.updated_at`

const documentFrom = `
	FROM documents d
	JOIN users su ON su.id = d.submitted_by_id
	LEFT JOIN contracts c ON c.id = d.contract_id`

const approvalColumns = `
	a.id::text, a.document_id::text, a.type::text, a.approved_by_id::text, u.name, u.email, u.role::text,
	a.status::text, a.notes, a.deadline, a.created_at`

// Create inserts a freshly submitted document.
func (r *Repository) Create(ctx context.Context, doc Document) (Document, error) {
	if _, err := uuid.Parse(doc.SubmittedByID); err != nil {
		return Document{}, fmt.Errorf("%w: submitter %s", ErrNotFound, doc.SubmittedByID)
	}
	if doc.ContractID != nil {
		if _, err := uuid.Parse(*doc.ContractID); err != nil {
			return Document{}, fmt.Errorf("%w: contract %s not found", ErrValidation, *doc.ContractID)
		}
	}

	const insertSQL = `
INSERT INTO documents (
	id, name, file_path, version, status, document_type, contract_id,
	submitted_by_id, overall_deadline, remarks, progress, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5::document_status, $6::document_type, $7, $8, $9, $10, $11, $12, $12);
`

	_, err := r.pool.Exec(ctx, insertSQL,
		doc.ID, doc.Name, doc.FilePath, doc.Version, string(doc.Status), string(doc.Type), doc.ContractID,
		doc.SubmittedByID, doc.OverallDeadline, doc.Remarks, doc.Progress, doc.CreatedAt,
	)
	if err != nil {
		return Document{}, mapWriteError("create document", err)
	}

	return r.GetWithApprovals(ctx, doc.ID)
}

// Mutate locks the document row, applies fn and persists the resulting
// transition in one transaction: row update, optional approval append and
// outbox message. A non-empty idempotency key that was already used skips fn
// and returns the current document with ErrDuplicateIdempotencyKey.
func (r *Repository) Mutate(ctx context.Context, id, idempotencyKey string, fn Mutation) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if idempotencyKey != "" {
		if err := insertIdempotencyKey(ctx, tx, idempotencyKey); err != nil {
			if errors.Is(err, ErrDuplicateIdempotencyKey) {
				_ = tx.Rollback(ctx)
				current, getErr := r.GetWithApprovals(ctx, id)
				if getErr != nil {
					return Document{}, getErr
				}
				return current, ErrDuplicateIdempotencyKey
			}
			return Document{}, err
		}
	}

	current, err := scanDocument(tx.QueryRow(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.id = $1 FOR UPDATE OF d`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: lock document: %w", err)
	}

	transition, err := fn(current)
	if err != nil {
		return Document{}, err
	}

	if err := updateDocument(ctx, tx, transition.Next); err != nil {
		return Document{}, err
	}

	if transition.Approval != nil {
		if err := insertApproval(ctx, tx, current.ID, *transition.Approval); err != nil {
			return Document{}, err
		}
	}

	if transition.Topic != "" {
		payload := map[string]any{
			"document_id": current.ID,
			"from":        string(current.Status),
			"to":          string(transition.Next.Status),
			"version":     transition.Next.Version,
			"progress":    transition.Next.Progress,
		}
		if transition.Approval != nil {
			payload["approval_id"] = transition.Approval.ID
			payload["actor_id"] = transition.Approval.ApprovedByID
		}
		if err := outbox.Enqueue(ctx, tx, transition.Topic, payload); err != nil {
			return Document{}, fmt.Errorf("document: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, fmt.Errorf("document: commit tx: %w", err)
	}

	return r.GetWithApprovals(ctx, id)
}

// GetWithApprovals loads one document with its approvals in append (seq) order.
func (r *Repository) GetWithApprovals(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}

	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: get document: %w", err)
	}

	docs := []Document{doc}
	if err := r.attachApprovals(ctx, docs, "ASC"); err != nil {
		return Document{}, err
	}
	return docs[0], nil
}

// ListSubmittedBy returns the vendor's documents, newest first, each with
// approvals newest first.
func (r *Repository) ListSubmittedBy(ctx context.Context, userID string) ([]Document, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Document{}, nil
	}
	return r.list(ctx, `WHERE d.submitted_by_id = $1 ORDER BY d.created_at DESC, d.id`, userID)
}

// ListReviewedBy returns documents the reviewer currently holds or has ever
// acted on, most recently updated first.
func (r *Repository) ListReviewedBy(ctx context.Context, userID string) ([]Document, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Document{}, nil
	}
	return r.list(ctx, `
	WHERE d.reviewed_by_id = $1
	   OR EXISTS (SELECT 1 FROM approvals x WHERE x.document_id = d.id AND x.approved_by_id = $1)
	ORDER BY d.updated_at DESC, d.id`, userID)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+documentFrom+where, args...)
	if err != nil {
		return nil, fmt.Errorf("document: list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("document: scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document: iterate documents: %w", err)
	}

	if err := r.attachApprovals(ctx, docs, "DESC"); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *Repository) attachApprovals(ctx context.Context, docs []Document, order string) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(docs))
	index := make(map[string]int, len(docs))
	for i := range docs {
		docs[i].Approvals = []Approval{}
		ids = append(ids, uuid.MustParse(docs[i].ID))
		index[docs[i].ID] = i
	}

	query := `SELECT ` + approvalColumns + `
	FROM approvals a
	JOIN users u ON u.id = a.approved_by_id
	WHERE a.document_id = ANY($1)
	ORDER BY a.seq ` + order

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("document: list approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return fmt.Errorf("document: scan approval: %w", err)
		}
		if i, ok := index[approval.DocumentID]; ok {
			docs[i].Approvals = append(docs[i].Approvals, approval)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("document: iterate approvals: %w", err)
	}
	return nil
}

func insertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, `INSERT INTO idempotency (key) VALUES ($1)`, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("document: insert idempotency key: %w", err)
	}
	return nil
}

// updateDocument writes the mutable columns. updated_at comes from the
// database clock so it never runs behind an approval written earlier.
func updateDocument(ctx context.Context, tx pgx.Tx, doc Document) error {
	const updateSQL = `
UPDATE documents
SET file_path = $2,
    status = $3::document_status,
    version = $4,
    reviewed_by_id = $5,
    progress = $6,
    updated_at = clock_timestamp()
WHERE id = $1;
`
	tag, err := tx.Exec(ctx, updateSQL, doc.ID, doc.FilePath, string(doc.Status), doc.Version, doc.ReviewedByID, doc.Progress)
	if err != nil {
		return mapWriteError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// insertApproval appends the audit row. created_at defaults to
// clock_timestamp(), so rows written under the document lock are ordered.
func insertApproval(ctx context.Context, tx pgx.Tx, documentID string, a Approval) error {
	const insertSQL = `
INSERT INTO approvals (id, document_id, type, approved_by_id, status, notes, deadline)
VALUES ($1, $2, $3::document_type, $4, $5::document_status, $6, $7);
`
	if _, err := uuid.Parse(a.ApprovedByID); err != nil {
		return fmt.Errorf("%w: reviewer %s", ErrNotFound, a.ApprovedByID)
	}
	_, err := tx.Exec(ctx, insertSQL, a.ID, documentID, string(a.Type), a.ApprovedByID, string(a.Status), a.Notes, a.Deadline)
	if err != nil {
		return mapWriteError("insert approval", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			switch pgErr.ConstraintName {
			case "documents_contract_id_fkey":
				return fmt.Errorf("%w: contract not found", ErrValidation)
			case "documents_submitted_by_id_fkey", "documents_reviewed_by_id_fkey", "approvals_approved_by_id_fkey":
				return fmt.Errorf("%w: user not found", ErrNotFound)
			}
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23514":
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("document: %s: %w", op, err)
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc           Document
		status        string
		docType       string
		submitterName string
		submitterMail string
		submitterRole string
	)
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.FilePath,
		&doc.Version,
		&status,
		&docType,
		&doc.ContractID,
		&doc.ContractNumber,
		&doc.SubmittedByID,
		&submitterName,
		&submitterMail,
		&submitterRole,
		&doc.ReviewedByID,
		&doc.OverallDeadline,
		&doc.Remarks,
		&doc.Progress,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}

	doc.Status = Status(status)
	doc.Type = Type(docType)
	doc.SubmittedBy = &UserRef{ID: doc.SubmittedByID, Name: submitterName, Email: submitterMail, Role: auth.Role(submitterRole)}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

func scanApproval(row pgx.Row) (Approval, error) {
	var (
		a        Approval
		docType  string
		status   string
		name     string
		email    string
		role     string
		deadline time.Time
	)
	err := row.Scan(&a.ID, &a.DocumentID, &docType, &a.ApprovedByID, &name, &email, &role, &status, &a.Notes, &deadline, &a.CreatedAt)
	if err != nil {
		return Approval{}, err
	}
	a.Type = Type(docType)
	a.Status = Status(status)
	a.Deadline = deadline.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.ApprovedBy = &UserRef{ID: a.ApprovedByID, Name: name, Email: email, Role: auth.Role(role)}
	return a, nil
}
