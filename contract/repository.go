package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested contract does not exist.
	ErrNotFound = errors.New("contract: not found")
	// ErrDuplicateNumber signals the contract number is already registered.
	ErrDuplicateNumber = errors.New("contract: contract number already exists")
)

// Repository provides access to contract rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a contract by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Contract, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Contract{}, ErrNotFound
	}

	const query = `
		SELECT id::text, contract_number, contract_date, created_at
		FROM contracts
		WHERE id = $1
	`

	var c Contract
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.ContractNumber, &c.ContractDate, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: query by id: %w", err)
	}

	return c, nil
}

// List fetches up to limit contracts ordered by contract number.
func (r *Repository) List(ctx context.Context, limit int) ([]Contract, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id::text, contract_number, contract_date, created_at
		FROM contracts
		ORDER BY contract_number ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("contract: list: %w", err)
	}
	defer rows.Close()

	contracts := make([]Contract, 0, limit)
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.ContractNumber, &c.ContractDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("contract: scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: iterate contracts: %w", err)
	}

	return contracts, nil
}

// Create inserts a new contract. Contract numbers are unique.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Contract, error) {
	const query = `
		INSERT INTO contracts (contract_number, contract_date)
		VALUES ($1, $2)
		RETURNING id::text, contract_number, contract_date, created_at
	`

	var c Contract
	err := r.pool.QueryRow(ctx, query, params.ContractNumber, params.ContractDate).
		Scan(&c.ID, &c.ContractNumber, &c.ContractDate, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Contract{}, ErrDuplicateNumber
		}
		return Contract{}, fmt.Errorf("contract: create: %w", err)
	}

	return c, nil
}
