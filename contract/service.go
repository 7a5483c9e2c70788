package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docflow/auth"
)

var (
	// ErrForbidden signals the caller may not manage contracts.
	ErrForbidden = errors.New("contract: only Manager can create contracts")
	// ErrValidation signals missing contract fields.
	ErrValidation = errors.New("contract: validation failed")
)

// Store abstracts repository operations for the service.
type Store interface {
	GetByID(ctx context.Context, id string) (Contract, error)
	List(ctx context.Context, limit int) ([]Contract, error)
	Create(ctx context.Context, params CreateParams) (Contract, error)
}

// Service exposes business-level contract operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new contract on behalf of a Manager.
func (s *Service) Create(ctx context.Context, actor auth.Principal, params CreateParams) (Contract, error) {
	if actor.Role != auth.RoleManager {
		return Contract{}, ErrForbidden
	}
	params.ContractNumber = strings.TrimSpace(params.ContractNumber)
	if params.ContractNumber == "" {
		return Contract{}, fmt.Errorf("%w: contract number required", ErrValidation)
	}
	if params.ContractDate.IsZero() {
		return Contract{}, fmt.Errorf("%w: contract date required", ErrValidation)
	}
	return s.repo.Create(ctx, params)
}

// GetByID returns the contract for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Contract, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit contracts.
func (s *Service) List(ctx context.Context, limit int) ([]Contract, error) {
	return s.repo.List(ctx, limit)
}

// Exists reports whether a contract with the given id is on record.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
