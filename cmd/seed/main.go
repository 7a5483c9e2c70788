package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"docflow/auth"
	"docflow/config"
	"docflow/contract"
	"docflow/db"
	"docflow/document"
	"docflow/logging"
)

const seedPassword = "password123"

type seedUser struct {
	email string
	name  string
	role  auth.Role
}

var users = []seedUser{
	{email: "manager@example.com", name: "John Manager", role: auth.RoleManager},
	{email: "dalkon@example.com", name: "Jane Dalkon", role: auth.RoleDalkon},
	{email: "engineer@example.com", name: "Bob Engineer", role: auth.RoleEngineer},
	{email: "vendor@example.com", name: "Alice Vendor", role: auth.RoleVendor},
}

var contracts = []contract.CreateParams{
	{ContractNumber: "CONTRACT-001", ContractDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	{ContractNumber: "CONTRACT-002", ContractDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := seed(ctx, pool, logger); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}
	logger.Info("seeding completed")
}

func seed(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	authRepo := auth.NewRepository(pool)
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return err
	}

	principals := make(map[auth.Role]auth.Principal, len(users))
	for _, u := range users {
		user, err := authRepo.CreateUser(ctx, auth.CreateUserParams{Email: u.email, Name: u.name, PasswordHash: hash, Role: u.role})
		if errors.Is(err, auth.ErrDuplicateEmail) {
			user, err = authRepo.GetUserByEmail(ctx, u.email)
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.email, err)
		}
		principals[u.role] = user.Principal()
		logger.Info("user ready", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	}

	contractRepo := contract.NewRepository(pool)
	contractSvc := contract.NewService(contractRepo)
	contractIDs := make([]string, 0, len(contracts))
	for _, params := range contracts {
		c, err := contractSvc.Create(ctx, principals[auth.RoleManager], params)
		if errors.Is(err, contract.ErrDuplicateNumber) {
			c, err = findContract(ctx, contractSvc, params.ContractNumber)
		}
		if err != nil {
			return fmt.Errorf("seed contract %s: %w", params.ContractNumber, err)
		}
		contractIDs = append(contractIDs, c.ID)
		logger.Info("contract ready", zap.String("contract_number", c.ContractNumber))
	}

	docs := document.NewService(document.NewRepository(pool), logger).WithContracts(contractSvc)
	vendor := principals[auth.RoleVendor]
	existing, err := docs.History(ctx, vendor)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("documents already seeded", zap.Int("count", len(existing)))
		return nil
	}

	return seedDocuments(ctx, docs, principals, contractIDs)
}

// seedDocuments drives three documents through the engine so every approval
// row is produced by a real transition.
func seedDocuments(ctx context.Context, docs *document.Service, p map[auth.Role]auth.Principal, contractIDs []string) error {
	vendor := p[auth.RoleVendor]
	deadline := func(s string) *time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return &t
	}
	remarks := func(s string) *string { return &s }

	if _, err := docs.Submit(ctx, vendor, document.SubmitParams{
		Name: "Protection Plan v1", FilePath: "/uploads/protection_plan_v1.pdf", Type: document.TypeProtection,
		ContractID: &contractIDs[0], OverallDeadline: deadline("2025-10-15"), Remarks: remarks("Initial submission"),
	}); err != nil {
		return fmt.Errorf("seed protection plan: %w", err)
	}

	blueprint, err := docs.Submit(ctx, vendor, document.SubmitParams{
		Name: "Civil Blueprint v1", FilePath: "/uploads/civil_blueprint_v1.pdf", Type: document.TypeCivil,
		ContractID: &contractIDs[1], OverallDeadline: deadline("2025-10-20"), Remarks: remarks("Awaiting engineering review"),
	})
	if err != nil {
		return fmt.Errorf("seed civil blueprint: %w", err)
	}
	if _, err := docs.Review(ctx, p[auth.RoleDalkon], blueprint.ID, document.ConsultantApprove{}, ""); err != nil {
		return fmt.Errorf("forward civil blueprint: %w", err)
	}

	safety, err := docs.Submit(ctx, vendor, document.SubmitParams{
		Name: "Safety Guidelines", FilePath: "/uploads/safety_guidelines_v1.pdf", Type: document.TypeProtection,
		ContractID: &contractIDs[0], OverallDeadline: deadline("2025-09-30"), Remarks: remarks("Revised and approved"),
	})
	if err != nil {
		return fmt.Errorf("seed safety guidelines: %w", err)
	}
	if err := reviewAll(ctx, docs, safety.ID, []step{
		{p[auth.RoleDalkon], document.ConsultantApprove{}},
		{p[auth.RoleEngineer], document.EngineeringReturn{Notes: "Please verify structural integrity."}},
	}); err != nil {
		return fmt.Errorf("review safety guidelines: %w", err)
	}
	if _, err := docs.Resubmit(ctx, vendor, safety.ID, "/uploads/safety_guidelines_v2.pdf", ""); err != nil {
		return fmt.Errorf("resubmit safety guidelines: %w", err)
	}
	if err := reviewAll(ctx, docs, safety.ID, []step{
		{p[auth.RoleDalkon], document.ConsultantApprove{}},
		{p[auth.RoleEngineer], document.EngineeringApprove{}},
	}); err != nil {
		return fmt.Errorf("approve safety guidelines: %w", err)
	}
	return nil
}

type step struct {
	actor  auth.Principal
	action document.Action
}

func reviewAll(ctx context.Context, docs *document.Service, id string, steps []step) error {
	for _, st := range steps {
		if _, err := docs.Review(ctx, st.actor, id, st.action, ""); err != nil {
			return err
		}
	}
	return nil
}

func findContract(ctx context.Context, svc *contract.Service, number string) (contract.Contract, error) {
	all, err := svc.List(ctx, 100)
	if err != nil {
		return contract.Contract{}, err
	}
	for _, c := range all {
		if c.ContractNumber == number {
			return c, nil
		}
	}
	return contract.Contract{}, contract.ErrNotFound
}
