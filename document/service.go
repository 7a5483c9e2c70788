package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docflow/auth"
)

// Transition is the result of applying a vendor or reviewer action to a locked
// document. Next carries the mutable columns to persist; Approval, when set,
// is appended to the audit trail in the same transaction.
type Transition struct {
	Next     Document
	Approval *Approval
	Topic    string
}

// Mutation computes a Transition from the locked current document. Returning
// an error aborts the write.
type Mutation func(current Document) (Transition, error)

// Store is the persistence contract of the engine. Mutate must serialise
// concurrent calls for the same document id.
type Store interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Mutate(ctx context.Context, id, idempotencyKey string, fn Mutation) (Document, error)
	GetWithApprovals(ctx context.Context, id string) (Document, error)
	ListSubmittedBy(ctx context.Context, userID string) ([]Document, error)
	ListReviewedBy(ctx context.Context, userID string) ([]Document, error)
}

// ContractChecker reports whether a contract exists.
type ContractChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// DefaultDeadlineDays is the approval window written on each review.
const DefaultDeadlineDays = 7

// DeadlineAfter returns a deadline policy adding days to the action time.
func DeadlineAfter(days int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return t.AddDate(0, 0, days)
	}
}

type Service struct {
	store     Store
	contracts ContractChecker
	logger    *zap.Logger
	now       func() time.Time
	deadline  func(time.Time) time.Time
	newID     func() string
	strict    bool
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		logger:   logger,
		now:      time.Now,
		deadline: DeadlineAfter(DefaultDeadlineDays),
		newID:    func() string { return uuid.NewString() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithDeadline replaces the approval deadline policy.
func (s *Service) WithDeadline(policy func(time.Time) time.Time) *Service {
	if policy != nil {
		s.deadline = policy
	}
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.newID = gen
	return s
}

// WithContracts enables contract existence checks on submission.
func (s *Service) WithContracts(c ContractChecker) *Service {
	s.contracts = c
	return s
}

// WithStrictTransitions makes stage actions also require the document to sit
// at that stage. Without it only the actor's role is checked.
func (s *Service) WithStrictTransitions(strict bool) *Service {
	s.strict = strict
	return s
}

// Submit creates a new document owned by the calling vendor.
func (s *Service) Submit(ctx context.Context, actor auth.Principal, params SubmitParams) (Document, error) {
	if actor.Role != auth.RoleVendor {
		return Document{}, fmt.Errorf("%w: only vendors can submit documents", ErrForbidden)
	}

	name := strings.TrimSpace(params.Name)
	filePath := strings.TrimSpace(params.FilePath)
	switch {
	case name == "":
		return Document{}, fmt.Errorf("%w: name is required", ErrValidation)
	case filePath == "":
		return Document{}, fmt.Errorf("%w: filePath is required", ErrValidation)
	case !params.Type.Valid():
		return Document{}, fmt.Errorf("%w: type must be %q or %q", ErrValidation, TypeCivil, TypeProtection)
	}

	contractID := params.ContractID
	if contractID != nil && strings.TrimSpace(*contractID) == "" {
		contractID = nil
	}
	if contractID != nil && s.contracts != nil {
		ok, err := s.contracts.Exists(ctx, *contractID)
		if err != nil {
			return Document{}, err
		}
		if !ok {
			return Document{}, fmt.Errorf("%w: contract %s not found", ErrValidation, *contractID)
		}
	}

	now := s.now().UTC()
	doc := Document{
		ID:              s.newID(),
		Name:            name,
		FilePath:        filePath,
		Version:         1,
		Status:          StatusSubmitted,
		Type:            params.Type,
		ContractID:      contractID,
		SubmittedByID:   actor.ID,
		OverallDeadline: params.OverallDeadline,
		Remarks:         params.Remarks,
		Progress:        NarrativeSubmitted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.store.Create(ctx, doc)
	if err != nil {
		return Document{}, err
	}

	s.logger.Info("document submitted",
		zap.String("document_id", created.ID),
		zap.String("actor_id", actor.ID),
		zap.String("type", string(created.Type)),
	)
	return created, nil
}

// Review applies a typed stage action. See ReviewByName for the order of
// checks.
func (s *Service) Review(ctx context.Context, actor auth.Principal, documentID string, action Action, idempotencyKey string) (Document, error) {
	if action == nil {
		return Document{}, fmt.Errorf("%w: missing action", ErrInvalidAction)
	}
	return s.review(ctx, actor, documentID, action.Stage(), action.Name(), func() (Action, error) {
		return action, nil
	}, idempotencyKey)
}

// ReviewByName resolves a raw action name at the given stage and applies it.
// Order of checks: the document must exist, then the actor must hold the
// stage role, then the action must be valid for the stage, then in strict
// mode the document must sit at the stage. Any failure aborts the write.
func (s *Service) ReviewByName(ctx context.Context, actor auth.Principal, documentID string, stage Stage, name, notes, idempotencyKey string) (Document, error) {
	if stage.RequiredRole() == "" {
		return Document{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidAction, stage)
	}
	name = strings.TrimSpace(name)
	return s.review(ctx, actor, documentID, stage, name, func() (Action, error) {
		return ParseAction(stage, name, notes)
	}, idempotencyKey)
}

func (s *Service) review(ctx context.Context, actor auth.Principal, documentID string, stage Stage, name string, resolve func() (Action, error), idempotencyKey string) (Document, error) {
	var (
		from, to Status
		applied  Action
	)
	key := scopeKey(actor, documentID, "review:"+string(stage)+":"+name, idempotencyKey)
	doc, err := s.store.Mutate(ctx, documentID, key, func(current Document) (Transition, error) {
		if actor.Role != stage.RequiredRole() {
			return Transition{}, fmt.Errorf("%w: only %s can act at the %s stage", ErrForbidden, stage.RequiredRole(), stage)
		}
		action, err := resolve()
		if err != nil {
			return Transition{}, err
		}
		if s.strict {
			if err := checkStage(stage, current.Status); err != nil {
				return Transition{}, err
			}
		}

		status, narrative := action.outcome()
		now := s.now().UTC()
		reviewer := actor.ID
		notes := narrative

		next := current
		next.Status = status
		next.ReviewedByID = &reviewer
		next.Progress = narrative
		next.UpdatedAt = now

		from, to, applied = current.Status, status, action
		return Transition{
			Next: next,
			Approval: &Approval{
				ID:           s.newID(),
				DocumentID:   current.ID,
				Type:         current.Type,
				ApprovedByID: actor.ID,
				Status:       status,
				Notes:        &notes,
				Deadline:     s.deadline(now),
				CreatedAt:    now,
			},
			Topic: TopicStatusChanged,
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			s.logger.Info("document review replayed",
				zap.String("document_id", documentID),
				zap.String("actor_id", actor.ID),
				zap.String("idempotency_key", idempotencyKey),
			)
			return doc, nil
		}
		return Document{}, err
	}

	s.logger.Info("document reviewed",
		zap.String("document_id", doc.ID),
		zap.String("actor_id", actor.ID),
		zap.String("stage", string(stage)),
		zap.String("action", applied.Name()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return doc, nil
}

// Resubmit replaces the file of the vendor's own document and restarts the
// review cycle at submitted with the next version.
func (s *Service) Resubmit(ctx context.Context, actor auth.Principal, documentID, filePath, idempotencyKey string) (Document, error) {
	if actor.Role != auth.RoleVendor {
		return Document{}, fmt.Errorf("%w: only vendors can resubmit documents", ErrForbidden)
	}
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return Document{}, fmt.Errorf("%w: filePath is required", ErrValidation)
	}

	var version int
	doc, err := s.store.Mutate(ctx, documentID, scopeKey(actor, documentID, "resubmit", idempotencyKey), func(current Document) (Transition, error) {
		if current.SubmittedByID != actor.ID {
			return Transition{}, fmt.Errorf("%w: document belongs to another vendor", ErrForbidden)
		}
		if s.strict && current.Status == StatusApproved {
			return Transition{}, fmt.Errorf("%w: approved documents cannot be resubmitted", ErrInvalidTransition)
		}

		next := current
		next.FilePath = filePath
		next.Status = StatusSubmitted
		next.ReviewedByID = nil
		next.Version = current.Version + 1
		next.Progress = NarrativeResubmitted
		next.UpdatedAt = s.now().UTC()

		version = next.Version
		return Transition{Next: next, Topic: TopicResubmitted}, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			s.logger.Info("document resubmit replayed",
				zap.String("document_id", documentID),
				zap.String("idempotency_key", idempotencyKey),
			)
			return doc, nil
		}
		return Document{}, err
	}

	s.logger.Info("document resubmitted",
		zap.String("document_id", doc.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("version", version),
	)
	return doc, nil
}

// UpdateFile swaps the stored file path without touching the review state.
func (s *Service) UpdateFile(ctx context.Context, actor auth.Principal, documentID, filePath string) (Document, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return Document{}, fmt.Errorf("%w: filePath is required", ErrValidation)
	}

	doc, err := s.store.Mutate(ctx, documentID, "", func(current Document) (Transition, error) {
		if current.SubmittedByID != actor.ID {
			return Transition{}, fmt.Errorf("%w: only the submitting vendor can update the file", ErrForbidden)
		}

		next := current
		next.FilePath = filePath
		next.Progress = NarrativeFileUpdated
		next.UpdatedAt = s.now().UTC()
		return Transition{Next: next, Topic: TopicFileUpdated}, nil
	})
	if err != nil {
		return Document{}, err
	}

	s.logger.Info("document file updated", zap.String("document_id", doc.ID), zap.String("actor_id", actor.ID))
	return doc, nil
}

// History lists the caller's documents: vendors see what they submitted,
// reviewers see what they hold or have acted on. Approvals are newest first.
func (s *Service) History(ctx context.Context, actor auth.Principal) ([]Document, error) {
	switch {
	case actor.Role == auth.RoleVendor:
		return s.store.ListSubmittedBy(ctx, actor.ID)
	case actor.Role.IsReviewer():
		return s.store.ListReviewedBy(ctx, actor.ID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
}

// Progress returns the document's approval timeline to Dalkon or Manager.
func (s *Service) Progress(ctx context.Context, actor auth.Principal, documentID string) (ProgressView, error) {
	if actor.Role != auth.RoleDalkon && actor.Role != auth.RoleManager {
		return ProgressView{}, fmt.Errorf("%w: only Dalkon or Manager can view progress", ErrForbidden)
	}

	doc, err := s.store.GetWithApprovals(ctx, documentID)
	if err != nil {
		return ProgressView{}, err
	}

	return ProgressView{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     doc.Status,
		Progress:   doc.Progress,
		Approvals:  doc.Approvals,
	}, nil
}

// Get returns a single document with approvals in append order.
func (s *Service) Get(ctx context.Context, actor auth.Principal, documentID string) (Document, error) {
	doc, err := s.store.GetWithApprovals(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if actor.Role == auth.RoleVendor && doc.SubmittedByID != actor.ID {
		return Document{}, fmt.Errorf("%w: document belongs to another vendor", ErrForbidden)
	}
	return doc, nil
}

// scopeKey binds a client idempotency key to the actor, document and
// operation. A key reused for a different operation is a new request.
func scopeKey(actor auth.Principal, documentID, operation, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return actor.ID + ":" + documentID + ":" + operation + ":" + key
}
