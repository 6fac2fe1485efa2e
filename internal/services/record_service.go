package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/storage"
)

// ErrValidation wraps a record validation failure.
var ErrValidation = errors.New("validation failed")

// Publisher emits backup events for changed records.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error
}

// RecordService orchestrates record writes across SQLite and AMQP.
// Writes always land locally first; backup events are best effort.
type RecordService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
}

func NewRecordService(storage *storage.SQLiteRepository, publisher Publisher) *RecordService {
	return &RecordService{
		storage:   storage,
		publisher: publisher,
	}
}

func (s *RecordService) CreateIncome(ctx context.Context, accountID string, in core.Income) (core.Income, error) {
	in.ID = uuid.NewString()
	if err := in.Validate(); err != nil {
		return core.Income{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.CreateIncome(ctx, accountID, in); err != nil {
		return core.Income{}, err
	}
	s.publishSync(ctx, core.CollectionIncomes, in.ID, 1)
	return in, nil
}

func (s *RecordService) UpdateIncome(ctx context.Context, accountID string, in core.Income) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.UpdateIncome(ctx, accountID, in); err != nil {
		return err
	}
	s.publishSync(ctx, core.CollectionIncomes, in.ID, 0)
	return nil
}

func (s *RecordService) DeleteIncome(ctx context.Context, accountID, id string) error {
	if err := s.storage.DeleteIncome(ctx, accountID, id); err != nil {
		return err
	}
	s.publishDelete(ctx, core.CollectionIncomes, id)
	return nil
}

func (s *RecordService) ListIncomes(ctx context.Context, accountID string) ([]core.Income, error) {
	return s.storage.ListIncomes(ctx, accountID)
}

func (s *RecordService) CreatePlannedExpense(ctx context.Context, accountID string, p core.PlannedExpense) (core.PlannedExpense, error) {
	p.ID = uuid.NewString()
	if err := p.Validate(); err != nil {
		return core.PlannedExpense{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.CreatePlannedExpense(ctx, accountID, p); err != nil {
		return core.PlannedExpense{}, err
	}
	s.publishSync(ctx, core.CollectionPlannedExpenses, p.ID, 1)
	return p, nil
}

func (s *RecordService) UpdatePlannedExpense(ctx context.Context, accountID string, p core.PlannedExpense) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.UpdatePlannedExpense(ctx, accountID, p); err != nil {
		return err
	}
	s.publishSync(ctx, core.CollectionPlannedExpenses, p.ID, 0)
	return nil
}

func (s *RecordService) DeletePlannedExpense(ctx context.Context, accountID, id string) error {
	if err := s.storage.DeletePlannedExpense(ctx, accountID, id); err != nil {
		return err
	}
	s.publishDelete(ctx, core.CollectionPlannedExpenses, id)
	return nil
}

func (s *RecordService) ListPlannedExpenses(ctx context.Context, accountID string) ([]core.PlannedExpense, error) {
	return s.storage.ListPlannedExpenses(ctx, accountID)
}

func (s *RecordService) CreateCreditCard(ctx context.Context, accountID string, c core.CreditCardStatement) (core.CreditCardStatement, error) {
	c.ID = uuid.NewString()
	if err := c.Validate(); err != nil {
		return core.CreditCardStatement{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.CreateCreditCard(ctx, accountID, c); err != nil {
		return core.CreditCardStatement{}, err
	}
	s.publishSync(ctx, core.CollectionCreditCards, c.ID, 1)
	return c, nil
}

func (s *RecordService) UpdateCreditCard(ctx context.Context, accountID string, c core.CreditCardStatement) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.UpdateCreditCard(ctx, accountID, c); err != nil {
		return err
	}
	s.publishSync(ctx, core.CollectionCreditCards, c.ID, 0)
	return nil
}

func (s *RecordService) DeleteCreditCard(ctx context.Context, accountID, id string) error {
	if err := s.storage.DeleteCreditCard(ctx, accountID, id); err != nil {
		return err
	}
	s.publishDelete(ctx, core.CollectionCreditCards, id)
	return nil
}

func (s *RecordService) ListCreditCards(ctx context.Context, accountID string, month core.MonthKey) ([]core.CreditCardStatement, error) {
	return s.storage.ListCreditCards(ctx, accountID, month)
}

func (s *RecordService) CreateUtility(ctx context.Context, accountID string, u core.Utility) (core.Utility, error) {
	u.ID = uuid.NewString()
	if err := u.Validate(); err != nil {
		return core.Utility{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.CreateUtility(ctx, accountID, u); err != nil {
		return core.Utility{}, err
	}
	s.publishSync(ctx, core.CollectionUtilities, u.ID, 1)
	return u, nil
}

func (s *RecordService) UpdateUtility(ctx context.Context, accountID string, u core.Utility) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.UpdateUtility(ctx, accountID, u); err != nil {
		return err
	}
	s.publishSync(ctx, core.CollectionUtilities, u.ID, 0)
	return nil
}

func (s *RecordService) DeleteUtility(ctx context.Context, accountID, id string) error {
	if err := s.storage.DeleteUtility(ctx, accountID, id); err != nil {
		return err
	}
	s.publishDelete(ctx, core.CollectionUtilities, id)
	return nil
}

func (s *RecordService) ListUtilities(ctx context.Context, accountID string) ([]core.Utility, error) {
	return s.storage.ListUtilities(ctx, accountID)
}

// SetSalary upserts the account's salary. The salary collection is keyed
// by account, so the backup event carries the account id.
func (s *RecordService) SetSalary(ctx context.Context, accountID string, sal core.Salary) error {
	if err := sal.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.storage.UpsertSalary(ctx, accountID, sal); err != nil {
		return err
	}
	s.publishSync(ctx, core.CollectionSalary, accountID, 0)
	return nil
}

func (s *RecordService) GetSalary(ctx context.Context, accountID string) (core.Salary, error) {
	return s.storage.GetSalary(ctx, accountID)
}

func (s *RecordService) publishSync(ctx context.Context, collection, id string, version int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping backup event",
			"collection", collection, "record_id", id)
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewSyncEvent(collection, id, version)); err != nil {
		// Don't fail the request, the record is saved locally
		slog.ErrorContext(ctx, "Failed to publish backup event",
			"collection", collection, "record_id", id, "error", err)
	}
}

func (s *RecordService) publishDelete(ctx context.Context, collection, id string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping delete event",
			"collection", collection, "record_id", id)
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewDeleteEvent(collection, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete event",
			"collection", collection, "record_id", id, "error", err)
	}
}

// Close closes the underlying storage connection.
func (s *RecordService) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
