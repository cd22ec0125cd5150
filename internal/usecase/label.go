package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/repository"
)

const maxLabelNameLength = 50

// LabelService manages back-office labels. Every operation re-reads the caller
// and refuses INACTIVE accounts.
type LabelService struct {
	labels   port.LabelRepository
	accounts port.AccountRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewLabelService(labels port.LabelRepository, accounts port.AccountRepository, logger *zap.Logger) *LabelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelService{labels: labels, accounts: accounts, logger: logger, now: time.Now}
}

// WithClock allows tests to override the clock used by the service.
func (s *LabelService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *LabelService) Create(ctx context.Context, callerID, name string) (domain.Label, error) {
	if err := s.requireActiveCaller(ctx, callerID); err != nil {
		return domain.Label{}, err
	}

	name, err := normalizeLabelName(name)
	if err != nil {
		return domain.Label{}, err
	}

	now := s.now().UTC()
	label := domain.Label{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    domain.LabelStatusActive,
		CreatedBy: callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.labels.Create(ctx, label); err != nil {
		return domain.Label{}, fmt.Errorf("create label: %w", err)
	}

	s.logger.Info("label created", zap.String("label_id", label.ID), zap.String("created_by", callerID))
	return label, nil
}

func (s *LabelService) Get(ctx context.Context, callerID, id string) (domain.Label, error) {
	if err := s.requireActiveCaller(ctx, callerID); err != nil {
		return domain.Label{}, err
	}

	label, err := s.labels.GetByID(ctx, id)
	if err != nil {
		return domain.Label{}, mapLabelError(err, "get label")
	}
	return *label, nil
}

// List returns ACTIVE labels only.
func (s *LabelService) List(ctx context.Context, callerID string) ([]domain.Label, error) {
	if err := s.requireActiveCaller(ctx, callerID); err != nil {
		return nil, err
	}

	labels, err := s.labels.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

func (s *LabelService) Rename(ctx context.Context, callerID, id, name string) (domain.Label, error) {
	if err := s.requireActiveCaller(ctx, callerID); err != nil {
		return domain.Label{}, err
	}

	name, err := normalizeLabelName(name)
	if err != nil {
		return domain.Label{}, err
	}

	label, err := s.labels.Rename(ctx, id, name, s.now().UTC())
	if err != nil {
		return domain.Label{}, mapLabelError(err, "rename label")
	}
	return *label, nil
}

// Delete flips the label to INACTIVE. Deleting twice reports ErrLabelNotFound.
func (s *LabelService) Delete(ctx context.Context, callerID, id string) error {
	if err := s.requireActiveCaller(ctx, callerID); err != nil {
		return err
	}

	if err := s.labels.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return mapLabelError(err, "delete label")
	}

	s.logger.Info("label deleted", zap.String("label_id", id), zap.String("deleted_by", callerID))
	return nil
}

func (s *LabelService) requireActiveCaller(ctx context.Context, callerID string) error {
	account, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup caller: %w", err)
	}
	if !account.IsActive() {
		return ErrAccountDisabled
	}
	return nil
}

func normalizeLabelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxLabelNameLength {
		return "", ErrInvalidLabelName
	}
	return name, nil
}

func mapLabelError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLabelNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
