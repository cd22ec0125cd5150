package port

import (
	"context"
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// LabelRepository exposes persistence behavior for labels.
type LabelRepository interface {
	Create(ctx context.Context, label domain.Label) error
	GetByID(ctx context.Context, id string) (*domain.Label, error)
	ListActive(ctx context.Context) ([]domain.Label, error)
	Rename(ctx context.Context, id, name string, at time.Time) (*domain.Label, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
