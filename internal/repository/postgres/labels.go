package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/repository"
)

const labelsTable = "account.labels"

var labelColumns = []string{"id", "name", "status", "created_by", "created_at", "updated_at"}

// LabelRepository implements port.LabelRepository using PostgreSQL.
type LabelRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLabelRepository constructs a label repository.
func NewLabelRepository(exec pgExecutor) *LabelRepository {
	return &LabelRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LabelRepository) Create(ctx context.Context, label domain.Label) error {
	stmt, args, err := r.builder.Insert(labelsTable).
		Columns(labelColumns...).
		Values(
			label.ID,
			label.Name,
			string(label.Status),
			label.CreatedBy,
			label.CreatedAt.UTC(),
			label.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert label sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// GetByID returns the label only while it is ACTIVE.
func (r *LabelRepository) GetByID(ctx context.Context, id string) (*domain.Label, error) {
	stmt, args, err := r.builder.
		Select(labelColumns...).
		From(labelsTable).
		Where(squirrel.Eq{"id": id, "status": string(domain.LabelStatusActive)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select label sql: %w", err)
	}

	label, err := scanLabel(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select label: %w", err)
	}
	return label, nil
}

func (r *LabelRepository) ListActive(ctx context.Context) ([]domain.Label, error) {
	stmt, args, err := r.builder.
		Select(labelColumns...).
		From(labelsTable).
		Where(squirrel.Eq{"status": string(domain.LabelStatusActive)}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list labels sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	labels := make([]domain.Label, 0)
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, *label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

// Rename updates the name of an ACTIVE label and returns the stored row.
func (r *LabelRepository) Rename(ctx context.Context, id, name string, at time.Time) (*domain.Label, error) {
	stmt, args, err := r.builder.Update(labelsTable).
		Set("name", name).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "status": string(domain.LabelStatusActive)}).
		Suffix("RETURNING id, name, status, created_by, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rename label sql: %w", err)
	}

	label, err := scanLabel(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("rename label: %w", err)
	}
	return label, nil
}

// SoftDelete marks an ACTIVE label INACTIVE.
func (r *LabelRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(labelsTable).
		Set("status", string(domain.LabelStatusInactive)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "status": string(domain.LabelStatusActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete label sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanLabel(row pgx.Row) (*domain.Label, error) {
	var (
		label  domain.Label
		status string
	)
	if err := row.Scan(&label.ID, &label.Name, &status, &label.CreatedBy, &label.CreatedAt, &label.UpdatedAt); err != nil {
		return nil, err
	}
	label.Status = domain.LabelStatus(status)
	return &label, nil
}

var _ port.LabelRepository = (*LabelRepository)(nil)
