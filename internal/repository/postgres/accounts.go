package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/repository"
)

const accountsTable = "account.accounts"

var accountColumns = []string{
	"id",
	"email",
	"username",
	"password_hash",
	"role",
	"status",
	"two_fa_code_hash",
	"two_fa_expires_at",
	"trusted_devices",
	"last_verified_at",
	"refresh_token_hash",
	"token_generation",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db      pgDB
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(db pgDB) *AccountRepository {
	return &AccountRepository{
		db:      db,
		exec:    db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		db:      r.db,
		exec:    tx,
		builder: r.builder,
	}
}

// WithinTx implements port.AccountTransactor.
func (r *AccountRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, accounts port.AccountRepository) error) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	devices := account.TrustedDevices
	if devices == nil {
		devices = []string{}
	}

	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.Username,
			account.PasswordHash,
			string(account.Role),
			string(account.Status),
			nullableString(account.TwoFactorCodeHash),
			nullableTime(account.TwoFactorExpiresAt),
			devices,
			nullableTime(account.LastVerifiedAt),
			nullableString(account.RefreshTokenHash),
			account.TokenGeneration,
			account.CreatedAt.UTC(),
			account.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// FindActiveByCodeHash retrieves the ACTIVE account holding an unexpired matching code.
func (r *AccountRepository) FindActiveByCodeHash(ctx context.Context, codeHash string, now time.Time) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.And{
		squirrel.Eq{"two_fa_code_hash": codeHash},
		squirrel.Eq{"status": string(domain.AccountStatusActive)},
		squirrel.Gt{"two_fa_expires_at": now.UTC()},
	})
}

func (r *AccountRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}

	return account, nil
}

// ExistsByEmail reports whether an account uses email.
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM account.accounts WHERE email = $1)", email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return exists, nil
}

// List returns every account ordered by creation time.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Update persists the mutable fields of account.
func (r *AccountRepository) Update(ctx context.Context, account domain.Account) error {
	devices := account.TrustedDevices
	if devices == nil {
		devices = []string{}
	}

	stmt, args, err := r.builder.Update(accountsTable).
		Set("username", account.Username).
		Set("password_hash", account.PasswordHash).
		Set("role", string(account.Role)).
		Set("status", string(account.Status)).
		Set("two_fa_code_hash", nullableString(account.TwoFactorCodeHash)).
		Set("two_fa_expires_at", nullableTime(account.TwoFactorExpiresAt)).
		Set("trusted_devices", devices).
		Set("last_verified_at", nullableTime(account.LastVerifiedAt)).
		Set("updated_at", account.UpdatedAt.UTC()).
		Where(squirrel.Eq{"id": account.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RotateRefreshToken advances the token generation when it still equals fromGeneration.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id string, fromGeneration int64, tokenHash *string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("token_generation", squirrel.Expr("token_generation + 1")).
		Set("refresh_token_hash", nullableString(tokenHash)).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id, "token_generation": fromGeneration}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotate refresh token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

// Delete removes the account row.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.exec.Exec(ctx, "DELETE FROM account.accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account          domain.Account
		role             string
		status           string
		codeHash         sql.NullString
		codeExpiresAt    sql.NullTime
		trustedDevices   []string
		lastVerifiedAt   sql.NullTime
		refreshTokenHash sql.NullString
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&role,
		&status,
		&codeHash,
		&codeExpiresAt,
		&trustedDevices,
		&lastVerifiedAt,
		&refreshTokenHash,
		&account.TokenGeneration,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	account.Role = domain.Role(role)
	account.Status = domain.AccountStatus(status)
	account.TwoFactorCodeHash = stringPtr(codeHash)
	account.TwoFactorExpiresAt = timePtr(codeExpiresAt)
	account.TrustedDevices = trustedDevices
	account.LastVerifiedAt = timePtr(lastVerifiedAt)
	account.RefreshTokenHash = stringPtr(refreshTokenHash)

	return &account, nil
}

var (
	_ port.AccountRepository = (*AccountRepository)(nil)
	_ port.AccountTransactor = (*AccountRepository)(nil)
)
