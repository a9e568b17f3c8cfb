package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alphadeck/papertrade/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userSelectCols = `id, username, role, coins, password_hash, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Role, &u.Coins, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// Create inserts a new user and returns it with the generated id.
func (s *UserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, role, coins, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userSelectCols,
		u.Username, u.Role, u.Coins, u.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, fmt.Errorf("postgres: create user %q: %w", u.Username, domain.ErrAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("postgres: create user: %w", err)
	}
	return created, nil
}

// GetByID returns a user by primary key.
func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %d: %w", id, err)
	}
	return u, nil
}

// GetByUsername returns a user by unique username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE username = $1`, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %q: %w", username, err)
	}
	return u, nil
}

// List returns users ordered by creation time with pagination.
func (s *UserStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users ORDER BY created_at ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AdjustCoins atomically applies delta to a user's balance. The guard in
// the WHERE clause rejects any update that would take the balance
// negative, so two concurrent debits cannot overspend.
func (s *UserStore) AdjustCoins(ctx context.Context, id int64, delta float64) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET coins = coins + $2
		WHERE id = $1 AND coins + $2 >= 0
		RETURNING `+userSelectCols,
		id, delta,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user does not exist or the balance is short.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return domain.User{}, getErr
			}
			return domain.User{}, fmt.Errorf("postgres: adjust coins for user %d: %w", id, domain.ErrInsufficientFunds)
		}
		return domain.User{}, fmt.Errorf("postgres: adjust coins for user %d: %w", id, err)
	}
	return u, nil
}

// UpdateRole changes a user's role.
func (s *UserStore) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("postgres: update role for user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a user and, via cascade, their trades and transactions.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)
