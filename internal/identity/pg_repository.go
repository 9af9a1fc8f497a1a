package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const userColumns = `user_id, name, email, password_hash, role, status, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM call_center_users WHERE user_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM call_center_users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO call_center_users (name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role, u.Status).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE call_center_users
		SET name = $2, email = $3, role = $4, status = $5, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, u.ID, u.Name, u.Email, u.Role, u.Status).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE call_center_users SET password_hash = $2, updated_at = now() WHERE user_id = $1`,
		id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM call_center_users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, f UserFilter) ([]User, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	arg := 0

	next := func(v any) string {
		arg++
		args = append(args, v)
		return fmt.Sprintf("$%d", arg)
	}

	if f.Role != "" {
		conditions = append(conditions, "role = "+next(f.Role))
	}
	if f.Status != "" {
		conditions = append(conditions, "status = "+next(f.Status))
	}
	if f.Search != "" {
		p := next("%" + f.Search + "%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT count(*) FROM call_center_users WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM call_center_users WHERE ` + where +
		` ORDER BY created_at DESC LIMIT ` + next(f.Limit) + ` OFFSET ` + next(f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
			&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *PgRepository) StampLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE call_center_users SET last_login_at = $2 WHERE user_id = $1`, id, at)
	return err
}

func (r *PgRepository) DashboardStats(ctx context.Context, dayStart, dayEnd time.Time) (*DashboardStats, error) {
	query := `
		SELECT
			(SELECT count(*) FROM call_center_users WHERE role = 'CALL_AGENT' AND status = 'active'),
			(SELECT count(*) FROM call_center_users WHERE role = 'CALL_AGENT' AND status = 'suspended'),
			(SELECT count(*) FROM appointments WHERE start_time >= $1 AND start_time < $2),
			(SELECT count(*) FROM appointments WHERE status = 'cancelled')`

	var st DashboardStats
	err := r.pool.QueryRow(ctx, query, dayStart, dayEnd).Scan(
		&st.ActiveAgents,
		&st.SuspendedAgents,
		&st.AppointmentsToday,
		&st.CancelledAppointments,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &st, nil
}
