package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const columns = `id, telegram_id, username, full_name, role, status, created_at, updated_at`

func scan(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FullName, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetByTelegramID(ctx context.Context, tgID int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE telegram_id = $1`, tgID)
	u, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id)
	u, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// UpsertFromTelegram регистрирует пользователя по Telegram-профилю.
// Уже одобренный пользователь не понижается ни в роли, ни в статусе.
func (r *Repo) UpsertFromTelegram(ctx context.Context, tg Telegram, role Role) (*User, error) {
	fullName := strings.TrimSpace(tg.FirstName + " " + tg.LastName)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, full_name, role, status)
		VALUES ($1,$2,$3,$4,'pending')
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username   = EXCLUDED.username,
			full_name  = CASE WHEN users.full_name = '' THEN EXCLUDED.full_name ELSE users.full_name END,
			role       = CASE WHEN users.status = 'approved' THEN users.role ELSE EXCLUDED.role END,
			updated_at = now()
		RETURNING `+columns+`
	`, tg.ID, tg.Username, fullName, string(role))
	return scan(row)
}

// Approve подтверждает пользователя в заданной роли.
func (r *Repo) Approve(ctx context.Context, telegramID int64, role Role) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET role = $2, status = 'approved', updated_at = now()
		WHERE telegram_id = $1
		RETURNING `+columns+`
	`, telegramID, string(role))
	return scan(row)
}

func (r *Repo) Reject(ctx context.Context, telegramID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET status = 'rejected', updated_at = now() WHERE telegram_id = $1
	`, telegramID)
	return err
}

func (r *Repo) SetFullName(ctx context.Context, telegramID int64, fullName string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET full_name = $2, updated_at = now() WHERE telegram_id = $1
	`, telegramID, fullName)
	return err
}

// ListApprovedByRole — подтверждённые пользователи роли, для клавиатур выбора
// исполнителя и для рассылки напоминаний.
func (r *Repo) ListApprovedByRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM users
		WHERE role = $1 AND status = 'approved'
		ORDER BY full_name
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// TelegramIDsByUserIDs возвращает chat id получателей по внутренним id,
// только для подтверждённых пользователей.
func (r *Repo) TelegramIDsByUserIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT telegram_id FROM users WHERE id = ANY($1) AND status = 'approved'
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
