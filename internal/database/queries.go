package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultHistoryLimit = 50

func (s *Store) UpsertAccount(ctx context.Context, p UpsertAccountParams) (Account, error) {
	var a Account
	var telegramID sql.NullInt64
	var username, proxy sql.NullString
	err := s.pool.QueryRow(ctx, `
		INSERT INTO farm_accounts (session_name, telegram_id, username, user_agent, proxy)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_name)
		DO UPDATE SET
			telegram_id = COALESCE(EXCLUDED.telegram_id, farm_accounts.telegram_id),
			username = COALESCE(EXCLUDED.username, farm_accounts.username),
			user_agent = EXCLUDED.user_agent,
			proxy = EXCLUDED.proxy,
			updated_at = NOW()
		RETURNING session_name, telegram_id, username, user_agent, proxy, updated_at
	`, p.SessionName, optionalInt64(p.TelegramID), optionalString(p.Username), p.UserAgent, optionalString(p.Proxy)).
		Scan(&a.SessionName, &telegramID, &username, &a.UserAgent, &proxy, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.TelegramID = nullableInt(telegramID)
	a.Username = nullableString(username)
	a.Proxy = nullableString(proxy)
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, sessionName string) (*Account, error) {
	var a Account
	var telegramID sql.NullInt64
	var username, proxy sql.NullString
	err := s.pool.QueryRow(ctx, `SELECT session_name, telegram_id, username, user_agent, proxy, updated_at
		FROM farm_accounts WHERE session_name = $1`, sessionName).
		Scan(&a.SessionName, &telegramID, &username, &a.UserAgent, &proxy, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.TelegramID = nullableInt(telegramID)
	a.Username = nullableString(username)
	a.Proxy = nullableString(proxy)
	return &a, nil
}

// RecordTaskCompletion stores a completed task once per session. It reports
// whether a new row was written.
func (s *Store) RecordTaskCompletion(ctx context.Context, p RecordTaskParams) (bool, error) {
	completedAt := p.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO task_completions (session_name, task_id, task_type, title, reward_points, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_name, task_id) DO NOTHING
	`, p.SessionName, p.TaskID, p.TaskType, p.Title, p.RewardPoints, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListTaskCompletions returns the newest completions for a session first.
func (s *Store) ListTaskCompletions(ctx context.Context, sessionName string, limit int) ([]TaskCompletion, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT id, session_name, task_id, task_type, title, reward_points, completed_at
		FROM task_completions WHERE session_name = $1
		ORDER BY completed_at DESC, id DESC LIMIT $2`, sessionName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]TaskCompletion, 0)
	for rows.Next() {
		var tc TaskCompletion
		if err := rows.Scan(&tc.ID, &tc.SessionName, &tc.TaskID, &tc.TaskType, &tc.Title, &tc.RewardPoints, &tc.CompletedAt); err != nil {
			return nil, err
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}

func (s *Store) RecordBalance(ctx context.Context, sessionName string, totalRewards int64, telegramAge float64) (BalanceSnapshot, error) {
	var b BalanceSnapshot
	err := s.pool.QueryRow(ctx, `
		INSERT INTO balance_snapshots (session_name, total_rewards, telegram_age)
		VALUES ($1,$2,$3)
		RETURNING id, session_name, total_rewards, telegram_age, taken_at
	`, sessionName, totalRewards, telegramAge).
		Scan(&b.ID, &b.SessionName, &b.TotalRewards, &b.TelegramAge, &b.TakenAt)
	return b, err
}

func (s *Store) LatestBalance(ctx context.Context, sessionName string) (*BalanceSnapshot, error) {
	var b BalanceSnapshot
	err := s.pool.QueryRow(ctx, `SELECT id, session_name, total_rewards, telegram_age, taken_at
		FROM balance_snapshots WHERE session_name = $1
		ORDER BY taken_at DESC, id DESC LIMIT 1`, sessionName).
		Scan(&b.ID, &b.SessionName, &b.TotalRewards, &b.TelegramAge, &b.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	str := ns.String
	return &str
}

func nullableInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	val := n.Int64
	return &val
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
