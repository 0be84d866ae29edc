package database

import "time"

type Account struct {
	SessionName string    `json:"session_name"`
	TelegramID  *int64    `json:"telegram_id,omitempty"`
	Username    *string   `json:"username,omitempty"`
	UserAgent   string    `json:"user_agent"`
	Proxy       *string   `json:"proxy,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskCompletion struct {
	ID           int64     `json:"id"`
	SessionName  string    `json:"session_name"`
	TaskID       int64     `json:"task_id"`
	TaskType     string    `json:"task_type"`
	Title        string    `json:"title"`
	RewardPoints int64     `json:"reward_points"`
	CompletedAt  time.Time `json:"completed_at"`
}

type BalanceSnapshot struct {
	ID           int64     `json:"id"`
	SessionName  string    `json:"session_name"`
	TotalRewards int64     `json:"total_rewards"`
	TelegramAge  float64   `json:"telegram_age"`
	TakenAt      time.Time `json:"taken_at"`
}

// UpsertAccountParams identifies a farm account and how it connects.
type UpsertAccountParams struct {
	SessionName string
	TelegramID  *int64
	Username    *string
	UserAgent   string
	Proxy       *string
}

// RecordTaskParams describes a completed task.
type RecordTaskParams struct {
	SessionName  string
	TaskID       int64
	TaskType     string
	Title        string
	RewardPoints int64
	CompletedAt  time.Time
}
