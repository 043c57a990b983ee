package models

import "time"

// User represents a Telegram user of the study service. Demo users are
// reset to a pristine state by the nightly maintenance job.
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	IsAdmin    bool      `json:"is_admin" db:"is_admin"`
	IsDemo     bool      `json:"is_demo" db:"is_demo"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
