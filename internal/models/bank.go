package models

import "time"

// Bank is a named pool of tasks. Only active banks count toward passing.
type Bank struct {
	Name      string    `db:"name" json:"name" validate:"required,max=100"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Task belongs to a bank.
type Task struct {
	ID          string    `db:"id" json:"id"`
	BankName    string    `db:"bank_name" json:"bank_name" validate:"required"`
	Name        string    `db:"name" json:"name" validate:"required,max=200"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Statistic counts the requests a team issued against a bank.
type Statistic struct {
	TeamID       string    `db:"team_id" json:"team_id"`
	BankName     string    `db:"bank_name" json:"bank_name" validate:"required"`
	RequestCount int64     `db:"request_count" json:"request_count" validate:"gte=0"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
