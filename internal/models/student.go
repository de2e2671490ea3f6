package models

import "time"

// Student is a member of a team.
type Student struct {
	ID        string    `db:"id" json:"id"`
	TeamID    string    `db:"team_id" json:"team_id"`
	FirstName string    `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName  string    `db:"last_name" json:"last_name" validate:"required,max=100"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
