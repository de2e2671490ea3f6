package models

import "time"

// Team is a registered participant owning a work queue.
type Team struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"type" json:"type" validate:"required,max=50"`
	Username  string    `db:"username" json:"username" validate:"required,max=100"`
	Password  string    `db:"password" json:"-" validate:"required"`
	QueueName string    `db:"queue_name" json:"queue_name" validate:"required,max=200"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Students   []Student   `db:"-" json:"students" validate:"dive"`
	Statistics []Statistic `db:"-" json:"statistics" validate:"dive"`
	HasPassed  bool        `db:"-" json:"has_passed"`
}

// SortKey is the keyset pagination key of a team.
func (t Team) SortKey() string {
	return t.Username
}

// DeriveHasPassed reports whether stats show at least one request for every active bank.
// Banks without a statistic count as zero requests. Without active banks nothing is passed.
func DeriveHasPassed(stats []Statistic, banks []Bank) bool {
	counts := make(map[string]int64, len(stats))
	for _, s := range stats {
		counts[s.BankName] += s.RequestCount
	}
	active := 0
	for _, b := range banks {
		if !b.Active {
			continue
		}
		active++
		if counts[b.Name] <= 0 {
			return false
		}
	}
	return active > 0
}
