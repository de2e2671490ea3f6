package dto

import "time"

// TeamPageResponse is one page of teams plus opaque navigation tokens.
// Prev and Next are omitted when there is nothing in that direction.
type TeamPageResponse struct {
	First string         `json:"first"`
	Prev  string         `json:"prev,omitempty"`
	Next  string         `json:"next,omitempty"`
	Last  string         `json:"last"`
	Query TeamQueryEcho  `json:"query"`
	Items []TeamResponse `json:"items"`
}

// TeamQueryEcho repeats the active filters without the password filter.
type TeamQueryEcho struct {
	Type             *string  `json:"type,omitempty"`
	Username         *string  `json:"username,omitempty"`
	QueueName        *string  `json:"queueName,omitempty"`
	Passed           *bool    `json:"passed,omitempty"`
	MinRequests      *int64   `json:"minRequests,omitempty"`
	MaxRequests      *int64   `json:"maxRequests,omitempty"`
	StudentFirstName *string  `json:"studentFirstName,omitempty"`
	StudentLastName  *string  `json:"studentLastName,omitempty"`
	Banks            []string `json:"banks,omitempty"`
	Limit            int      `json:"limit"`
}

// TeamResponse is the public view of a team.
type TeamResponse struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Username   string              `json:"username"`
	QueueName  string              `json:"queueName"`
	HasPassed  bool                `json:"hasPassed"`
	Students   []StudentResponse   `json:"students"`
	Statistics []StatisticResponse `json:"statistics"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// StudentResponse is a team member.
type StudentResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// StatisticResponse is a per-bank request counter.
type StatisticResponse struct {
	BankName     string `json:"bankName"`
	RequestCount int64  `json:"requestCount"`
}
