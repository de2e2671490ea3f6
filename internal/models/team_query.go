package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// TeamQuery holds the optional team filters plus the mandatory page limit.
// A nil field or empty Banks means no filter on that dimension.
// Cursors carry the query, so the password filter is only ever serialized as its SHA-256 digest.
type TeamQuery struct {
	Type             *string  `json:"type,omitempty"`
	Username         *string  `json:"username,omitempty"`
	Password         *string  `json:"-"`
	PasswordDigest   *string  `json:"password_sha256,omitempty" validate:"omitempty,len=64,hexadecimal"`
	QueueName        *string  `json:"queue_name,omitempty"`
	Passed           *bool    `json:"passed,omitempty"`
	MinRequests      *int64   `json:"min_requests,omitempty" validate:"omitempty,gte=0"`
	MaxRequests      *int64   `json:"max_requests,omitempty" validate:"omitempty,gte=0"`
	StudentFirstName *string  `json:"student_first_name,omitempty"`
	StudentLastName  *string  `json:"student_last_name,omitempty"`
	Banks            []string `json:"banks,omitempty" validate:"omitempty,dive,required"`
	Limit            int      `json:"limit" validate:"gte=1"`
}

// PageLimit returns the requested page size.
func (q TeamQuery) PageLimit() int {
	return q.Limit
}

// FiltersStudents reports whether a student name filter is present.
func (q TeamQuery) FiltersStudents() bool {
	return q.StudentFirstName != nil || q.StudentLastName != nil
}

// AggregatesStatistics reports whether a filter needs request totals or the passed flag.
func (q TeamQuery) AggregatesStatistics() bool {
	return q.Passed != nil || q.MinRequests != nil || q.MaxRequests != nil
}

// PasswordSHA256 returns the hex digest the password filter matches against, or nil without one.
func (q TeamQuery) PasswordSHA256() *string {
	if q.Password != nil {
		sum := sha256.Sum256([]byte(*q.Password))
		digest := hex.EncodeToString(sum[:])
		return &digest
	}
	return q.PasswordDigest
}

// Normalized returns a copy with empty collections dropped and the password replaced by its
// digest so equal queries encode equally.
func (q TeamQuery) Normalized() TeamQuery {
	q.PasswordDigest = q.PasswordSHA256()
	q.Password = nil
	if len(q.Banks) == 0 {
		q.Banks = nil
	} else {
		q.Banks = append([]string(nil), q.Banks...)
	}
	return q
}
