package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
)

var bankUpsert = database.UpsertSpec{
	Table:              "banks",
	ConflictColumns:    []string{"name"},
	ExcludedFromUpdate: []string{"created_at"},
}

// BankRepository manages task banks.
type BankRepository struct {
	db *sqlx.DB
}

// NewBankRepository constructs the repository.
func NewBankRepository(db *sqlx.DB) *BankRepository {
	return &BankRepository{db: db}
}

func (r *BankRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert creates or updates banks by name.
func (r *BankRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, banks []models.Bank) error {
	now := time.Now().UTC()
	records := make([]*database.Record, 0, len(banks))
	for i := range banks {
		bank := &banks[i]
		if bank.CreatedAt.IsZero() {
			bank.CreatedAt = now
		}
		bank.UpdatedAt = now
		records = append(records, database.NewRecord().
			Set("name", bank.Name).
			Set("active", bank.Active).
			Set("created_at", bank.CreatedAt).
			Set("updated_at", bank.UpdatedAt))
	}
	_, err := database.Upsert(ctx, r.exec(exec), bankUpsert, records)
	return err
}

// ListActive returns the banks that count toward passing.
func (r *BankRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Bank, error) {
	const query = `SELECT name, active, created_at, updated_at FROM banks WHERE active = TRUE ORDER BY name ASC`
	var banks []models.Bank
	if err := sqlx.SelectContext(ctx, r.exec(exec), &banks, query); err != nil {
		return nil, fmt.Errorf("list active banks: %w", err)
	}
	return banks, nil
}

// SetActive toggles a bank. It returns sql.ErrNoRows for unknown banks.
func (r *BankRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, name string, active bool) error {
	const query = `UPDATE banks SET active = $1, updated_at = $2 WHERE name = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, active, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("set bank active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set bank active rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
