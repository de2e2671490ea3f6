package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
)

type fakeCatalogRepo struct {
	banks map[string]models.Bank
}

func (r *fakeCatalogRepo) Upsert(_ context.Context, _ sqlx.ExtContext, banks []models.Bank) error {
	for _, b := range banks {
		r.banks[b.Name] = b
	}
	return nil
}

func (r *fakeCatalogRepo) ListActive(context.Context, sqlx.ExtContext) ([]models.Bank, error) {
	var out []models.Bank
	for _, b := range r.banks {
		if b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeCatalogRepo) SetActive(_ context.Context, _ sqlx.ExtContext, name string, active bool) error {
	b, ok := r.banks[name]
	if !ok {
		return sql.ErrNoRows
	}
	b.Active = active
	r.banks[name] = b
	return nil
}

type fakeTaskRepo struct {
	tasks []models.Task
}

func (r *fakeTaskRepo) Upsert(_ context.Context, _ sqlx.ExtContext, tasks []models.Task) error {
	for i := range tasks {
		tasks[i].ID = "task-" + tasks[i].Name
	}
	r.tasks = append(r.tasks, tasks...)
	return nil
}

func (r *fakeTaskRepo) ListByBank(_ context.Context, _ sqlx.ExtContext, bank string) ([]models.Task, error) {
	var out []models.Task
	for _, t := range r.tasks {
		if t.BankName == bank {
			out = append(out, t)
		}
	}
	return out, nil
}

func newCatalogFixture(t *testing.T) (*CatalogService, *fakeCatalogRepo, *memoryCache, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	runner := database.NewTxRunner(sqlx.NewDb(db, "postgres"), database.TxConfig{})
	banks := &fakeCatalogRepo{banks: make(map[string]models.Bank)}
	cache := newMemoryCache()
	svc := NewCatalogService(banks, &fakeTaskRepo{}, runner, NewPageCache(cache, nil, TeamPageNamespace, time.Minute, nil, true), nil, nil, 2)
	return svc, banks, cache, mock
}

func TestCatalogServiceBanks(t *testing.T) {
	svc, repo, cache, mock := newCatalogFixture(t)
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.UpsertBanks(ctx, []models.Bank{{Name: "bank-a", Active: true}, {Name: "bank-b"}}))
	require.NoError(t, svc.SetBankActive(ctx, "bank-b", true))
	active, err := svc.ListActiveBanks(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.True(t, repo.banks["bank-b"].Active)
	assert.Equal(t, []string{TeamPageNamespace + "*", TeamPageNamespace + "*"}, cache.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogServiceBankErrors(t *testing.T) {
	svc, _, _, mock := newCatalogFixture(t)
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.SetBankActive(ctx, "missing", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = svc.UpsertBanks(ctx, []models.Bank{{Name: "x"}, {Name: "x"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.UpsertBanks(ctx, []models.Bank{{Name: ""}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogServiceTasks(t *testing.T) {
	svc, _, _, mock := newCatalogFixture(t)
	ctx := context.Background()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	stored, err := svc.UpsertTasks(ctx, []models.Task{{BankName: "bank-a", Name: "sum"}, {BankName: "bank-b", Name: "sort"}})
	require.NoError(t, err)
	assert.Equal(t, "task-sum", stored[0].ID)

	tasks, err := svc.ListTasks(ctx, "bank-a")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "sum", tasks[0].Name)

	_, err = svc.UpsertTasks(ctx, []models.Task{{BankName: "bank-a", Name: "dup"}, {BankName: "bank-a", Name: "dup"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}
