package referrals

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_Insert(t *testing.T) {
	repo := NewInMemoryRepository()
	ref := validRequest().toReferral()

	stored, err := repo.Insert(context.Background(), ref)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, "ada@example.com", stored.ReferrerEmail)
	assert.Equal(t, CategoryPartner, stored.Category)
	assert.Empty(t, ref.ID, "input record must not be mutated")

	second, err := repo.Insert(context.Background(), ref)
	require.NoError(t, err)
	assert.NotEqual(t, stored.ID, second.ID)
	assert.Equal(t, 2, repo.Count())
}

func TestInMemoryRepository_CancelledContextStoresNothing(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Insert(ctx, validRequest().toReferral())
	assert.Error(t, err)
	assert.Equal(t, 0, repo.Count())
}

func TestPostgresRepository_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ref := validRequest().toReferral()

	mock.ExpectQuery("INSERT INTO referrals").
		WithArgs(
			"Ada Lovelace", "ada@example.com", nil,
			"Grace Hopper", "grace@example.com", "+14155550123", "https://www.linkedin.com/in/grace",
			CategoryPartner,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("0b0d4f4e-7c55-4a7b-9f0e-3d1f0e6c2a11", createdAt))

	repo := newPostgresRepositoryWithQuerier(mock)
	stored, err := repo.Insert(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "0b0d4f4e-7c55-4a7b-9f0e-3d1f0e6c2a11", stored.ID)
	assert.Equal(t, createdAt, stored.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_InsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO referrals").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	repo := newPostgresRepositoryWithQuerier(mock)
	stored, err := repo.Insert(context.Background(), validRequest().toReferral())
	assert.Nil(t, stored)
	assert.ErrorContains(t, err, "referrals: insert failed")
	require.NoError(t, mock.ExpectationsWereMet())
}
