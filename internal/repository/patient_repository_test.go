package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPatientRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("patient-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err = repo.Exists(context.Background(), "patient-9")
	require.NoError(t, err)
	assert.False(t, exists)
}
