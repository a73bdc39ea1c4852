// internal/repository/patient_repository.go

package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// IPatientRepository is the slice of the patient record store this core
// needs: an existence check before raising alerts or accepting readings.
// Patient CRUD itself lives outside this service.
type IPatientRepository interface {
	Exists(ctx context.Context, patientID string) (bool, error)
}

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Exists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`

	if err := r.db.QueryRowContext(ctx, query, patientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check patient existence: %w", err)
	}

	return exists, nil
}
