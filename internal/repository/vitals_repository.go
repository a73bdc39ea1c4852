// internal/repository/vitals_repository.go

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"vitalwatch/internal/models"
)

// IVitalsRepository stores accepted readings and serves the history queries
// the dashboards use.
type IVitalsRepository interface {
	Insert(ctx context.Context, reading *models.Reading) error
	QueryByPatient(ctx context.Context, q *models.ReadingQueryRequest) ([]models.Reading, int, error)
	GetLatest(ctx context.Context, patientID string) (*models.Reading, error)
}

type VitalsRepository struct {
	db *sql.DB
}

func NewVitalsRepository(db *sql.DB) *VitalsRepository {
	return &VitalsRepository{db: db}
}

const readingColumns = `
	id, patient_id, timestamp,
	temperature, temperature_unit,
	heart_rate, heart_rate_unit,
	respiratory_rate, respiratory_rate_unit,
	bp_systolic, bp_diastolic, bp_unit,
	oxygen_saturation, oxygen_saturation_unit,
	glucose_level, glucose_level_unit,
	device_id, recorded_by, record_method, notes, received_at
`

func (r *VitalsRepository) Insert(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	tempVal, tempUnit := splitMeasurement(reading.Temperature)
	hrVal, hrUnit := splitMeasurement(reading.HeartRate)
	rrVal, rrUnit := splitMeasurement(reading.RespiratoryRate)
	spo2Val, spo2Unit := splitMeasurement(reading.OxygenSaturation)
	glucoseVal, glucoseUnit := splitMeasurement(reading.GlucoseLevel)

	var sysVal, diaVal *float64
	var bpUnit *string
	if reading.BloodPressure != nil {
		sysVal = &reading.BloodPressure.Systolic
		diaVal = &reading.BloodPressure.Diastolic
		bpUnit = &reading.BloodPressure.Unit
	}

	_, err := r.db.ExecContext(
		ctx, query,
		reading.ID,
		reading.PatientID,
		reading.Timestamp,
		tempVal, tempUnit,
		hrVal, hrUnit,
		rrVal, rrUnit,
		sysVal, diaVal, bpUnit,
		spo2Val, spo2Unit,
		glucoseVal, glucoseUnit,
		reading.DeviceID,
		reading.RecordedBy,
		reading.RecordMethod,
		reading.Notes,
		reading.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

func (r *VitalsRepository) QueryByPatient(ctx context.Context, q *models.ReadingQueryRequest) ([]models.Reading, int, error) {
	clauses := []string{"patient_id = $1"}
	args := []interface{}{q.PatientID}

	if q.StartTime != nil {
		args = append(args, *q.StartTime)
		clauses = append(clauses, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if q.EndTime != nil {
		args = append(args, *q.EndTime)
		clauses = append(clauses, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count readings: %w", err)
	}

	limit := q.Limit
	if limit < 1 {
		limit = 50
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT %s FROM readings%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		readingColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, 0, err
		}
		readings = append(readings, *reading)
	}

	return readings, total, rows.Err()
}

func (r *VitalsRepository) GetLatest(ctx context.Context, patientID string) (*models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE patient_id = $1 ORDER BY timestamp DESC LIMIT 1`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, patientID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var reading models.Reading
	var tempVal, hrVal, rrVal, sysVal, diaVal, spo2Val, glucoseVal *float64
	var tempUnit, hrUnit, rrUnit, bpUnit, spo2Unit, glucoseUnit *string

	err := row.Scan(
		&reading.ID,
		&reading.PatientID,
		&reading.Timestamp,
		&tempVal, &tempUnit,
		&hrVal, &hrUnit,
		&rrVal, &rrUnit,
		&sysVal, &diaVal, &bpUnit,
		&spo2Val, &spo2Unit,
		&glucoseVal, &glucoseUnit,
		&reading.DeviceID,
		&reading.RecordedBy,
		&reading.RecordMethod,
		&reading.Notes,
		&reading.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	reading.Temperature = joinMeasurement(tempVal, tempUnit)
	reading.HeartRate = joinMeasurement(hrVal, hrUnit)
	reading.RespiratoryRate = joinMeasurement(rrVal, rrUnit)
	reading.OxygenSaturation = joinMeasurement(spo2Val, spo2Unit)
	reading.GlucoseLevel = joinMeasurement(glucoseVal, glucoseUnit)

	if sysVal != nil && diaVal != nil {
		bp := &models.BloodPressure{Systolic: *sysVal, Diastolic: *diaVal}
		if bpUnit != nil {
			bp.Unit = *bpUnit
		}
		reading.BloodPressure = bp
	}

	return &reading, nil
}

func splitMeasurement(m *models.Measurement) (*float64, *string) {
	if m == nil {
		return nil, nil
	}
	return &m.Value, &m.Unit
}

func joinMeasurement(value *float64, unit *string) *models.Measurement {
	if value == nil {
		return nil
	}
	m := &models.Measurement{Value: *value}
	if unit != nil {
		m.Unit = *unit
	}
	return m
}
