// internal/repository/alert_repository.go

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"vitalwatch/internal/models"
)

// IAlertRepository is the persistence contract for alerts. GetByID returns
// (nil, nil) when no alert matches; callers decide how to surface that.
type IAlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Query(ctx context.Context, q *models.AlertQuery) ([]models.Alert, int, error)
	Statistics(ctx context.Context, start, end *time.Time) (*models.AlertStats, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, patient_id, timestamp, alert_type, severity, message,
	reading_id, device_id, threshold_value, actual_value,
	resolved, resolution_timestamp, resolved_by, resolution_notes,
	notified_users, escalated, escalation_level, escalation_time
`

// Create inserts a new alert record.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	notified, err := marshalNotifiedUsers(alert.NotifiedUsers)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.PatientID,
		alert.Timestamp,
		alert.AlertType,
		alert.Severity,
		alert.Message,
		alert.ReadingID,
		alert.DeviceID,
		alert.ThresholdValue,
		alert.ActualValue,
		alert.Resolved,
		alert.ResolutionTimestamp,
		alert.ResolvedBy,
		alert.ResolutionNotes,
		notified,
		alert.Escalated,
		alert.EscalationLevel,
		alert.EscalationTime,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetByID retrieves a single alert by its identity.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}

	return alert, nil
}

// Update writes back the full lifecycle state of an alert.
func (r *AlertRepository) Update(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts SET
			resolved = $2,
			resolution_timestamp = $3,
			resolved_by = $4,
			resolution_notes = $5,
			notified_users = $6,
			escalated = $7,
			escalation_level = $8,
			escalation_time = $9
		WHERE id = $1
	`

	notified, err := marshalNotifiedUsers(alert.NotifiedUsers)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.Resolved,
		alert.ResolutionTimestamp,
		alert.ResolvedBy,
		alert.ResolutionNotes,
		notified,
		alert.Escalated,
		alert.EscalationLevel,
		alert.EscalationTime,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Query returns a page of alerts matching the filter, newest first, and the
// total match count.
func (r *AlertRepository) Query(ctx context.Context, q *models.AlertQuery) ([]models.Alert, int, error) {
	where, args := buildAlertFilter(q)

	countQuery := `SELECT COUNT(*) FROM alerts` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	limit := q.Limit
	if limit < 1 {
		limit = 20
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT %s FROM alerts%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		alertColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, *alert)
	}

	return alerts, total, rows.Err()
}

// Statistics aggregates alerts inside the optional [start,end] window.
func (r *AlertRepository) Statistics(ctx context.Context, start, end *time.Time) (*models.AlertStats, error) {
	where, args := buildTimeFilter(start, end)

	stats := &models.AlertStats{
		SeverityCounts: make(map[string]int),
		TypeCounts:     make(map[string]int),
		ResolvedCounts: map[string]int{"resolved": 0, "unresolved": 0},
	}

	if err := r.groupCount(ctx, `SELECT severity, COUNT(*) FROM alerts`+where+` GROUP BY severity`, args, stats.SeverityCounts); err != nil {
		return nil, err
	}

	if err := r.groupCount(ctx, `SELECT alert_type, COUNT(*) FROM alerts`+where+` GROUP BY alert_type`, args, stats.TypeCounts); err != nil {
		return nil, err
	}

	resolvedQuery := `SELECT resolved, COUNT(*) FROM alerts` + where + ` GROUP BY resolved`
	rows, err := r.db.QueryContext(ctx, resolvedQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count resolved alerts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var resolved bool
		var count int
		if err := rows.Scan(&resolved, &count); err != nil {
			return nil, err
		}
		if resolved {
			stats.ResolvedCounts["resolved"] = count
		} else {
			stats.ResolvedCounts["unresolved"] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	avgQuery := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolution_timestamp - timestamp)) / 60), 0)
		FROM alerts` + andWhere(where) + `resolved = TRUE AND resolution_timestamp IS NOT NULL`
	var avgMinutes float64
	if err := r.db.QueryRowContext(ctx, avgQuery, args...).Scan(&avgMinutes); err != nil {
		return nil, fmt.Errorf("failed to compute average resolution time: %w", err)
	}
	stats.AverageResolutionMinutes = int(math.Round(avgMinutes))

	return stats, nil
}

func (r *AlertRepository) groupCount(ctx context.Context, query string, args []interface{}, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to aggregate alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

func buildAlertFilter(q *models.AlertQuery) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.PatientID != "" {
		add("patient_id = $%d", q.PatientID)
	}
	if q.Resolved != nil {
		add("resolved = $%d", *q.Resolved)
	}
	if q.Severity != "" {
		add("severity = $%d", q.Severity)
	}
	if q.AlertType != "" {
		add("alert_type = $%d", q.AlertType)
	}
	if q.StartTime != nil {
		add("timestamp >= $%d", *q.StartTime)
	}
	if q.EndTime != nil {
		add("timestamp <= $%d", *q.EndTime)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildTimeFilter(start, end *time.Time) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if start != nil {
		args = append(args, *start)
		clauses = append(clauses, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		clauses = append(clauses, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// andWhere extends an existing WHERE clause, or starts one.
func andWhere(where string) string {
	if where == "" {
		return " WHERE "
	}
	return where + " AND "
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var notified []byte

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.Timestamp,
		&a.AlertType,
		&a.Severity,
		&a.Message,
		&a.ReadingID,
		&a.DeviceID,
		&a.ThresholdValue,
		&a.ActualValue,
		&a.Resolved,
		&a.ResolutionTimestamp,
		&a.ResolvedBy,
		&a.ResolutionNotes,
		&notified,
		&a.Escalated,
		&a.EscalationLevel,
		&a.EscalationTime,
	)
	if err != nil {
		return nil, err
	}

	if len(notified) > 0 {
		if err := json.Unmarshal(notified, &a.NotifiedUsers); err != nil {
			return nil, fmt.Errorf("failed to decode notified_users: %w", err)
		}
	}

	return &a, nil
}

func marshalNotifiedUsers(records []models.NotificationRecord) ([]byte, error) {
	if records == nil {
		records = []models.NotificationRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notified_users: %w", err)
	}
	return data, nil
}
