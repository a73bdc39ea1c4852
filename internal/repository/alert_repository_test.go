package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/models"
)

var alertColumnList = []string{
	"id", "patient_id", "timestamp", "alert_type", "severity", "message",
	"reading_id", "device_id", "threshold_value", "actual_value",
	"resolved", "resolution_timestamp", "resolved_by", "resolution_notes",
	"notified_users", "escalated", "escalation_level", "escalation_time",
}

func newAlertRepo(t *testing.T) (*AlertRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAlertRepository(db), mock
}

func alertRows(alerts ...*models.Alert) *sqlmock.Rows {
	rows := sqlmock.NewRows(alertColumnList)
	for _, alert := range alerts {
		notified, _ := json.Marshal(alert.NotifiedUsers)
		rows.AddRow(
			alert.ID, alert.PatientID, alert.Timestamp, alert.AlertType,
			alert.Severity, alert.Message,
			strOrNil(alert.ReadingID), strOrNil(alert.DeviceID),
			floatOrNil(alert.ThresholdValue), floatOrNil(alert.ActualValue),
			alert.Resolved,
			timeOrNil(alert.ResolutionTimestamp),
			strOrNil(alert.ResolvedBy), strOrNil(alert.ResolutionNotes),
			notified, alert.Escalated, alert.EscalationLevel,
			timeOrNil(alert.EscalationTime),
		)
	}
	return rows
}

func strOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func storedAlert() *models.Alert {
	return &models.Alert{
		ID:        "alert-1",
		PatientID: "patient-1",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		AlertType: models.AlertHighHeartRate,
		Severity:  models.SeverityHigh,
		Message:   "Abnormal heart rate detected: 130 bpm",
		NotifiedUsers: []models.NotificationRecord{{
			UserID:     "nurse-7",
			NotifiedAt: time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
			Method:     models.NotifyInApp,
		}},
	}
}

func TestAlertCreate(t *testing.T) {
	repo, mock := newAlertRepo(t)
	alert := storedAlert()

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(
			alert.ID, alert.PatientID, alert.Timestamp, alert.AlertType,
			alert.Severity, alert.Message, nil, nil, nil, nil,
			false, nil, nil, nil, sqlmock.AnyArg(), false, 0, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), alert))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertCreateEncodesNotifiedUsers(t *testing.T) {
	repo, mock := newAlertRepo(t)
	alert := storedAlert()
	alert.NotifiedUsers = nil

	var captured []byte
	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(
			alert.ID, alert.PatientID, alert.Timestamp, alert.AlertType,
			alert.Severity, alert.Message, nil, nil, nil, nil,
			false, nil, nil, nil, capture(&captured), false, 0, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), alert))
	assert.JSONEq(t, "[]", string(captured), "nil recipients stored as empty array, not null")
}

func TestAlertGetByID(t *testing.T) {
	repo, mock := newAlertRepo(t)
	alert := storedAlert()

	mock.ExpectQuery("SELECT (.+) FROM alerts WHERE id").
		WithArgs("alert-1").
		WillReturnRows(alertRows(alert))

	got, err := repo.GetByID(context.Background(), "alert-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alert.ID, got.ID)
	require.Len(t, got.NotifiedUsers, 1)
	assert.Equal(t, "nurse-7", got.NotifiedUsers[0].UserID)
}

func TestAlertGetByIDMissing(t *testing.T) {
	repo, mock := newAlertRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM alerts WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(alertColumnList))

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAlertUpdateMissing(t *testing.T) {
	repo, mock := newAlertRepo(t)
	alert := storedAlert()

	mock.ExpectExec("UPDATE alerts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), alert)
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestAlertQueryFiltersAndPaginates(t *testing.T) {
	repo, mock := newAlertRepo(t)
	alert := storedAlert()
	resolved := false

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM alerts WHERE patient_id = \\$1 AND resolved = \\$2").
		WithArgs("patient-1", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	mock.ExpectQuery("SELECT (.+) FROM alerts WHERE patient_id = \\$1 AND resolved = \\$2 ORDER BY timestamp DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("patient-1", false, 5, 5).
		WillReturnRows(alertRows(alert))

	alerts, total, err := repo.Query(context.Background(), &models.AlertQuery{
		PatientID: "patient-1",
		Resolved:  &resolved,
		Page:      2,
		Limit:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert-1", alerts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStatistics(t *testing.T) {
	repo, mock := newAlertRepo(t)

	mock.ExpectQuery("SELECT severity, COUNT\\(\\*\\) FROM alerts GROUP BY severity").
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).
			AddRow(models.SeverityHigh, 3).
			AddRow(models.SeverityCritical, 1))

	mock.ExpectQuery("SELECT alert_type, COUNT\\(\\*\\) FROM alerts GROUP BY alert_type").
		WillReturnRows(sqlmock.NewRows([]string{"alert_type", "count"}).
			AddRow(models.AlertHighHeartRate, 4))

	mock.ExpectQuery("SELECT resolved, COUNT\\(\\*\\) FROM alerts GROUP BY resolved").
		WillReturnRows(sqlmock.NewRows([]string{"resolved", "count"}).
			AddRow(true, 3))

	mock.ExpectQuery("SELECT COALESCE\\(AVG").
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(12.6))

	stats, err := repo.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		models.SeverityHigh:     3,
		models.SeverityCritical: 1,
	}, stats.SeverityCounts)
	assert.Equal(t, map[string]int{models.AlertHighHeartRate: 4}, stats.TypeCounts)
	assert.Equal(t, 3, stats.ResolvedCounts["resolved"])
	assert.Equal(t, 0, stats.ResolvedCounts["unresolved"], "absent group defaults to zero")
	assert.Equal(t, 13, stats.AverageResolutionMinutes, "rounded to nearest minute")
}

func TestAlertStatisticsWindowed(t *testing.T) {
	repo, mock := newAlertRepo(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT severity, COUNT\\(\\*\\) FROM alerts WHERE timestamp >= \\$1 AND timestamp <= \\$2 GROUP BY severity").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}))

	mock.ExpectQuery("SELECT alert_type, COUNT").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"alert_type", "count"}))

	mock.ExpectQuery("SELECT resolved, COUNT").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"resolved", "count"}))

	mock.ExpectQuery("SELECT COALESCE\\(AVG").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(0.0))

	stats, err := repo.Statistics(context.Background(), &start, &end)
	require.NoError(t, err)
	assert.Empty(t, stats.SeverityCounts)
	assert.Equal(t, 0, stats.AverageResolutionMinutes)
}

// capture matches any argument and stores its byte value for inspection.
type captureMatcher struct {
	dst *[]byte
}

func capture(dst *[]byte) sqlmock.Argument {
	return captureMatcher{dst: dst}
}

func (m captureMatcher) Match(v driver.Value) bool {
	switch value := v.(type) {
	case []byte:
		*m.dst = value
		return true
	case string:
		*m.dst = []byte(value)
		return true
	}
	return false
}
