package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/evaluator"
	"vitalwatch/internal/models"
)

type fakeVitalsRepo struct {
	mu        sync.Mutex
	readings  []*models.Reading
	insertErr error
}

func (f *fakeVitalsRepo) Insert(_ context.Context, reading *models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.readings = append(f.readings, reading)
	return nil
}

func (f *fakeVitalsRepo) QueryByPatient(_ context.Context, _ *models.ReadingQueryRequest) ([]models.Reading, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Reading, 0, len(f.readings))
	for _, r := range f.readings {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeVitalsRepo) GetLatest(_ context.Context, _ string) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		return nil, nil
	}
	out := *f.readings[len(f.readings)-1]
	return &out, nil
}

func newTestVitalsService(repo *fakeVitalsRepo, alertRepo *fakeAlertRepo, notifier *fakeNotifier, tracker *DeviceTracker) *VitalsService {
	patients := &fakePatientRepo{known: map[string]bool{"patient-1": true}}
	ev := evaluator.New(models.DefaultReferenceRanges())
	alerts := NewAlertService(alertRepo, patients, notifier, testMetrics, zap.NewNop())
	return NewVitalsService(repo, patients, ev, alerts, notifier, testMetrics, zap.NewNop(), tracker)
}

func measurement(v float64, unit string) *models.Measurement {
	return &models.Measurement{Value: v, Unit: unit}
}

func TestRecordNormalReadingRaisesNothing(t *testing.T) {
	repo := &fakeVitalsRepo{}
	notifier := &fakeNotifier{}
	svc := newTestVitalsService(repo, newFakeAlertRepo(), notifier, nil)

	reading, err := svc.Record(context.Background(), &models.RecordReadingRequest{
		PatientID: "patient-1",
		HeartRate: measurement(72, "bpm"),
	}, models.Identity{ActorID: "nurse-7"})
	require.NoError(t, err)

	assert.NotEmpty(t, reading.ID)
	assert.Equal(t, models.RecordMethodManual, reading.RecordMethod)
	require.NotNil(t, reading.RecordedBy)
	assert.Equal(t, "nurse-7", *reading.RecordedBy)

	require.Len(t, notifier.readings, 1, "accepted reading fans out")
	assert.Empty(t, notifier.raised, "in-range reading raises no alerts")
}

func TestRecordAbnormalReadingRaisesAlerts(t *testing.T) {
	repo := &fakeVitalsRepo{}
	alertRepo := newFakeAlertRepo()
	notifier := &fakeNotifier{}
	svc := newTestVitalsService(repo, alertRepo, notifier, nil)

	_, err := svc.Record(context.Background(), &models.RecordReadingRequest{
		PatientID:        "patient-1",
		HeartRate:        measurement(130, "bpm"),
		OxygenSaturation: measurement(88, "%"),
	}, models.Identity{ActorID: "nurse-7"})
	require.NoError(t, err)

	require.Len(t, notifier.raised, 2)
	types := map[string]string{}
	for _, a := range notifier.raised {
		types[a.AlertType] = a.Severity
		require.NotNil(t, a.ReadingID, "alert links back to its reading")
	}
	assert.Equal(t, models.SeverityHigh, types[models.AlertHighHeartRate])
	assert.Equal(t, models.SeverityCritical, types[models.AlertLowOxygenSaturation])
}

func TestRecordRejectsImplausibleValues(t *testing.T) {
	svc := newTestVitalsService(&fakeVitalsRepo{}, newFakeAlertRepo(), &fakeNotifier{}, nil)
	actor := models.Identity{ActorID: "nurse-7"}

	cases := []struct {
		name string
		req  *models.RecordReadingRequest
	}{
		{"temperature too low", &models.RecordReadingRequest{
			PatientID: "patient-1", Temperature: measurement(25, "C"),
		}},
		{"heart rate above ceiling", &models.RecordReadingRequest{
			PatientID: "patient-1", HeartRate: measurement(350, "bpm"),
		}},
		{"negative oxygen saturation", &models.RecordReadingRequest{
			PatientID: "patient-1", OxygenSaturation: measurement(-1, "%"),
		}},
		{"systolic above ceiling", &models.RecordReadingRequest{
			PatientID: "patient-1",
			BloodPressure: &models.BloodPressure{
				Systolic: 320, Diastolic: 80, Unit: "mmHg",
			},
		}},
		{"no measurements", &models.RecordReadingRequest{PatientID: "patient-1"}},
		{"missing patient id", &models.RecordReadingRequest{HeartRate: measurement(72, "bpm")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tc.req, actor)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestRecordUnknownPatient(t *testing.T) {
	svc := newTestVitalsService(&fakeVitalsRepo{}, newFakeAlertRepo(), &fakeNotifier{}, nil)

	_, err := svc.Record(context.Background(), &models.RecordReadingRequest{
		PatientID: "patient-9",
		HeartRate: measurement(72, "bpm"),
	}, models.Identity{ActorID: "nurse-7"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRecordSurvivesAlertPersistFailure(t *testing.T) {
	repo := &fakeVitalsRepo{}
	alertRepo := newFakeAlertRepo()
	alertRepo.createErr = assert.AnError
	notifier := &fakeNotifier{}
	svc := newTestVitalsService(repo, alertRepo, notifier, nil)

	reading, err := svc.Record(context.Background(), &models.RecordReadingRequest{
		PatientID: "patient-1",
		HeartRate: measurement(130, "bpm"),
	}, models.Identity{ActorID: "nurse-7"})
	require.NoError(t, err, "reading ingest succeeds even when alerting fails")
	assert.NotEmpty(t, reading.ID)
	assert.Len(t, repo.readings, 1)
}

func TestProcessDeviceMessage(t *testing.T) {
	repo := &fakeVitalsRepo{}
	notifier := &fakeNotifier{}
	tracker := NewDeviceTracker()
	svc := newTestVitalsService(repo, newFakeAlertRepo(), notifier, tracker)

	payload := []byte(`{
		"patient_id": "patient-1",
		"heart_rate": {"value": 72, "unit": "bpm"},
		"temperature": {"value": 36.8, "unit": "C"}
	}`)

	reading, err := svc.ProcessDeviceMessage(context.Background(), "monitor-12", payload)
	require.NoError(t, err)

	assert.Equal(t, models.RecordMethodAutomatic, reading.RecordMethod)
	require.NotNil(t, reading.DeviceID)
	assert.Equal(t, "monitor-12", *reading.DeviceID)
	assert.Len(t, repo.readings, 1)

	tracker.mu.Lock()
	_, tracked := tracker.devices["monitor-12"]
	tracker.mu.Unlock()
	assert.True(t, tracked, "device activity recorded")
}

func TestProcessDeviceMessageMalformed(t *testing.T) {
	svc := newTestVitalsService(&fakeVitalsRepo{}, newFakeAlertRepo(), &fakeNotifier{}, NewDeviceTracker())

	_, err := svc.ProcessDeviceMessage(context.Background(), "monitor-12", []byte("{not json"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestHistoryPagination(t *testing.T) {
	repo := &fakeVitalsRepo{}
	svc := newTestVitalsService(repo, newFakeAlertRepo(), &fakeNotifier{}, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Record(context.Background(), &models.RecordReadingRequest{
			PatientID: "patient-1",
			HeartRate: measurement(72, "bpm"),
		}, models.Identity{ActorID: "nurse-7"})
		require.NoError(t, err)
	}

	resp, err := svc.History(context.Background(), &models.ReadingQueryRequest{PatientID: "patient-1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.Pages)
	assert.Equal(t, 1, resp.Pagination.Page)
}

func TestLatestNoReadings(t *testing.T) {
	svc := newTestVitalsService(&fakeVitalsRepo{}, newFakeAlertRepo(), &fakeNotifier{}, nil)

	_, err := svc.Latest(context.Background(), "patient-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
