// internal/service/vitals_service.go

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/evaluator"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
	"vitalwatch/internal/repository"
)

// Physiological plausibility bounds for ingest validation. Readings outside
// these are rejected as sensor garbage rather than alerted on.
const (
	minTemperature = 30.0
	maxTemperature = 45.0
	maxHeartRate   = 300.0
	maxRespRate    = 100.0
	maxSystolic    = 300.0
	maxDiastolic   = 200.0
	maxSpO2        = 100.0
	maxGlucose     = 1000.0
)

// IVitalsService ingests readings, evaluates them against reference ranges,
// and raises any resulting alerts.
type IVitalsService interface {
	Record(ctx context.Context, req *models.RecordReadingRequest, actor models.Identity) (*models.Reading, error)
	ProcessDeviceMessage(ctx context.Context, deviceID string, payload []byte) (*models.Reading, error)
	History(ctx context.Context, q *models.ReadingQueryRequest) (*models.ReadingListResponse, error)
	Latest(ctx context.Context, patientID string) (*models.Reading, error)
}

type VitalsService struct {
	repo      repository.IVitalsRepository
	patients  repository.IPatientRepository
	evaluator *evaluator.Evaluator
	alerts    IAlertService
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *zap.Logger
	lastSeen  *DeviceTracker
}

func NewVitalsService(
	repo repository.IVitalsRepository,
	patients repository.IPatientRepository,
	ev *evaluator.Evaluator,
	alerts IAlertService,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
	tracker *DeviceTracker,
) *VitalsService {
	return &VitalsService{
		repo:      repo,
		patients:  patients,
		evaluator: ev,
		alerts:    alerts,
		notifier:  notifier,
		metrics:   m,
		log:       log,
		lastSeen:  tracker,
	}
}

// Record ingests a staff-entered reading. The reading is persisted before
// evaluation: a valid reading is never lost because alerting failed.
func (s *VitalsService) Record(ctx context.Context, req *models.RecordReadingRequest, actor models.Identity) (*models.Reading, error) {
	reading := &models.Reading{
		ID:               uuid.NewString(),
		PatientID:        req.PatientID,
		Timestamp:        time.Now(),
		Temperature:      req.Temperature,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		BloodPressure:    req.BloodPressure,
		OxygenSaturation: req.OxygenSaturation,
		GlucoseLevel:     req.GlucoseLevel,
		DeviceID:         req.DeviceID,
		RecordMethod:     req.RecordMethod,
		Notes:            req.Notes,
		ReceivedAt:       time.Now(),
	}
	if reading.RecordMethod == "" {
		reading.RecordMethod = models.RecordMethodManual
	}
	if actor.ActorID != "" {
		recordedBy := actor.ActorID
		reading.RecordedBy = &recordedBy
	}

	return s.ingest(ctx, reading)
}

// devicePayload is the JSON shape published by bedside devices.
type devicePayload struct {
	PatientID        string                `json:"patient_id"`
	Timestamp        *time.Time            `json:"timestamp"`
	Temperature      *models.Measurement   `json:"temperature"`
	HeartRate        *models.Measurement   `json:"heart_rate"`
	RespiratoryRate  *models.Measurement   `json:"respiratory_rate"`
	BloodPressure    *models.BloodPressure `json:"blood_pressure"`
	OxygenSaturation *models.Measurement   `json:"oxygen_saturation"`
	GlucoseLevel     *models.Measurement   `json:"glucose_level"`
}

// ProcessDeviceMessage ingests one telemetry message from a device topic.
func (s *VitalsService) ProcessDeviceMessage(ctx context.Context, deviceID string, payload []byte) (*models.Reading, error) {
	var p devicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.metrics.ReadingsRejected.Inc()
		return nil, apperrors.Validation("malformed device payload: %v", err)
	}

	if s.lastSeen != nil {
		s.lastSeen.Touch(deviceID, p.PatientID)
	}

	timestamp := time.Now()
	if p.Timestamp != nil {
		timestamp = *p.Timestamp
	}

	reading := &models.Reading{
		ID:               uuid.NewString(),
		PatientID:        p.PatientID,
		Timestamp:        timestamp,
		Temperature:      p.Temperature,
		HeartRate:        p.HeartRate,
		RespiratoryRate:  p.RespiratoryRate,
		BloodPressure:    p.BloodPressure,
		OxygenSaturation: p.OxygenSaturation,
		GlucoseLevel:     p.GlucoseLevel,
		DeviceID:         &deviceID,
		RecordMethod:     models.RecordMethodAutomatic,
		ReceivedAt:       time.Now(),
	}

	return s.ingest(ctx, reading)
}

func (s *VitalsService) ingest(ctx context.Context, reading *models.Reading) (*models.Reading, error) {
	if err := validateReading(reading); err != nil {
		s.metrics.ReadingsRejected.Inc()
		return nil, err
	}

	exists, err := s.patients.Exists(ctx, reading.PatientID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to verify patient %s", reading.PatientID)
	}
	if !exists {
		return nil, apperrors.NotFound("patient %s not found", reading.PatientID)
	}

	if err := s.repo.Insert(ctx, reading); err != nil {
		return nil, apperrors.Persistence(err, "failed to persist reading")
	}

	s.metrics.ReadingsProcessed.Inc()
	s.notifier.ReadingAccepted(reading)

	for _, candidate := range s.evaluator.Evaluate(reading) {
		c := candidate
		if _, err := s.alerts.Raise(ctx, &c); err != nil {
			// The reading is already durable; a failed alert must not fail
			// the ingest or stop the remaining candidates.
			s.log.Error("failed to raise alert from reading",
				zap.String("reading_id", reading.ID),
				zap.String("patient_id", reading.PatientID),
				zap.String("alert_type", c.AlertType),
				zap.Error(err),
			)
		}
	}

	return reading, nil
}

func (s *VitalsService) History(ctx context.Context, q *models.ReadingQueryRequest) (*models.ReadingListResponse, error) {
	readings, total, err := s.repo.QueryByPatient(ctx, q)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to query readings")
	}

	limit := q.Limit
	if limit < 1 {
		limit = 20
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	pages := (total + limit - 1) / limit

	return &models.ReadingListResponse{
		Data: readings,
		Pagination: models.Pagination{
			Total: total,
			Page:  page,
			Pages: pages,
			Limit: limit,
		},
	}, nil
}

func (s *VitalsService) Latest(ctx context.Context, patientID string) (*models.Reading, error) {
	reading, err := s.repo.GetLatest(ctx, patientID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to load latest reading for %s", patientID)
	}
	if reading == nil {
		return nil, apperrors.NotFound("no readings for patient %s", patientID)
	}
	return reading, nil
}

func validateReading(r *models.Reading) error {
	if r.PatientID == "" {
		return apperrors.Validation("patient_id is required")
	}
	if r.Temperature == nil && r.HeartRate == nil && r.RespiratoryRate == nil &&
		r.BloodPressure == nil && r.OxygenSaturation == nil && r.GlucoseLevel == nil {
		return apperrors.Validation("reading carries no measurements")
	}
	if t := r.Temperature; t != nil && (t.Value < minTemperature || t.Value > maxTemperature) {
		return apperrors.Validation("temperature %.1f outside plausible range [%v, %v]", t.Value, minTemperature, maxTemperature)
	}
	if hr := r.HeartRate; hr != nil && (hr.Value < 0 || hr.Value > maxHeartRate) {
		return apperrors.Validation("heart rate %.0f outside plausible range [0, %v]", hr.Value, maxHeartRate)
	}
	if rr := r.RespiratoryRate; rr != nil && (rr.Value < 0 || rr.Value > maxRespRate) {
		return apperrors.Validation("respiratory rate %.0f outside plausible range [0, %v]", rr.Value, maxRespRate)
	}
	if bp := r.BloodPressure; bp != nil {
		if bp.Systolic < 0 || bp.Systolic > maxSystolic {
			return apperrors.Validation("systolic %.0f outside plausible range [0, %v]", bp.Systolic, maxSystolic)
		}
		if bp.Diastolic < 0 || bp.Diastolic > maxDiastolic {
			return apperrors.Validation("diastolic %.0f outside plausible range [0, %v]", bp.Diastolic, maxDiastolic)
		}
	}
	if o := r.OxygenSaturation; o != nil && (o.Value < 0 || o.Value > maxSpO2) {
		return apperrors.Validation("oxygen saturation %.0f outside plausible range [0, %v]", o.Value, maxSpO2)
	}
	if g := r.GlucoseLevel; g != nil && (g.Value < 0 || g.Value > maxGlucose) {
		return apperrors.Validation("glucose %.0f outside plausible range [0, %v]", g.Value, maxGlucose)
	}
	return nil
}
