// internal/service/alert_service.go

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
	"vitalwatch/internal/repository"
)

// Notifier is the live fan-out contract the websocket router satisfies.
// Calls are fire-and-forget from the service's perspective.
type Notifier interface {
	AlertRaised(alert *models.Alert)
	AlertResolved(alertID, patientID string)
	ReadingAccepted(reading *models.Reading)
}

// IAlertService owns the alert lifecycle: raising, acknowledgement,
// resolution, escalation, queries, and summaries.
type IAlertService interface {
	Raise(ctx context.Context, candidate *models.AlertCandidate) (*models.Alert, error)
	CreateManual(ctx context.Context, req *models.CreateAlertRequest, actor models.Identity) (*models.Alert, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	Resolve(ctx context.Context, id string, actor models.Identity, notes string) (*models.Alert, error)
	Acknowledge(ctx context.Context, id string, actor models.Identity) (*models.Alert, error)
	Escalate(ctx context.Context, id string, level int) (*models.Alert, error)
	Query(ctx context.Context, q *models.AlertQuery) (*models.AlertListResponse, error)
	Summarize(ctx context.Context, start, end *time.Time) (*models.AlertStats, error)
}

type AlertService struct {
	repo     repository.IAlertRepository
	patients repository.IPatientRepository
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	// Mutations of the same alert are serialized; different alerts
	// proceed concurrently.
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

func NewAlertService(
	repo repository.IAlertRepository,
	patients repository.IPatientRepository,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
) *AlertService {
	return &AlertService{
		repo:     repo,
		patients: patients,
		notifier: notifier,
		metrics:  m,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *AlertService) lockAlert(id string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Raise persists a candidate as a new open alert and fans it out. A
// persistence failure prevents fan-out entirely: no notification is sent for
// an alert that was not durably recorded.
func (s *AlertService) Raise(ctx context.Context, candidate *models.AlertCandidate) (*models.Alert, error) {
	exists, err := s.patients.Exists(ctx, candidate.PatientID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to verify patient %s", candidate.PatientID)
	}
	if !exists {
		return nil, apperrors.Persistence(nil, "patient %s does not exist", candidate.PatientID)
	}

	alert := &models.Alert{
		ID:             uuid.NewString(),
		PatientID:      candidate.PatientID,
		Timestamp:      time.Now(),
		AlertType:      candidate.AlertType,
		Severity:       candidate.Severity,
		Message:        candidate.Message,
		ReadingID:      candidate.ReadingID,
		DeviceID:       candidate.DeviceID,
		ThresholdValue: candidate.ThresholdValue,
		ActualValue:    candidate.ActualValue,
		NotifiedUsers:  []models.NotificationRecord{},
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, apperrors.Persistence(err, "failed to persist alert")
	}

	s.metrics.AlertsRaised.WithLabelValues(alert.Severity).Inc()
	s.log.Info("alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("patient_id", alert.PatientID),
		zap.String("alert_type", alert.AlertType),
		zap.String("severity", alert.Severity),
	)

	s.notifier.AlertRaised(alert)

	return alert, nil
}

// CreateManual raises a staff-initiated alert. The creator is recorded as an
// already-acknowledged recipient.
func (s *AlertService) CreateManual(ctx context.Context, req *models.CreateAlertRequest, actor models.Identity) (*models.Alert, error) {
	if req.PatientID == "" {
		return nil, apperrors.Validation("patient_id is required")
	}
	if req.Message == "" {
		return nil, apperrors.Validation("message is required")
	}

	alertType := req.AlertType
	if alertType == "" {
		alertType = models.AlertCustom
	}
	severity := req.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	if models.SeverityRank(severity) == 0 {
		return nil, apperrors.Validation("unknown severity %q", severity)
	}

	exists, err := s.patients.Exists(ctx, req.PatientID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to verify patient %s", req.PatientID)
	}
	if !exists {
		return nil, apperrors.NotFound("patient %s not found", req.PatientID)
	}

	now := time.Now()
	alert := &models.Alert{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		Timestamp: now,
		AlertType: alertType,
		Severity:  severity,
		Message:   req.Message,
		ReadingID: req.ReadingID,
		NotifiedUsers: []models.NotificationRecord{{
			UserID:         actor.ActorID,
			NotifiedAt:     now,
			Method:         models.NotifyInApp,
			Acknowledged:   true,
			AcknowledgedAt: &now,
		}},
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, apperrors.Persistence(err, "failed to persist alert")
	}

	s.metrics.AlertsRaised.WithLabelValues(alert.Severity).Inc()
	s.notifier.AlertRaised(alert)

	return alert, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.fetch(ctx, id)
}

// Resolve transitions an alert to its terminal state. Resolving an already
// resolved alert is a no-op returning the stored alert unchanged: the first
// resolver wins and keeps the resolution fields.
func (s *AlertService) Resolve(ctx context.Context, id string, actor models.Identity, notes string) (*models.Alert, error) {
	unlock := s.lockAlert(id)
	defer unlock()

	alert, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Resolved {
		return alert, nil
	}

	now := time.Now()
	alert.Resolved = true
	alert.ResolutionTimestamp = &now
	resolver := actor.ActorID
	alert.ResolvedBy = &resolver
	if notes != "" {
		alert.ResolutionNotes = &notes
	}

	if err := s.repo.Update(ctx, alert); err != nil {
		return nil, apperrors.Persistence(err, "failed to resolve alert %s", id)
	}

	s.metrics.AlertsResolved.Inc()
	s.log.Info("alert resolved",
		zap.String("alert_id", alert.ID),
		zap.String("resolved_by", resolver),
	)

	s.notifier.AlertResolved(alert.ID, alert.PatientID)

	return alert, nil
}

// Acknowledge records that the actor has seen the alert. The recipient set
// stays unique: repeated acknowledgement updates the existing entry in
// place. Acknowledgement is still allowed after resolution, for the audit
// trail, and never un-resolves the alert.
func (s *AlertService) Acknowledge(ctx context.Context, id string, actor models.Identity) (*models.Alert, error) {
	unlock := s.lockAlert(id)
	defer unlock()

	alert, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if record := alert.Notification(actor.ActorID); record != nil {
		record.Acknowledged = true
		record.AcknowledgedAt = &now
	} else {
		alert.NotifiedUsers = append(alert.NotifiedUsers, models.NotificationRecord{
			UserID:         actor.ActorID,
			NotifiedAt:     now,
			Method:         models.NotifyInApp,
			Acknowledged:   true,
			AcknowledgedAt: &now,
		})
	}

	if err := s.repo.Update(ctx, alert); err != nil {
		return nil, apperrors.Persistence(err, "failed to acknowledge alert %s", id)
	}

	return alert, nil
}

// Escalate bumps the escalation level. The level is monotonic: requests that
// do not increase it are rejected. No automatic escalation policy exists in
// this service; callers own the trigger.
func (s *AlertService) Escalate(ctx context.Context, id string, level int) (*models.Alert, error) {
	unlock := s.lockAlert(id)
	defer unlock()

	alert, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if level <= alert.EscalationLevel {
		return nil, apperrors.Validation("escalation level must exceed current level %d", alert.EscalationLevel)
	}

	now := time.Now()
	alert.Escalated = true
	alert.EscalationLevel = level
	alert.EscalationTime = &now

	if err := s.repo.Update(ctx, alert); err != nil {
		return nil, apperrors.Persistence(err, "failed to escalate alert %s", id)
	}

	s.log.Info("alert escalated",
		zap.String("alert_id", alert.ID),
		zap.Int("escalation_level", level),
	)

	return alert, nil
}

func (s *AlertService) Query(ctx context.Context, q *models.AlertQuery) (*models.AlertListResponse, error) {
	alerts, total, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to query alerts")
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

	return &models.AlertListResponse{
		Data: alerts,
		Pagination: models.Pagination{
			Total: total,
			Page:  page,
			Pages: pages,
			Limit: limit,
		},
	}, nil
}

func (s *AlertService) Summarize(ctx context.Context, start, end *time.Time) (*models.AlertStats, error) {
	stats, err := s.repo.Statistics(ctx, start, end)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to summarize alerts")
	}
	return stats, nil
}

func (s *AlertService) fetch(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to load alert %s", id)
	}
	if alert == nil {
		return nil, apperrors.NotFound("alert %s not found", id)
	}
	return alert, nil
}
