// internal/models/models.go

package models

import (
	"time"
)

// Severity levels, ordered from least to most urgent. The string values are
// part of the wire contract consumed by existing dashboards.
const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// severityRank orders severities for comparison. Unknown values rank lowest.
var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func SeverityRank(severity string) int {
	return severityRank[severity]
}

// Alert types. Wire contract values, reproduced verbatim.
const (
	AlertHighHeartRate       = "HighHeartRate"
	AlertLowHeartRate        = "LowHeartRate"
	AlertHighTemperature     = "HighTemperature"
	AlertLowTemperature      = "LowTemperature"
	AlertHighBloodPressure   = "HighBloodPressure"
	AlertLowBloodPressure    = "LowBloodPressure"
	AlertLowOxygenSaturation = "LowOxygenSaturation"
	AlertHighGlucose         = "HighGlucose"
	AlertLowGlucose          = "LowGlucose"
	AlertDeviceDisconnected  = "DeviceDisconnected"
	AlertCustom              = "Custom"
)

// Recording methods for a vital-sign reading.
const (
	RecordMethodAutomatic = "Automatic"
	RecordMethodManual    = "Manual"
)

// Notification methods recorded against an alert recipient.
const (
	NotifyInApp = "InApp"
	NotifyEmail = "Email"
	NotifySMS   = "SMS"
)

// Staff roles used for role-group fan-out.
const (
	RoleDoctor = "doctor"
	RoleNurse  = "nurse"
	RoleAdmin  = "admin"
)

// CapabilityReadVitals gates patient subscription joins.
const CapabilityReadVitals = "read:vitals"

// Measurement is a single vital-sign value with its unit. Absence of a
// measurement on a Reading is modeled with a nil pointer, never a zero value.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// BloodPressure carries both components of one cuff reading.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
	Unit      string  `json:"unit"`
}

// Reading is one timestamped set of vital-sign measurements for a patient.
type Reading struct {
	ID               string         `json:"id" db:"id"`
	PatientID        string         `json:"patient_id" db:"patient_id"`
	Timestamp        time.Time      `json:"timestamp" db:"timestamp"`
	Temperature      *Measurement   `json:"temperature,omitempty"`
	HeartRate        *Measurement   `json:"heart_rate,omitempty"`
	RespiratoryRate  *Measurement   `json:"respiratory_rate,omitempty"`
	BloodPressure    *BloodPressure `json:"blood_pressure,omitempty"`
	OxygenSaturation *Measurement   `json:"oxygen_saturation,omitempty"`
	GlucoseLevel     *Measurement   `json:"glucose_level,omitempty"`
	DeviceID         *string        `json:"device_id,omitempty" db:"device_id"`
	RecordedBy       *string        `json:"recorded_by,omitempty" db:"recorded_by"`
	RecordMethod     string         `json:"record_method" db:"record_method"`
	Notes            string         `json:"notes,omitempty" db:"notes"`
	ReceivedAt       time.Time      `json:"received_at" db:"received_at"`
}

// AlertCandidate is the ephemeral output of threshold evaluation, before an
// Alert identity exists.
type AlertCandidate struct {
	PatientID      string   `json:"patient_id"`
	AlertType      string   `json:"alert_type"`
	Severity       string   `json:"severity"`
	Message        string   `json:"message"`
	ReadingID      *string  `json:"reading_id,omitempty"`
	DeviceID       *string  `json:"device_id,omitempty"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
	ActualValue    *float64 `json:"actual_value,omitempty"`
}

// NotificationRecord tracks one recipient of an alert. Entries are unique per
// recipient; re-notification updates the existing entry in place.
type NotificationRecord struct {
	UserID         string     `json:"user_id"`
	NotifiedAt     time.Time  `json:"notified_at"`
	Method         string     `json:"method"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Alert is the persistent record of a detected abnormal condition.
// ResolutionTimestamp is set if and only if Resolved is true. Once resolved,
// an alert is immutable except for acknowledgement entries, which may still
// be appended for audit completeness.
type Alert struct {
	ID                  string               `json:"id" db:"id"`
	PatientID           string               `json:"patient_id" db:"patient_id"`
	Timestamp           time.Time            `json:"timestamp" db:"timestamp"`
	AlertType           string               `json:"alert_type" db:"alert_type"`
	Severity            string               `json:"severity" db:"severity"`
	Message             string               `json:"message" db:"message"`
	ReadingID           *string              `json:"reading_id,omitempty" db:"reading_id"`
	DeviceID            *string              `json:"device_id,omitempty" db:"device_id"`
	ThresholdValue      *float64             `json:"threshold_value,omitempty" db:"threshold_value"`
	ActualValue         *float64             `json:"actual_value,omitempty" db:"actual_value"`
	Resolved            bool                 `json:"resolved" db:"resolved"`
	ResolutionTimestamp *time.Time           `json:"resolution_timestamp,omitempty" db:"resolution_timestamp"`
	ResolvedBy          *string              `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes     *string              `json:"resolution_notes,omitempty" db:"resolution_notes"`
	NotifiedUsers       []NotificationRecord `json:"notified_users" db:"notified_users"`
	Escalated           bool                 `json:"escalated" db:"escalated"`
	EscalationLevel     int                  `json:"escalation_level" db:"escalation_level"`
	EscalationTime      *time.Time           `json:"escalation_time,omitempty" db:"escalation_time"`
}

// Notification looks up the record for a given recipient, if any.
func (a *Alert) Notification(userID string) *NotificationRecord {
	for i := range a.NotifiedUsers {
		if a.NotifiedUsers[i].UserID == userID {
			return &a.NotifiedUsers[i]
		}
	}
	return nil
}

// Identity is the verified caller attached to every request and connection.
type Identity struct {
	ActorID      string   `json:"actor_id"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

func (id Identity) HasCapability(cap string) bool {
	for _, c := range id.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// RecordReadingRequest is the HTTP payload for a manual vital-sign entry.
type RecordReadingRequest struct {
	PatientID        string         `json:"patient_id"`
	Temperature      *Measurement   `json:"temperature"`
	HeartRate        *Measurement   `json:"heart_rate"`
	RespiratoryRate  *Measurement   `json:"respiratory_rate"`
	BloodPressure    *BloodPressure `json:"blood_pressure"`
	OxygenSaturation *Measurement   `json:"oxygen_saturation"`
	GlucoseLevel     *Measurement   `json:"glucose_level"`
	DeviceID         *string        `json:"device_id"`
	RecordMethod     string         `json:"record_method"`
	Notes            string         `json:"notes"`
}

// CreateAlertRequest is the HTTP payload for a staff-raised Custom alert.
type CreateAlertRequest struct {
	PatientID string  `json:"patient_id"`
	AlertType string  `json:"alert_type"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	ReadingID *string `json:"reading_id"`
}

// ResolveAlertRequest carries optional resolution notes.
type ResolveAlertRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// EscalateAlertRequest bumps the escalation level of an alert.
type EscalateAlertRequest struct {
	Level int `json:"level"`
}

// AlertQuery filters and paginates alert listings.
type AlertQuery struct {
	PatientID string
	Resolved  *bool
	Severity  string
	AlertType string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// AlertListResponse is the paginated alert listing payload.
type AlertListResponse struct {
	Data       []Alert    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ReadingQueryRequest filters a patient's reading history.
type ReadingQueryRequest struct {
	PatientID string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// ReadingListResponse is the paginated reading listing payload.
type ReadingListResponse struct {
	Data       []Reading  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// AlertStats summarizes alerts over an optional time window. Severity and
// type counts carry only keys actually present; resolved and unresolved are
// always present. AverageResolutionMinutes is 0 both when resolution was
// instantaneous and when no resolved alerts fall in range; the two cases are
// not distinguished.
type AlertStats struct {
	SeverityCounts           map[string]int `json:"severity_counts"`
	TypeCounts               map[string]int `json:"type_counts"`
	ResolvedCounts           map[string]int `json:"resolved_counts"`
	AverageResolutionMinutes int            `json:"average_resolution_time"`
}

// HealthResponse reports collaborator liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Database bool `json:"database"`
		MQTT     bool `json:"mqtt"`
	} `json:"services"`
}
