// internal/websocket/message.go

package websocket

// Event names emitted to connected clients. These are wire contract and
// consumed by existing dashboards.
const (
	EventNewAlert        = "newAlert"
	EventCriticalAlert   = "criticalAlert"
	EventHighAlert       = "highAlert"
	EventAlertResolved   = "alertResolved"
	EventVitalSignUpdate = "vitalSignUpdate"
	EventError           = "error"
)

// Message is the generic envelope for server-to-client pushes.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ResolutionPayload is the minimal alertResolved payload.
type ResolutionPayload struct {
	AlertID   string `json:"alertId"`
	PatientID string `json:"patientId"`
}

// ClientCommand is what a connected client may send upstream: joining or
// leaving a patient subscription.
type ClientCommand struct {
	Action    string `json:"action"`
	PatientID string `json:"patient_id"`
}

const (
	ActionJoinPatient  = "joinPatientRoom"
	ActionLeavePatient = "leavePatientRoom"
)
