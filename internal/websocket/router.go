// internal/websocket/router.go

package websocket

import (
	"go.uber.org/zap"

	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
)

// Router computes the recipient set for each event and pushes the payload to
// every member. Delivery is fire-and-forget: a slow or gone recipient is
// dropped and never retried here. All deliveries for one event are issued
// before the call returns, so a caller's successive events are never
// reordered.
type Router struct {
	registry *Registry
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewRouter(registry *Registry, m *metrics.Metrics, log *zap.Logger) *Router {
	return &Router{
		registry: registry,
		log:      log,
		metrics:  m,
	}
}

// AlertRaised fans a freshly persisted alert out to the patient's
// subscribers, widened by severity: Critical reaches the doctor and nurse
// role groups, High reaches the nurses. A connection present in several of
// those sets receives exactly one delivery.
func (rt *Router) AlertRaised(alert *models.Alert) {
	seen := make(map[*Client]struct{})

	for _, c := range rt.registry.PatientSubscribers(alert.PatientID) {
		rt.deliverOnce(seen, c, Message{Event: EventNewAlert, Payload: alert})
	}

	switch alert.Severity {
	case models.SeverityCritical:
		for _, role := range []string{models.RoleDoctor, models.RoleNurse} {
			for _, c := range rt.registry.RoleMembers(role) {
				rt.deliverOnce(seen, c, Message{Event: EventCriticalAlert, Payload: alert})
			}
		}
	case models.SeverityHigh:
		for _, c := range rt.registry.RoleMembers(models.RoleNurse) {
			rt.deliverOnce(seen, c, Message{Event: EventHighAlert, Payload: alert})
		}
	}
}

// AlertResolved notifies the patient's subscribers only.
func (rt *Router) AlertResolved(alertID, patientID string) {
	msg := Message{
		Event:   EventAlertResolved,
		Payload: ResolutionPayload{AlertID: alertID, PatientID: patientID},
	}
	for _, c := range rt.registry.PatientSubscribers(patientID) {
		rt.deliver(c, msg)
	}
}

// ReadingAccepted pushes the raw accepted reading to the patient's
// subscribers. No severity-based widening applies.
func (rt *Router) ReadingAccepted(reading *models.Reading) {
	msg := Message{Event: EventVitalSignUpdate, Payload: reading}
	for _, c := range rt.registry.PatientSubscribers(reading.PatientID) {
		rt.deliver(c, msg)
	}
}

func (rt *Router) deliverOnce(seen map[*Client]struct{}, c *Client, msg Message) {
	if _, done := seen[c]; done {
		return
	}
	seen[c] = struct{}{}
	rt.deliver(c, msg)
}

func (rt *Router) deliver(c *Client, msg Message) {
	if c.Deliver(msg) {
		rt.metrics.Notifications.WithLabelValues("delivered").Inc()
		return
	}

	rt.metrics.Notifications.WithLabelValues("dropped").Inc()
	rt.log.Warn("notification dropped",
		zap.String("connection_id", c.ID),
		zap.String("event", msg.Event),
	)
}
