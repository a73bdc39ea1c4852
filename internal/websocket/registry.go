// internal/websocket/registry.go

package websocket

import (
	"sync"

	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/models"
)

// Registry tracks which live connections are interested in which patients
// and which role group each connection belongs to. A connection joins any
// number of patient subscriptions but exactly one role group, assigned from
// its identity at registration time.
//
// The registry is shared state: all membership mutation happens under one
// RWMutex, so join/leave/disconnect for a single connection are mutually
// exclusive, while fan-out reads proceed concurrently.
type Registry struct {
	mu        sync.RWMutex
	byPatient map[string]map[*Client]struct{}
	byRole    map[string]map[*Client]struct{}
	interests map[*Client]map[string]struct{}
	log       *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		byPatient: make(map[string]map[*Client]struct{}),
		byRole:    make(map[string]map[*Client]struct{}),
		interests: make(map[*Client]map[string]struct{}),
		log:       log,
	}
}

// Register adds a connection and places it in its role group.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := c.Identity.Role
	if r.byRole[role] == nil {
		r.byRole[role] = make(map[*Client]struct{})
	}
	r.byRole[role][c] = struct{}{}
	r.interests[c] = make(map[string]struct{})

	r.log.Info("connection registered",
		zap.String("connection_id", c.ID),
		zap.String("actor_id", c.Identity.ActorID),
		zap.String("role", role),
	)
}

// JoinPatient subscribes the connection to a patient's events. The caller's
// capability set must include read:vitals; otherwise the join is refused and
// no membership changes.
func (r *Registry) JoinPatient(c *Client, patientID string) error {
	if !c.Identity.HasCapability(models.CapabilityReadVitals) {
		return apperrors.Unauthorized("not authorized to monitor patient %s", patientID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.interests[c]; !known {
		return apperrors.NotFound("connection %s is not registered", c.ID)
	}

	if r.byPatient[patientID] == nil {
		r.byPatient[patientID] = make(map[*Client]struct{})
	}
	r.byPatient[patientID][c] = struct{}{}
	r.interests[c][patientID] = struct{}{}

	r.log.Debug("patient subscription added",
		zap.String("connection_id", c.ID),
		zap.String("patient_id", patientID),
	)
	return nil
}

// LeavePatient removes one patient subscription. Leaving a patient the
// connection never joined is a no-op.
func (r *Registry) LeavePatient(c *Client, patientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removePatientLocked(c, patientID)
}

// Unregister removes the connection from its role group and every patient
// subscription it held, then closes its outbound queue. Safe to call more
// than once.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	interests, known := r.interests[c]
	if !known {
		return
	}

	for patientID := range interests {
		r.removePatientLocked(c, patientID)
	}
	delete(r.interests, c)

	role := c.Identity.Role
	if members, ok := r.byRole[role]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.byRole, role)
		}
	}

	c.close()

	r.log.Info("connection unregistered",
		zap.String("connection_id", c.ID),
		zap.String("actor_id", c.Identity.ActorID),
	)
}

func (r *Registry) removePatientLocked(c *Client, patientID string) {
	if subscribers, ok := r.byPatient[patientID]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(r.byPatient, patientID)
		}
	}
	if interests, ok := r.interests[c]; ok {
		delete(interests, patientID)
	}
}

// PatientSubscribers snapshots the connections watching a patient.
func (r *Registry) PatientSubscribers(patientID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return clientSet(r.byPatient[patientID])
}

// RoleMembers snapshots the connections in a role group.
func (r *Registry) RoleMembers(role string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return clientSet(r.byRole[role])
}

// Subscriptions reports the patient ids a connection currently watches.
func (r *Registry) Subscriptions(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	interests := r.interests[c]
	patients := make([]string, 0, len(interests))
	for patientID := range interests {
		patients = append(patients, patientID)
	}
	return patients
}

func clientSet(set map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}
