// internal/service/device_monitor.go

package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

type deviceState struct {
	patientID string
	lastSeen  time.Time
	alerted   bool
}

// DeviceTracker remembers when each device last published telemetry.
type DeviceTracker struct {
	mu      sync.Mutex
	devices map[string]*deviceState
}

func NewDeviceTracker() *DeviceTracker {
	return &DeviceTracker{devices: make(map[string]*deviceState)}
}

// Touch records activity from a device. A device that had gone silent is
// eligible to alert again on its next silence.
func (t *DeviceTracker) Touch(deviceID, patientID string) {
	if deviceID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices[deviceID] = &deviceState{patientID: patientID, lastSeen: time.Now()}
}

// silentSince returns devices with no activity since the cutoff that have
// not yet been alerted on, marking them alerted.
func (t *DeviceTracker) silentSince(cutoff time.Time) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	silent := make(map[string]string)
	for id, state := range t.devices {
		if state.alerted || state.lastSeen.After(cutoff) {
			continue
		}
		state.alerted = true
		silent[id] = state.patientID
	}
	return silent
}

// DeviceMonitor watches tracked devices and raises a DeviceDisconnected
// alert for any that stay silent past the configured timeout.
type DeviceMonitor struct {
	tracker  *DeviceTracker
	alerts   IAlertService
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewDeviceMonitor(tracker *DeviceTracker, alerts IAlertService, timeout, interval time.Duration, log *zap.Logger) *DeviceMonitor {
	return &DeviceMonitor{
		tracker:  tracker,
		alerts:   alerts,
		timeout:  timeout,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *DeviceMonitor) Start() {
	go m.run()
}

func (m *DeviceMonitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *DeviceMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *DeviceMonitor) sweep() {
	cutoff := time.Now().Add(-m.timeout)
	for deviceID, patientID := range m.tracker.silentSince(cutoff) {
		id := deviceID
		candidate := &models.AlertCandidate{
			PatientID: patientID,
			AlertType: models.AlertDeviceDisconnected,
			Severity:  models.SeverityMedium,
			Message:   "Device " + id + " has stopped reporting",
			DeviceID:  &id,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := m.alerts.Raise(ctx, candidate); err != nil {
			m.log.Error("failed to raise device disconnect alert",
				zap.String("device_id", id),
				zap.Error(err),
			)
		}
		cancel()
	}
}
