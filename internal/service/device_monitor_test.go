package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

func TestDeviceTrackerSilentSince(t *testing.T) {
	tracker := NewDeviceTracker()
	tracker.Touch("monitor-1", "patient-1")
	tracker.Touch("monitor-2", "patient-2")

	// Nothing is silent against a cutoff in the past.
	assert.Empty(t, tracker.silentSince(time.Now().Add(-time.Minute)))

	silent := tracker.silentSince(time.Now().Add(time.Minute))
	assert.Equal(t, map[string]string{
		"monitor-1": "patient-1",
		"monitor-2": "patient-2",
	}, silent)

	// Already-alerted devices stay quiet until touched again.
	assert.Empty(t, tracker.silentSince(time.Now().Add(time.Minute)))

	tracker.Touch("monitor-1", "patient-1")
	silent = tracker.silentSince(time.Now().Add(time.Minute))
	assert.Equal(t, map[string]string{"monitor-1": "patient-1"}, silent)
}

func TestMonitorSweepRaisesDisconnectAlert(t *testing.T) {
	tracker := NewDeviceTracker()
	tracker.Touch("monitor-1", "patient-1")

	alertRepo := newFakeAlertRepo()
	notifier := &fakeNotifier{}
	alerts := NewAlertService(alertRepo, &fakePatientRepo{known: map[string]bool{"patient-1": true}}, notifier, testMetrics, zap.NewNop())

	monitor := NewDeviceMonitor(tracker, alerts, 0, time.Minute, zap.NewNop())
	monitor.sweep()

	require.Len(t, notifier.raised, 1)
	raised := notifier.raised[0]
	assert.Equal(t, models.AlertDeviceDisconnected, raised.AlertType)
	assert.Equal(t, models.SeverityMedium, raised.Severity)
	assert.Equal(t, "patient-1", raised.PatientID)
	require.NotNil(t, raised.DeviceID)
	assert.Equal(t, "monitor-1", *raised.DeviceID)

	// Second sweep must not duplicate the alert.
	monitor.sweep()
	assert.Len(t, notifier.raised, 1)
}
