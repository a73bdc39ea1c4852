package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceIDFromTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  string
	}{
		{"vitalwatch/devices/monitor-12/readings", "monitor-12"},
		{"vitalwatch/devices/monitor-12/status", ""},
		{"vitalwatch/devices/readings", ""},
		{"other/devices/monitor-12/readings", "monitor-12"},
		{"vitalwatch/devices//readings", ""},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DeviceIDFromTopic(tc.topic), "topic %q", tc.topic)
	}
}
