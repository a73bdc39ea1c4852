// internal/mqtt/client.go

package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/service"
)

// Client subscribes to device telemetry topics and feeds readings into the
// vitals pipeline. Topic layout: vitalwatch/devices/<device_id>/readings.
type Client struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	vitals service.IVitalsService
	log    *zap.Logger
}

func NewClient(cfg *config.MQTTConfig, vitals service.IVitalsService, log *zap.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		vitals: vitals,
		log:    log,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(cfg.AutoReconnect)
	opts.SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *Client) Connect() error {
	c.log.Info("connecting to mqtt broker",
		zap.String("broker", c.cfg.Broker),
		zap.Int("port", c.cfg.Port),
	)

	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect timeout after %v", c.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.log.Info("disconnected from mqtt broker")
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// onConnect re-subscribes after every (re)connection; subscriptions on a
// clean session do not survive a reconnect.
func (c *Client) onConnect(client mqtt.Client) {
	token := client.Subscribe(c.cfg.ReadingsTopic, c.cfg.QoS, c.handleReading)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error("mqtt subscribe failed",
			zap.String("topic", c.cfg.ReadingsTopic),
			zap.Error(err),
		)
		return
	}
	c.log.Info("subscribed to readings topic", zap.String("topic", c.cfg.ReadingsTopic))
}

func (c *Client) handleReading(_ mqtt.Client, msg mqtt.Message) {
	deviceID := DeviceIDFromTopic(msg.Topic())
	if deviceID == "" {
		c.log.Warn("unroutable mqtt topic", zap.String("topic", msg.Topic()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.vitals.ProcessDeviceMessage(ctx, deviceID, msg.Payload()); err != nil {
		c.log.Warn("device reading rejected",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// DeviceIDFromTopic extracts the device segment from
// vitalwatch/devices/<device_id>/readings.
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "devices" || parts[3] != "readings" {
		return ""
	}
	return parts[2]
}
