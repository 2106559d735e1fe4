package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eddielth/sensor2mqtt/config"
	"github.com/eddielth/sensor2mqtt/logger"
)

const (
	connectTimeout = 60 * time.Second
	publishTimeout = 10 * time.Second

	// qosAtLeastOnce is the delivery guarantee for every sensor publish.
	qosAtLeastOnce = 1
)

// Client is the publish sink backed by an MQTT broker.
type Client struct {
	client mqtt.Client
	config config.MQTTConfig
}

// NewClient builds the broker client without connecting.
func NewClient(cfg config.MQTTConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("MQTT broker host cannot be empty")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("sensor2mqtt-%d", time.Now().Unix())
	}
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	return &Client{
		client: mqtt.NewClient(opts),
		config: cfg,
	}, nil
}

// Connect establishes the broker session. A failure here is fatal to the
// run: nothing can be delivered without it.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection to MQTT broker %s:%d timed out", c.config.Host, c.config.Port)
	}
	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("connected to MQTT broker %s:%d", c.config.Host, c.config.Port)
	return nil
}

// Publish sends one payload at QoS 1 and waits for the token so delivery
// problems surface per record, not at disconnect.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	return token.Error()
}

// Disconnect drains outstanding work and closes the session.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
}
