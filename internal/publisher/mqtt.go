// Package publisher pushes consolidation summaries to an MQTT broker so
// external dashboards (e.g. Home Assistant) can track ledger growth without
// polling the API. Entirely optional: a disabled publisher is a no-op.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds MQTT publisher settings.
type Config struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"` // host:port
	TopicPrefix string `toml:"topic_prefix"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

// Summary describes one successful consolidation cycle.
type Summary struct {
	CompletedAt time.Time `json:"completed_at"`
	Users       int       `json:"users"`
	Readings    int       `json:"readings"`
	DurationMS  int64     `json:"duration_ms"`
}

// Publisher publishes drain summaries over MQTT.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the broker. Returns a no-op publisher when disabled.
func New(cfg Config) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{}, nil
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "metergrid"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "metergrid"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, topicPrefix: topicPrefix}, nil
}

// PublishDrainSummary publishes the summary to <prefix>/consolidation.
// No-op when the publisher is disabled.
func (p *Publisher) PublishDrainSummary(s Summary) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode drain summary: %w", err)
	}
	topic := p.topicPrefix + "/consolidation"
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p != nil && p.client != nil {
		p.client.Disconnect(250)
	}
}
