package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pv/precog-panel/internal/config"
)

// publisher is the subset of the MQTT client used by MQTTSink.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

type pahoPublisher struct {
	client mqtt.Client
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (p *pahoPublisher) Disconnect() {
	p.client.Disconnect(250)
}

// MQTTSink публикует оповещения в топик <topic>/<kind>
type MQTTSink struct {
	pub   publisher
	topic string
	qos   byte
}

// NewMQTTSink подключается к брокеру
func NewMQTTSink(cfg *config.MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.GetClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTSink(&pahoPublisher{client: client}, cfg.GetTopic(), cfg.QoS), nil
}

func newMQTTSink(pub publisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Deliver(_ context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topic+"/"+string(alert.Kind), s.qos, false, payload)
}

// Close отключается от брокера
func (s *MQTTSink) Close() {
	s.pub.Disconnect()
}
