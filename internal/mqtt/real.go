package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/krt1k/blueproximity-v2/internal/proximity"
)

// bufferCapacity is how many messages are held while the broker is
// unreachable. Presence events are small and infrequent; 64 covers
// hours of outage.
const bufferCapacity = 64

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are buffered and replayed from the reconnect
// handler.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // set after the first successful connect
}

// NewRealPublisher creates a publisher connected to the given broker.
// Username and password may be empty.
func NewRealPublisher(broker, username, password string) (*RealPublisher, error) {
	p := &RealPublisher{buffer: newRingBuffer(bufferCapacity)}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "connection lost",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("blueproximity").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays buffered messages. On anything but the first
// connect a RECONNECTED system event follows the replay.
func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	first := !p.connected
	p.connected = true
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	for _, m := range msgs {
		token := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			log.Printf("mqtt: replay of buffered message failed: %v", token.Error())
		}
	}
	if first {
		return
	}
	log.Printf("mqtt: reconnected, replayed %d buffered messages", len(msgs))
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "RECONNECTED",
	})
	client.Publish(TopicSystem, 1, false, payload)
}

// publish sends or, when disconnected, buffers one message.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := p.buffer.len()
		p.mu.Unlock()
		return fmt.Errorf("broker unreachable, buffered (%d pending)", n)
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a presence event to the MQTT broker.
// QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(event proximity.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
// QoS 1 (at-least-once), lifecycle events should not get lost.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports the broker connection state.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
