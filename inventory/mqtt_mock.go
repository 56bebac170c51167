package inventory

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mockToken implements mqtt.Token for tests.
type mockToken struct {
	err error
}

func newMockToken(err error) *mockToken { return &mockToken{err: err} }

func (t *mockToken) Wait() bool { return true }

func (t *mockToken) WaitTimeout(time.Duration) bool { return true }

func (t *mockToken) Error() error { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// PublishedMessage records one publish call made against the mock client.
type PublishedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MockMQTTClient implements mqtt.Client for publisher tests. It records
// published messages and can simulate disconnection and publish failures.
type MockMQTTClient struct {
	mu           sync.RWMutex
	connected    bool
	publishError error
	published    []PublishedMessage
}

// NewMockMQTTClient creates a connected mock client.
func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true}
}

// SetConnected toggles the simulated connection state.
func (c *MockMQTTClient) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SetPublishError makes subsequent publishes fail with err.
func (c *MockMQTTClient) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishError = err
}

// Published returns a copy of all recorded publishes.
func (c *MockMQTTClient) Published() []PublishedMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PublishedMessage, len(c.published))
	copy(out, c.published)
	return out
}

func (c *MockMQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockMQTTClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *MockMQTTClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return newMockToken(nil)
}

func (c *MockMQTTClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return newMockToken(mqtt.ErrNotConnected)
	}
	if c.publishError != nil {
		return newMockToken(c.publishError)
	}

	var payloadBytes []byte
	switch v := payload.(type) {
	case []byte:
		payloadBytes = v
	case string:
		payloadBytes = []byte(v)
	}
	c.published = append(c.published, PublishedMessage{
		Topic:   topic,
		Payload: payloadBytes,
		QoS:     qos,
		Retain:  retained,
	})
	return newMockToken(nil)
}

func (c *MockMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}

func (c *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}

func (c *MockMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	return newMockToken(nil)
}

func (c *MockMQTTClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *MockMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}
