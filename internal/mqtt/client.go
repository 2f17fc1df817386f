// Package mqtt publishes Kumo zones to an MQTT broker using the Home
// Assistant discovery convention and accepts commands back.
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/joshp123/kumo2mqtt/internal/config"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	connectTimeout = 10 * time.Second
)

// publisher is the broker surface the bridge drives.
type publisher interface {
	publish(topic string, payload []byte, retain bool) error
	subscribe(topic string, cb func([]byte)) (func(), error)
}

// Conn wraps a paho client with reference-counted subscriptions that
// survive reconnects.
type Conn struct {
	client paho.Client
	log    *zap.Logger

	mu     sync.Mutex
	subs   map[string]map[int]func([]byte)
	nextID int

	reconnectMu sync.Mutex
	onReconnect []func()
}

// Connect dials the broker and registers willTopic as a retained last
// will carrying "offline", so consumers see the bridge drop.
func Connect(cfg config.MQTTConfig, willTopic string, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{log: log, subs: make(map[string]map[int]func([]byte))}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	if willTopic != "" {
		opts.SetWill(willTopic, payloadOffline, 0, true)
	}
	opts.SetDefaultPublishHandler(c.dispatch)
	opts.OnConnect = func(_ paho.Client) {
		brokerConnected.Set(1)
		c.resubscribeAll()
		c.fireReconnect()
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		brokerConnected.Set(0)
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.client = client
	return c, nil
}

// OnReconnect registers a callback run every time the broker session is
// (re)established. Subscriptions are already restored when it fires.
func (c *Conn) OnReconnect(fn func()) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	c.onReconnect = append(c.onReconnect, fn)
}

func (c *Conn) fireReconnect() {
	c.reconnectMu.Lock()
	callbacks := make([]func(), len(c.onReconnect))
	copy(callbacks, c.onReconnect)
	c.reconnectMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (c *Conn) publish(topic string, payload []byte, retain bool) error {
	if token := c.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	publishesTotal.Inc()
	return nil
}

func (c *Conn) subscribe(topic string, cb func([]byte)) (func(), error) {
	c.mu.Lock()
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[int]func([]byte))
	}
	id := c.nextID
	c.nextID++
	c.subs[topic][id] = cb
	needSubscribe := len(c.subs[topic]) == 1
	c.mu.Unlock()

	if needSubscribe {
		if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
			return nil, token.Error()
		}
	}

	return func() {
		c.mu.Lock()
		callbacks := c.subs[topic]
		if callbacks == nil {
			c.mu.Unlock()
			return
		}
		delete(callbacks, id)
		shouldUnsub := len(callbacks) == 0
		if shouldUnsub {
			delete(c.subs, topic)
		}
		c.mu.Unlock()
		if shouldUnsub {
			_ = c.client.Unsubscribe(topic).Wait()
		}
	}, nil
}

func (c *Conn) dispatch(_ paho.Client, msg paho.Message) {
	c.mu.Lock()
	callbacks := c.subs[msg.Topic()]
	list := make([]func([]byte), 0, len(callbacks))
	for _, cb := range callbacks {
		list = append(list, cb)
	}
	c.mu.Unlock()
	for _, cb := range list {
		cb(msg.Payload())
	}
}

func (c *Conn) resubscribeAll() {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.Unlock()
	for _, topic := range topics {
		_ = c.client.Subscribe(topic, 0, nil).Wait()
	}
}

// Close disconnects from the broker. The last will does not fire on a
// clean disconnect; callers publish their offline state first.
func (c *Conn) Close() {
	if c.client != nil {
		c.client.Disconnect(250)
	}
}
