package myskoda

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

const (
	// DefaultBrokerURL is the MySkoda MQTT broker.
	DefaultBrokerURL = "mqtts://mqtt.messagehub.de:8883"

	// eventBufferSize bounds the delivery channel. The consumer drains it in
	// its own goroutine; events are dropped with a warning when it is full.
	eventBufferSize = 64
)

// EventStreamConfig holds the connection settings for the push-event stream.
type EventStreamConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// UserID and VIN scope the topic subscriptions.
	UserID string
	VIN    string

	KeepAlive      uint16
	ConnectTimeout time.Duration
}

func (c *EventStreamConfig) withDefaults() {
	if c.BrokerURL == "" {
		c.BrokerURL = DefaultBrokerURL
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 60
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// EventStream receives push events for one vehicle over MQTT and delivers
// them on a channel.
type EventStream struct {
	cfg    EventStreamConfig
	log    *zap.Logger
	events chan *Event

	mu sync.Mutex
	cm *autopaho.ConnectionManager

	connected atomic.Bool
}

// NewEventStream creates a new event stream. Call Connect to start it.
func NewEventStream(cfg EventStreamConfig, logger *zap.Logger) (*EventStream, error) {
	cfg.withDefaults()
	if cfg.UserID == "" || cfg.VIN == "" {
		return nil, fmt.Errorf("user id and vin are required")
	}
	if _, err := url.Parse(cfg.BrokerURL); err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	return &EventStream{
		cfg:    cfg,
		log:    logger,
		events: make(chan *Event, eventBufferSize),
	}, nil
}

// Connect establishes the broker connection. Once the connection manager
// exists it reconnects and re-subscribes on its own, so repeated calls just
// wait for the link to come back up.
func (s *EventStream) Connect(ctx context.Context) error {
	cm, err := s.manager(ctx)
	if err != nil {
		return err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await connection: %w", err)
	}
	return nil
}

// manager returns the connection manager, dialing the broker on first use.
func (s *EventStream) manager(ctx context.Context) (*autopaho.ConnectionManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cm != nil {
		return s.cm, nil
	}

	brokerURL, err := url.Parse(s.cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:       []*url.URL{brokerURL},
		KeepAlive:        s.cfg.KeepAlive,
		ConnectTimeout:   s.cfg.ConnectTimeout,
		ConnectUsername:  s.cfg.Username,
		ConnectPassword:  []byte(s.cfg.Password),
		ReconnectBackoff: autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp:   s.onConnectionUp,
		OnConnectError:   s.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           s.cfg.ClientID,
			OnServerDisconnect: s.onServerDisconnect,
			OnClientError:      s.onClientError,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				s.route,
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	s.cm = cm
	return cm, nil
}

// Events returns the channel on which decoded events are delivered.
func (s *EventStream) Events() <-chan *Event {
	return s.events
}

// Connected reports whether the broker connection is currently up.
func (s *EventStream) Connected() bool {
	return s.connected.Load()
}

// Close disconnects from the broker.
func (s *EventStream) Close(ctx context.Context) error {
	s.mu.Lock()
	cm := s.cm
	s.mu.Unlock()
	if cm == nil {
		return nil
	}
	s.connected.Store(false)
	return cm.Disconnect(ctx)
}

func (s *EventStream) topics() []string {
	prefix := s.cfg.UserID + "/" + s.cfg.VIN + "/"
	return []string{
		prefix + "operation-request/#",
		prefix + "service-event/#",
	}
}

// onConnectionUp subscribes (and re-subscribes after reconnects) to the
// vehicle's topics.
func (s *EventStream) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	s.connected.Store(true)
	s.log.Info("event stream connected", zap.String("vin", s.cfg.VIN))

	var subs []paho.SubscribeOptions
	for _, topic := range s.topics() {
		subs = append(subs, paho.SubscribeOptions{Topic: topic, QoS: 1})
	}
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{Subscriptions: subs}); err != nil {
		s.log.Error("subscribe failed", zap.Error(err))
	}
}

func (s *EventStream) onConnectError(err error) {
	s.connected.Store(false)
	s.log.Warn("event stream connect failed, retrying", zap.Error(err))
}

func (s *EventStream) onClientError(err error) {
	s.connected.Store(false)
	s.log.Warn("event stream client error", zap.Error(err))
}

func (s *EventStream) onServerDisconnect(d *paho.Disconnect) {
	s.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	s.log.Warn("event stream server disconnect", zap.String("reason", reason))
}

// route decodes an incoming message and hands it to the consumer without
// blocking the broker reader loop.
func (s *EventStream) route(p paho.PublishReceived) (bool, error) {
	event, err := DecodeEvent(p.Packet.Topic, p.Packet.Payload, time.Now())
	if err != nil {
		s.log.Debug("ignoring undecodable event",
			zap.String("topic", p.Packet.Topic), zap.Error(err))
		return true, nil
	}

	select {
	case s.events <- event:
	default:
		s.log.Warn("event buffer full, dropping event",
			zap.String("topic", p.Packet.Topic))
	}
	return true, nil
}
