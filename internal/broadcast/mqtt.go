package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures an [MQTTBus].
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Timeout   time.Duration
	Logger    *log.Logger
}

// MQTTBus carries selections over MQTT. Messages from the broker, including
// this bus's own publications, are delivered to local subscribers.
type MQTTBus struct {
	client  paho.Client
	topic   string
	timeout time.Duration
	local   *LocalBus
	logger  *log.Logger
}

// NewMQTTBus connects to the broker and subscribes to the selection topic.
func NewMQTTBus(opts MQTTOptions) (*MQTTBus, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("%w: mqtt broker url is required", shared.ErrInvalidConfig)
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "hitster-" + shared.GenerateID()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	b := &MQTTBus{
		topic:   opts.Topic,
		timeout: opts.Timeout,
		local:   NewLocalBus(),
		logger:  shared.WithLogger(opts.Logger, "component", "broadcast"),
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(b.topic, 1, b.handleMessage)
		token.Wait()
	})

	b.client = paho.NewClient(clientOpts)
	if token := b.client.Connect(); token.WaitTimeout(opts.Timeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	} else if !b.client.IsConnected() {
		b.client.Disconnect(0)
		return nil, fmt.Errorf("%w: mqtt connect to %s", shared.ErrTimeout, opts.BrokerURL)
	}
	if token := b.client.Subscribe(b.topic, 1, b.handleMessage); token.Wait() && token.Error() != nil {
		b.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt subscribe: %w", token.Error())
	}

	b.logger.Info("selection bridge connected", "broker", opts.BrokerURL, "topic", b.topic)
	return b, nil
}

// Publish sends s to the broker.
func (b *MQTTBus) Publish(ctx context.Context, s Selection) error {
	if err := s.Validate(); err != nil {
		return err
	}
	payload, err := encode(s)
	if err != nil {
		return err
	}

	token := b.client.Publish(b.topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.timeout):
		return fmt.Errorf("%w: mqtt publish", shared.ErrTimeout)
	}
}

func (b *MQTTBus) Subscribe(h Handler) func() { return b.local.Subscribe(h) }

// Close unsubscribes and disconnects.
func (b *MQTTBus) Close() error {
	if token := b.client.Unsubscribe(b.topic); !token.WaitTimeout(b.timeout) {
		b.logger.Warn("mqtt unsubscribe timed out")
	}
	b.client.Disconnect(250)
	return b.local.Close()
}

func (b *MQTTBus) handleMessage(_ paho.Client, msg paho.Message) {
	s, err := decode(msg.Payload())
	if err != nil {
		b.logger.Debug("ignoring selection", "topic", msg.Topic(), "error", err)
		return
	}
	b.local.dispatch(s)
}
