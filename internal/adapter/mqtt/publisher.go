package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/config"
	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

var errStopped = errors.New("mqtt publisher stopped")

// Publisher sends retained station snapshots to an MQTT broker.
// It implements pipeline.Sink.
type Publisher struct {
	client mqtt.Client
	prefix string
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher configures an auto-reconnecting client. Call Connect before
// the first Publish.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		prefix: cfg.MQTTTopicPrefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func (p *Publisher) Name() string { return "mqtt" }

// Connect waits for the initial connection. It respects ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}

	if p.client.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errStopped
		default:
		}
	}
}

// Publish sends one retained message per station. It stops at the first
// failure.
func (p *Publisher) Publish(ctx context.Context, stations []domain.StationMeasurement) error {
	if len(stations) == 0 {
		return nil
	}
	if !p.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	for _, snap := range domain.NewSnapshots(stations) {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal station snapshot: %w", err)
		}

		topic := topicFor(p.prefix, snap.StationMeasurement)
		token := p.client.Publish(topic, qos, true, data)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish timeout for topic %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}

	p.logger.Debug("published snapshots", "sink", p.Name(), "messages", len(stations))
	return nil
}

// Disconnect closes the connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.logger.Info("mqtt disconnected")
}

var topicReplacer = strings.NewReplacer(
	" ", "-",
	"/", "-",
	"+", "_",
	"#", "_",
)

// topicFor builds <prefix>/<regio>/<station>.
func topicFor(prefix string, m domain.StationMeasurement) string {
	return prefix + "/" + topicLevel(m.Regio) + "/" + topicLevel(m.Name)
}

func topicLevel(s string) string {
	s = topicReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
	if s == "" {
		return "unknown"
	}
	return s
}
