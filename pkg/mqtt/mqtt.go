package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/levenlabs/go-lflag"
	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/sensor"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const (
	DefaultTopicPrefix     = "tauron"
	DefaultDiscoveryPrefix = "homeassistant"
)

var errNotStarted = errors.New("mqtt broker not started")

// Broker is an embedded MQTT broker that announces every metric through Home
// Assistant discovery and publishes retained sensor states.
type Broker struct {
	listen          string
	topicPrefix     string
	discoveryPrefix string

	mu     sync.Mutex
	server *mqttv2.Server
}

// New returns a Broker listening on listen. An empty listen address disables
// the broker.
func New(listen, topicPrefix, discoveryPrefix string) *Broker {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return &Broker{
		listen:          listen,
		topicPrefix:     strings.TrimSuffix(topicPrefix, "/"),
		discoveryPrefix: strings.TrimSuffix(discoveryPrefix, "/"),
	}
}

// Configured sets up the broker from flags.
func Configured() *Broker {
	b := New("", "", "")
	listen := lflag.String("mqtt-listen", "", "Address for the embedded MQTT broker (empty disables MQTT)")
	topicPrefix := lflag.String("mqtt-topic-prefix", DefaultTopicPrefix, "Topic prefix for sensor states")
	discoveryPrefix := lflag.String("mqtt-discovery-prefix", DefaultDiscoveryPrefix, "Home Assistant discovery prefix")

	lflag.Do(func() {
		nb := New(*listen, *topicPrefix, *discoveryPrefix)
		b.listen = nb.listen
		b.topicPrefix = nb.topicPrefix
		b.discoveryPrefix = nb.discoveryPrefix
	})
	return b
}

// Enabled reports whether a listen address was configured.
func (b *Broker) Enabled() bool {
	return b.listen != ""
}

// StateTopic is the topic a metric's state is published to.
func (b *Broker) StateTopic(key types.MetricKey) string {
	return b.topicPrefix + "/" + string(key) + "/state"
}

// DiscoveryTopic is the Home Assistant discovery topic for a metric.
func (b *Broker) DiscoveryTopic(info types.SensorInfo) string {
	return b.discoveryPrefix + "/sensor/" + info.UniqueID + "/config"
}

// Start brings up the listener and publishes the discovery configs.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server != nil {
		return nil
	}

	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
		Logger:       log.Ctx(ctx).With(slog.String("component", "mqtt")),
	})
	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: b.listen})
	if err := server.AddListener(tcp); err != nil {
		return fmt.Errorf("failed to add mqtt listener: %w", err)
	}
	if err := server.Serve(); err != nil {
		return fmt.Errorf("failed to start mqtt broker: %w", err)
	}
	b.server = server

	if err := b.publishDiscovery(); err != nil {
		return err
	}
	log.Ctx(ctx).InfoContext(ctx, "mqtt broker started", slog.String("listen", b.listen))
	return nil
}

// Server returns the running broker, or nil before Start.
func (b *Broker) Server() *mqttv2.Server {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.server
}

// Close stops the broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return nil
	}
	err := b.server.Close()
	b.server = nil
	return err
}

type discoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Icon              string `json:"icon"`
	StateClass        string `json:"state_class"`
}

// publishDiscovery must be called with mu held.
func (b *Broker) publishDiscovery() error {
	for _, m := range sensor.Metrics() {
		payload, err := json.Marshal(discoveryConfig{
			Name:              m.Name,
			UniqueID:          m.UniqueID,
			StateTopic:        b.StateTopic(m.Key),
			UnitOfMeasurement: m.Unit,
			Icon:              m.Icon,
			StateClass:        m.StateClass,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config for %s: %w", m.Key, err)
		}
		if err := b.server.Publish(b.DiscoveryTopic(m), payload, true, 0); err != nil {
			return fmt.Errorf("failed to publish discovery config for %s: %w", m.Key, err)
		}
	}
	return nil
}

// PublishSnapshot publishes every metric of snap as a retained state.
func (b *Broker) PublishSnapshot(ctx context.Context, snap types.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return errNotStarted
	}

	var errs []error
	for _, m := range sensor.Metrics() {
		v, ok := snap[m.Key]
		if !ok {
			continue
		}
		if err := b.server.Publish(b.StateTopic(m.Key), []byte(formatState(v.State)), true, 0); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %s: %w", m.Key, err))
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "published snapshot to mqtt", slog.Int("metrics", len(snap)))
	return errors.Join(errs...)
}

func formatState(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
