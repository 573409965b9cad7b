package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauronsensor/tauronsensor/pkg/sensor"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

type received struct {
	mu       sync.Mutex
	messages map[string]string
}

func (r *received) handler(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[pk.TopicName] = string(pk.Payload)
}

func (r *received) get(topic string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.messages[topic]
	return v, ok
}

func (r *received) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func startBroker(t *testing.T) (*Broker, *received) {
	t.Helper()
	b := New("127.0.0.1:0", "tauron/", "homeassistant")
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Close() })

	r := &received{messages: map[string]string{}}
	require.NoError(t, b.Server().Subscribe("#", 1, r.handler))
	return b, r
}

func TestTopics(t *testing.T) {
	b := New("", "", "")
	assert.False(t, b.Enabled())
	assert.Equal(t, "tauron/energy_balance/state", b.StateTopic(types.MetricEnergyBalance))

	info, ok := sensor.Lookup(types.MetricEnergyBalance)
	require.True(t, ok)
	assert.Equal(t, "homeassistant/sensor/tauron_energy_balance/config", b.DiscoveryTopic(info))
}

func TestPublishSnapshot(t *testing.T) {
	b, r := startBroker(t)

	report := types.Report{
		TotalConsumption:     1.234,
		PeakConsumptionValue: 0.5,
		PeakConsumptionHour:  new(int),
	}
	snap := sensor.BuildSnapshot(report)
	require.NoError(t, b.PublishSnapshot(context.Background(), snap))

	assert.Eventually(t, func() bool { return r.len() >= len(sensor.Metrics()) }, 2*time.Second, 10*time.Millisecond)

	v, ok := r.get("tauron/total_daily_consumption/state")
	require.True(t, ok)
	assert.Equal(t, "1.23", v)

	v, ok = r.get("tauron/peak_consumption_hour/state")
	require.True(t, ok)
	assert.Equal(t, "0", v)

	v, ok = r.get("tauron/peak_production_hour/state")
	require.True(t, ok)
	assert.Equal(t, "", v, "missing peak hour publishes an empty state")
}

func TestDiscovery(t *testing.T) {
	b, r := startBroker(t)

	// republish so the subscription registered after Start sees the configs
	b.mu.Lock()
	require.NoError(t, b.publishDiscovery())
	b.mu.Unlock()

	topic := "homeassistant/sensor/tauron_total_daily_consumption/config"
	assert.Eventually(t, func() bool { return r.len() >= len(sensor.Metrics()) }, 2*time.Second, 10*time.Millisecond)

	raw, _ := r.get(topic)
	var cfg map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, map[string]string{
		"name":                "Dzienne zużycie energii",
		"unique_id":           "tauron_total_daily_consumption",
		"state_topic":         "tauron/total_daily_consumption/state",
		"unit_of_measurement": "kWh",
		"icon":                "mdi:flash",
		"state_class":         "measurement",
	}, cfg)

	raw, _ = r.get("homeassistant/sensor/tauron_peak_production_hour/config")
	cfg = nil
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	_, hasUnit := cfg["unit_of_measurement"]
	assert.False(t, hasUnit)
}

func TestPublishBeforeStart(t *testing.T) {
	b := New("127.0.0.1:0", "", "")
	assert.ErrorIs(t, b.PublishSnapshot(context.Background(), types.Snapshot{}), errNotStarted)
	assert.NoError(t, b.Close())
}
