package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/lumen/internal/infrastructure/config"
)

// testConfig returns a configuration for a local Mosquitto at 127.0.0.1:1883.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "lumen-test",
	}
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"default status", Topics{}.SystemStatus(), "lumen/system/status"},
		{"brightness", Topics{Prefix: "home/laptop"}.BrightnessState(), "home/laptop/state/brightness"},
		{"override trailing slash", Topics{Prefix: "lumen/"}.OverrideEvent(), "lumen/event/override"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestClientID(t *testing.T) {
	cfg := testConfig("")
	a, b := clientID(cfg), clientID(cfg)
	if !strings.HasPrefix(a, "lumen-") || a == b {
		t.Errorf("generated ids %q, %q should be unique and prefixed", a, b)
	}

	cfg.Broker.ClientID = "desk"
	if got := clientID(cfg); got != "desk" {
		t.Errorf("clientID() = %q, want configured id", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("desk")
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "lumen", Password: "pw"}

	opts := buildClientOptions(cfg, "desk")
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "desk" || opts.Username != "lumen" || opts.Password != "pw" {
		t.Errorf("identity = %q %q %q", opts.ClientID, opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}

	configureLWT(opts, Topics{Prefix: "lumen"}, "desk")
	if !opts.WillEnabled || opts.WillTopic != "lumen/system/status" || !opts.WillRetained {
		t.Errorf("LWT = %v %q %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload("offline", "desk", "graceful_shutdown"), &p); err != nil {
		t.Fatal(err)
	}
	if p.Status != "offline" || p.ClientID != "desk" || p.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", p.Timestamp, err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if err := c.Publish("lumen/x", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("lumen/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish oversize", c.Publish("t", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed},
		{"subscribe empty topic", c.Subscribe("", 0, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 0, nil), ErrSubscribeFailed},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestConnectRefused(t *testing.T) {
	cfg := testConfig("lumen-refused")
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "lumen-test-roundtrip")

	topic := client.Topics().BrightnessState()
	received := make(chan []byte, 1)
	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("subscription not tracked")
	}

	if err := client.PublishJSON(topic, map[string]int{"brightness": 42}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"brightness":42}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t, "lumen-test-health")

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}
}
