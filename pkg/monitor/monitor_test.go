package monitor

import (
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/wifibridge/pkg/radio"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
}

type testPublisher struct {
	msgs []published
}

func (p *testPublisher) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, qos: qos, retain: retain})
	return &paho.DummyToken{}
}

func TestClientOptionsFromURL(t *testing.T) {
	testCases := []struct {
		url    string
		broker string
		prefix string
		user   string
		client string
	}{
		{url: "mqtt://localhost:1883/bridge/", broker: "tcp://localhost:1883", prefix: "bridge/"},
		{url: "ssl://u:p@broker:8883", broker: "ssl://broker:8883", user: "u"},
		{url: "mqtt://host:1883/a/b/?client-id=lab", broker: "tcp://host:1883", prefix: "a/b/", client: "lab"},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			opts, prefix, err := ClientOptionsFromURL(tc.url)
			require.NoError(t, err)
			require.Len(t, opts.Servers, 1)
			require.Equal(t, tc.broker, opts.Servers[0].String())
			require.Equal(t, tc.prefix, prefix)
			require.Equal(t, tc.user, opts.Username)
			require.Equal(t, tc.client, opts.ClientID)
		})
	}
	_, _, err := ClientOptionsFromURL("/no/host")
	require.Error(t, err)
}

func TestReporterEvents(t *testing.T) {
	pub := &testPublisher{}
	r := NewReporter(pub, "dev1")
	r.RadioEvent(radio.Event{Kind: radio.EventStage, Task: radio.TaskConfig, Stage: radio.JoinAP, Sends: 1})
	require.Len(t, pub.msgs, 2)

	ev := pub.msgs[0]
	require.Equal(t, "dev1/events", ev.topic)
	require.False(t, ev.retain)
	s, err := DecodeStruct(ev.payload)
	require.NoError(t, err)
	require.Equal(t, "stage", s.Fields["kind"].GetStringValue())
	require.Equal(t, "JoinAP", s.Fields["stage"].GetStringValue())
	require.Equal(t, float64(1), s.Fields["sends"].GetNumberValue())

	meta := pub.msgs[1]
	require.Equal(t, "dev1/meta", meta.topic)
	require.True(t, meta.retain)
	s, err = DecodeStruct(meta.payload)
	require.NoError(t, err)
	require.Equal(t, "Config", s.Fields["task"].GetStringValue())
	require.False(t, s.Fields["ready"].GetBoolValue())
}

func TestReporterMeta(t *testing.T) {
	pub := &testPublisher{}
	r := NewReporter(pub, "dev1")
	r.OnConnect(nil)
	require.Len(t, pub.msgs, 1)
	s, err := DecodeStruct(pub.msgs[0].payload)
	require.NoError(t, err)
	require.Equal(t, "dev1", s.Fields["device"].GetStringValue())
	require.False(t, s.Fields["ready"].GetBoolValue())

	r.RadioEvent(radio.Event{Kind: radio.EventReady, Task: radio.TaskReady, Stage: radio.Automatic})
	r.KeepAliveSent(3)
	pub.msgs = nil
	r.PublishMeta()
	s, err = DecodeStruct(pub.msgs[0].payload)
	require.NoError(t, err)
	require.True(t, s.Fields["ready"].GetBoolValue())
	require.Equal(t, float64(3), s.Fields["keepalive"].GetNumberValue())
}

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic   string
		pattern string
		expect  bool
	}{
		{"dev1/events", "dev1/events", true},
		{"dev1/events", "+/events", true},
		{"dev1/meta", "+/events", false},
		{"dev1/events", "#", true},
		{"dev1/events", "dev1/#", true},
		{"dev1", "dev1/events", false},
		{"dev1/events/x", "+/events", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}
