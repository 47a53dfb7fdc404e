package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
)

func ptr[T any](v T) *T { return &v }

func testSighting() *api.Sighting {
	return &api.Sighting{
		ID:           7,
		Zone:         "Bolonia",
		SpeciesGuess: ptr("Ciconia ciconia"),
		Notes:        ptr("  flock of 40 over the dunes "),
		ObservedAt:   api.Timestamp{Time: time.Date(2025, 4, 12, 7, 30, 0, 0, time.UTC)},
	}
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ciconia ciconia at Bolonia (2025-04-12 07:30)\nflock of 40 over the dunes", FormatMessage(testSighting()))

	bare := &api.Sighting{Zone: "Los Lances", PhotoURL: ptr("https://photos.test/k1.jpg")}
	assert.Equal(t, "Unidentified bird at Los Lances\nhttps://photos.test/k1.jpg", FormatMessage(bare))
}

func TestMarshalEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 12, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	payload, err := MarshalEvent(testSighting(), now)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, EventSightingCreated, decoded["event"])
	assert.Equal(t, "2025-04-12T07:00:00Z", decoded["published_at"])
	sighting, ok := decoded["sighting"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Bolonia", sighting["zone"])
}

type fakeSender struct {
	messages []string
	titles   []string
	errs     []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.messages = append(f.messages, message)
	title, _ := params.Title()
	f.titles = append(f.titles, title)
	return f.errs
}

func TestShoutrrrPublisher(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	p := newShoutrrrPublisher(sender, "", nil)
	require.NoError(t, p.Publish(t.Context(), testSighting()))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Ciconia ciconia at Bolonia")
	assert.Equal(t, DefaultTitle, sender.titles[0])

	sender.errs = []error{nil, errors.NewStd("telegram: 502")}
	err := p.Publish(t.Context(), testSighting())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))

	sender.errs = []error{nil}
	require.NoError(t, p.Publish(t.Context(), testSighting()), "nil entries are successes")
}

func TestNewShoutrrrPublisher_Config(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrPublisher(ShoutrrrConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewShoutrrrPublisher(ShoutrrrConfig{URLs: []string{"nosuchservice://token@host"}}, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@host", "URLs are not echoed")

	p, err := NewShoutrrrPublisher(ShoutrrrConfig{URLs: []string{"logger://"}, Title: "Tarifa"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "shoutrrr", p.Name())
}

// fakeToken completes immediately with err, or never when pending.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, pending bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type publishCall struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mu           sync.Mutex
	connected    bool
	connects     int
	connectErr   error
	pending      bool
	published    []publishCall
	disconnected bool
}

func (f *fakeMQTT) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr == nil {
		f.connected = true
	}
	return newToken(f.connectErr, false)
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishCall{topic: topic, retained: retained, payload: payload.([]byte)})
	return newToken(nil, f.pending)
}

func (f *fakeMQTT) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func TestMQTTPublisher_ConnectsOnceAndPublishes(t *testing.T) {
	t.Parallel()

	client := &fakeMQTT{}
	p := newMQTTPublisher(client, MQTTConfig{Topic: "/tarifa/sightings/", Retain: true}, nil)
	assert.Equal(t, "tarifa/sightings", p.Topic())

	require.NoError(t, p.Publish(t.Context(), testSighting()))
	require.NoError(t, p.Publish(t.Context(), testSighting()))

	assert.Equal(t, 1, client.connects)
	require.Len(t, client.published, 2)
	assert.Equal(t, "tarifa/sightings", client.published[0].topic)
	assert.True(t, client.published[0].retained)

	var event Event
	require.NoError(t, json.Unmarshal(client.published[0].payload, &event))
	assert.Equal(t, int64(7), event.Sighting.ID)

	p.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_Failures(t *testing.T) {
	t.Parallel()

	t.Run("connect error", func(t *testing.T) {
		t.Parallel()
		client := &fakeMQTT{connectErr: errors.NewStd("not authorized")}
		p := newMQTTPublisher(client, MQTTConfig{}, nil)

		err := p.Publish(t.Context(), testSighting())
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
		assert.Empty(t, client.published)
	})

	t.Run("publish timeout", func(t *testing.T) {
		t.Parallel()
		client := &fakeMQTT{pending: true}
		p := newMQTTPublisher(client, MQTTConfig{Timeout: 20 * time.Millisecond}, nil)

		err := p.Publish(t.Context(), testSighting())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		client := &fakeMQTT{pending: true}
		p := newMQTTPublisher(client, MQTTConfig{}, nil)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := p.Publish(ctx, testSighting())
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	})
}

func TestSetup(t *testing.T) {
	t.Parallel()

	publishers, closeAll, err := Setup(Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, publishers)
	closeAll()

	_, closeAll, err = Setup(Options{MQTTEnabled: true, MQTT: MQTTConfig{Broker: "not a url"}}, nil)
	require.Error(t, err)
	closeAll()

	publishers, closeAll, err = Setup(Options{
		MQTTEnabled: true,
		MQTT:        MQTTConfig{Broker: "tcp://127.0.0.1:1883"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(closeAll)
	require.Len(t, publishers, 1)
	assert.Equal(t, "mqtt", publishers[0].Name())
}
