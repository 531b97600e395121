package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

type chanBus struct {
	chans map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{chans: map[string]chan []byte{}}
	for _, ch := range Channels {
		b.chans[ch] = make(chan []byte, 8)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.chans[channel] <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubRelaysBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newChanBus()
	hub := NewHub(bus, func() any { return map[string]string{"mode": "server"} }, nil, testLogger())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.JSONEq(t, `{"mode":"server"}`, string(status.Data))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.ChannelTrades, []byte(`{"status":"pending"}`)))
	evt := readEnvelope(t, conn)
	assert.Equal(t, "event", evt.Type)
	assert.Equal(t, domain.ChannelTrades, evt.Channel)
	assert.JSONEq(t, `{"status":"pending"}`, string(evt.Data))
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelTrades: true, domain.ChannelPnL: true}}

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelPnL}})
	assert.False(t, c.isSubscribed(domain.ChannelPnL))
	assert.True(t, c.isSubscribed(domain.ChannelTrades))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelPositions}})
	assert.True(t, c.isSubscribed(domain.ChannelPositions))
}

func TestEncodeRejectsInvalidJSON(t *testing.T) {
	_, err := encode("event", "trades", []byte("not json"))
	assert.ErrorIs(t, err, errInvalidPayload)

	frame, err := encode("event", "trades", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","channel":"trades","data":{"a":1}}`, string(frame))
}
