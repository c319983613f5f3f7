package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/entity"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

type staticDevices struct {
	subs []entity.Subscriber
	err  error
}

func (s staticDevices) ListByUser(context.Context, string) ([]entity.Subscriber, error) {
	return s.subs, s.err
}

func TestNATSSenderPublishesPerDevice(t *testing.T) {
	url := startTestNATS(t)
	nc, err := Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("push.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	devices := staticDevices{subs: []entity.Subscriber{
		{Token: "tok-a", UserID: "u1", Platform: "fcm"},
		{Token: "tok-b", UserID: "u1", Platform: "apns"},
	}}
	s := NewNATSSender(nc, "", devices, zaptest.NewLogger(t).Sugar())
	n := Notification{Title: "Aria", Body: "hi", Data: map[string]string{"type": "nudge"}}
	require.NoError(t, s.SendToUser(context.Background(), "u1", n))

	got := map[string]Envelope{}
	for len(got) < 2 {
		select {
		case m := <-ch:
			var env Envelope
			require.NoError(t, json.Unmarshal(m.Data, &env))
			got[m.Subject] = env
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %d messages", len(got))
		}
	}
	assert.Equal(t, "tok-a", got["push.fcm"].Token)
	assert.Equal(t, "tok-b", got["push.apns"].Token)
	assert.Equal(t, "Aria", got["push.fcm"].Title)
	assert.Equal(t, "nudge", got["push.apns"].Data["type"])
	assert.Equal(t, "u1", got["push.fcm"].UserID)
}

func TestNATSSenderNoDevices(t *testing.T) {
	nc, err := Connect(startTestNATS(t))
	require.NoError(t, err)
	defer nc.Close()

	s := NewNATSSender(nc, "mobile", staticDevices{}, zaptest.NewLogger(t).Sugar())
	assert.NoError(t, s.SendToUser(context.Background(), "u1", Notification{Title: "x"}))
	assert.Equal(t, "mobile.web", s.Subject("web"))
}

func TestNATSSenderDeviceLookupError(t *testing.T) {
	nc, err := Connect(startTestNATS(t))
	require.NoError(t, err)
	defer nc.Close()

	s := NewNATSSender(nc, "", staticDevices{err: errors.New("db down")}, zaptest.NewLogger(t).Sugar())
	assert.ErrorContains(t, s.SendToUser(context.Background(), "u1", Notification{}), "db down")
}

func TestNATSSenderClosedConnection(t *testing.T) {
	nc, err := Connect(startTestNATS(t))
	require.NoError(t, err)
	nc.Close()

	devices := staticDevices{subs: []entity.Subscriber{{Token: "t", Platform: "fcm"}}}
	s := NewNATSSender(nc, "", devices, zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, s.SendToUser(context.Background(), "u1", Notification{}), nats.ErrConnectionClosed)
}
