package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/entity"
)

// Devices lists the push subscriptions of a user.
type Devices interface {
	ListByUser(ctx context.Context, userID string) ([]entity.Subscriber, error)
}

// NATSSender publishes one Envelope per device to <prefix>.<platform>.
type NATSSender struct {
	conn    *nats.Conn
	prefix  string
	devices Devices
	logger  *zap.SugaredLogger
	now     func() time.Time
}

var _ Sender = (*NATSSender)(nil)

// Connect dials NATS with automatic reconnection.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("service-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

func NewNATSSender(conn *nats.Conn, prefix string, devices Devices, logger *zap.SugaredLogger) *NATSSender {
	if prefix == "" {
		prefix = "push"
	}
	return &NATSSender{conn: conn, prefix: prefix, devices: devices, logger: logger, now: time.Now}
}

// Subject is the NATS subject for platform.
func (s *NATSSender) Subject(platform string) string {
	return s.prefix + "." + platform
}

// SendToUser returns nil when the user has no devices. Publish failures for
// individual devices are joined into the returned error.
func (s *NATSSender) SendToUser(ctx context.Context, userID string, n Notification) error {
	devs, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devs) == 0 {
		s.logger.Debugw("no push devices", "user_id", userID)
		return nil
	}
	var errs []error
	for _, d := range devs {
		data, err := json.Marshal(Envelope{
			Token: d.Token, Platform: d.Platform, UserID: userID,
			Notification: n, SentAt: s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshaling envelope: %w", err)
		}
		if err := s.conn.Publish(s.Subject(d.Platform), data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", d.Platform, err))
		}
	}
	return errors.Join(errs...)
}
