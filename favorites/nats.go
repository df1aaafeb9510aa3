package favorites

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject carries favorites change events between processes.
const Subject = "stoparrivals.favorites.changed"

// Broadcaster publishes and receives change events over NATS.
type Broadcaster struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	instance string
	logger   *zap.Logger
}

var _ Notifier = (*Broadcaster)(nil)

// ConnectBroadcaster connects to the NATS server at url. Events whose origin
// equals instanceID are treated as echoes and ignored by Listen.
func ConnectBroadcaster(url, instanceID string, logger *zap.Logger) (*Broadcaster, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("stop-arrivals"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Broadcaster{nc: nc, instance: instanceID, logger: logger}, nil
}

func (b *Broadcaster) Publish(c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject, data)
}

// Listen calls onForeign for every change made by another process.
func (b *Broadcaster) Listen(onForeign func(Change)) error {
	sub, err := b.nc.Subscribe(Subject, func(msg *nats.Msg) {
		if c, ok := b.foreign(msg); ok {
			onForeign(c)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Subject, err)
	}
	b.sub = sub
	return nil
}

func (b *Broadcaster) foreign(msg *nats.Msg) (Change, bool) {
	var c Change
	if err := json.Unmarshal(msg.Data, &c); err != nil {
		b.logger.Warn("dropping malformed favorites change", zap.Error(err))
		return Change{}, false
	}
	if c.Origin == b.instance {
		return Change{}, false
	}
	return c, true
}

func (b *Broadcaster) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.nc != nil {
		_ = b.nc.Drain()
		b.nc.Close()
	}
}
